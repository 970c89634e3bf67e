package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/config"
	"github.com/maxtyrsa/mamaai/internal/core"
	"github.com/maxtyrsa/mamaai/internal/factory"
	"github.com/maxtyrsa/mamaai/internal/logging"
	"github.com/maxtyrsa/mamaai/internal/utils"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "none", "LLM provider (none, openai, gemini, bedrock)")
	maxTokens   = flag.Int("max-tokens", 500, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.3, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 2048, "Maximum message size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Scoring flags
	senderID   = flag.Int64("sender", 0, "Sender id used for trust and behavior signals")
	trustScore = flag.Int("trust", core.TrustDefault, "Initial trust score for the sender")

	// Input flags
	text       = flag.String("text", "", "Message text (use -file or stdin if not specified)")
	inputFile  = flag.String("file", "", "Input file with the message text")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	// Initialize LLM client; nil with the "none" provider
	textProcessor := utils.NewTextProcessor(logger)
	llmFactory := factory.NewLLMFactory(cfg, logger, textProcessor)
	llmClient, err := llmFactory.CreateLLMClient()
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	body := readBody(logger)

	// Assemble a standalone scoring pipeline over an in-memory trust state
	trust := core.NewTrustService(nil, logger)
	if *trustScore != core.TrustDefault {
		seedTrust(trust, *senderID, *trustScore)
	}
	patterns := core.NewPatternScorer()
	var classifier core.Classifier
	if llmClient != nil {
		classifier = llmClient
	}
	engine := core.NewModerationEngine(cfg.GetEngine(), patterns, trust, classifier, logger)

	metrics := core.ComputeTextMetrics(body)
	state := trust.Get(*senderID)

	fmt.Printf("\n=== Message ===\n")
	fmt.Printf("Sender: %d (trust %d, tier %s)\n", *senderID, state.Score, state.Tier())
	fmt.Printf("Length: %d runes\n", metrics.Length)
	fmt.Printf("\n=== Signals ===\n")
	fmt.Printf("Pattern score: %.1f\n", patterns.Score(body))
	if hits := patterns.Categories(body); len(hits) > 0 {
		fmt.Printf("Pattern categories: %s\n", strings.Join(hits, ", "))
	}
	fmt.Printf("Uppercase ratio: %.2f\n", metrics.UppercaseRatio)
	fmt.Printf("Special ratio: %.2f\n", metrics.SpecialRatio)
	fmt.Printf("Digit ratio: %.2f\n", metrics.DigitRatio)
	fmt.Printf("Emoji count: %d\n", metrics.EmojiCount)
	fmt.Printf("Repetition score: %.2f\n", metrics.RepetitionScore)

	verdict := engine.Evaluate(context.Background(), *senderID, body)

	fmt.Printf("\n=== Verdict ===\n")
	fmt.Printf("Is spam: %t\n", verdict.IsSpam)
	fmt.Printf("Total score: %.2f\n", verdict.Score)
	fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
}

// readBody takes the message from -text, -file or stdin, in that order.
func readBody(logger *zap.Logger) string {
	if *text != "" {
		return *text
	}
	var reader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		reader = file
	} else {
		logger.Info("Reading message from stdin")
		reader = os.Stdin
	}
	raw, err := io.ReadAll(bufio.NewReader(reader))
	if err != nil {
		logger.Fatal("Failed to read message", zap.Error(err))
	}
	return strings.TrimSpace(string(raw))
}

// seedTrust walks the sender's trust to the requested score through
// observations, since trust only moves through the recording path.
func seedTrust(trust *core.TrustService, senderID int64, target int) {
	// Scores saturate at the bounds, so an out-of-range target would
	// never be reached.
	if target > core.TrustMax {
		target = core.TrustMax
	}
	if target < core.TrustMin {
		target = core.TrustMin
	}
	state := trust.Get(senderID)
	for state.Score > target {
		state = trust.RecordObservation(senderID, true, state.LastActivity)
	}
	for state.Score < target {
		state = trust.RecordObservation(senderID, false, state.LastActivity)
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	return config.NewFromViper(v)
}
