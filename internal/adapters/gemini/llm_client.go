package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/utils"
)

const classifyPrompt = `You are the moderation assistant of a Telegram channel. Most comments are in Russian.
Decide whether the following message is spam. Spam includes commercial offers, channel/site/bot advertising,
financial scams (credits, investments, casino), referral links, and unsolicited mass mailings.
A normal comment, discussion or question is NOT spam.

Message:
%s

Respond with a JSON object only:
- is_spam: boolean
- reason: string (one short sentence)`

const replyPrompt = `You are the friendly assistant of a Telegram channel. Write a short, warm reply
(1-3 sentences, same language as the message, an emoji is fine) to this comment from %s:

%s

Respond with the reply text only.`

// classifyResponse is the structured verdict expected from the model.
type classifyResponse struct {
	IsSpam bool   `json:"is_spam"`
	Reason string `json:"reason"`
}

// parseClassifyResponse parses the model output, tolerating stray text
// around the JSON object.
func parseClassifyResponse(responseText string) (*classifyResponse, error) {
	var parsed classifyResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart < 0 || jsonEnd < jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &parsed, nil
}

// GeminiClient implements the Classifier and ReplyGenerator ports using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	client *genai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *GeminiClient {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify asks the model whether the message is spam.
func (c *GeminiClient) Classify(ctx context.Context, text string) (bool, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)
	responseText, err := c.generate(ctx, fmt.Sprintf(classifyPrompt, body))
	if err != nil {
		return false, err
	}

	parsed, err := parseClassifyResponse(responseText)
	if err != nil {
		return false, err
	}
	c.logger.Debug("Gemini classification",
		zap.Bool("is_spam", parsed.IsSpam),
		zap.String("reason", parsed.Reason))
	return parsed.IsSpam, nil
}

// GenerateReply asks the model for a short reply to a legitimate message.
func (c *GeminiClient) GenerateReply(ctx context.Context, text string, senderName string) (string, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)
	return c.generate(ctx, fmt.Sprintf(replyPrompt, senderName, body))
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", fmt.Errorf("no text parts in Gemini response")
	}
	return out, nil
}
