package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
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

// BedrockClient implements the Classifier and ReplyGenerator ports using Amazon Bedrock
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.")
}

func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

// Classify asks the model whether the message is spam.
func (c *BedrockClient) Classify(ctx context.Context, text string) (bool, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)
	responseText, err := c.invoke(ctx, fmt.Sprintf(classifyPrompt, body))
	if err != nil {
		return false, err
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		jsonStart := strings.Index(responseText, "{")
		jsonEnd := strings.LastIndex(responseText, "}")
		if jsonStart < 0 || jsonEnd < jsonStart {
			return false, fmt.Errorf("failed to extract JSON from LLM response")
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &parsed); err != nil {
			return false, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}
	c.logger.Debug("Bedrock classification",
		zap.Bool("is_spam", parsed.IsSpam),
		zap.String("reason", parsed.Reason))
	return parsed.IsSpam, nil
}

// GenerateReply asks the model for a short reply to a legitimate message.
func (c *BedrockClient) GenerateReply(ctx context.Context, text string, senderName string) (string, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)
	return c.invoke(ctx, fmt.Sprintf(replyPrompt, senderName, body))
}

// invoke sends the prompt with a model-family specific payload shape.
func (c *BedrockClient) invoke(ctx context.Context, prompt string) (string, error) {
	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(resp.Body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}
	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(resp.Body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	default:
		return string(resp.Body), nil
	}
}
