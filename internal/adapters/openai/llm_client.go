package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
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

// OpenAIClient implements the Classifier and ReplyGenerator ports using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Classify asks the model whether the message is spam.
func (c *OpenAIClient) Classify(ctx context.Context, text string) (bool, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)
	prompt := fmt.Sprintf(classifyPrompt, body)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a spam detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json",
	}
	req.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return false, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseClassifyResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return false, err
	}
	c.logger.Debug("OpenAI classification",
		zap.Bool("is_spam", parsed.IsSpam),
		zap.String("reason", parsed.Reason))
	return parsed.IsSpam, nil
}

// GenerateReply asks the model for a short reply to a legitimate message.
func (c *OpenAIClient) GenerateReply(ctx context.Context, text string, senderName string) (string, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)
	prompt := fmt.Sprintf(replyPrompt, senderName, body)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseClassifyResponse parses the model output, tolerating stray text
// around the JSON object.
func parseClassifyResponse(responseText string) (*classifyResponse, error) {
	var parsed classifyResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(responseText); i++ {
		if responseText[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(responseText) - 1; i >= 0; i-- {
		if responseText[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}
	if jsonStart < 0 || jsonStart >= jsonEnd {
		return nil, fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &parsed, nil
}
