// Package openai generates the natural-language summary appended to each
// analysis. Best-effort: callers degrade to a placeholder when it fails.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Client wraps the OpenAI API client
type Client struct {
	client *openai.Client
	logger zerolog.Logger
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		logger: log.With().Str("component", "openai_client").Logger(),
	}
}

// Summarize asks the model for a short human summary of the technical
// report: overall trend, possible entry/exit signals, general advice.
func (c *Client) Summarize(ctx context.Context, symbol, timeframe string, report []string) (string, error) {
	prompt := fmt.Sprintf(
		"Based on the following technical data for %s on the %s timeframe:\n%s\n\n"+
			"Write a short summary in plain language, without repeating the symbol or timeframe, "+
			"covering the overall trend, possible entry or exit signals, and one piece of general advice.",
		symbol, timeframe, strings.Join(report, "\n"),
	)

	c.logger.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Msg("Requesting summary")

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT3Dot5Turbo,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.7,
			MaxTokens:   300,
		},
	)
	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
