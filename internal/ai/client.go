package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNotConfigured = errors.New("llm is not configured")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (c ChatConfig) Valid() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.Model != ""
}

// Client talks to any endpoint that implements the OpenAI chat completions
// API.
type Client struct {
	http *resty.Client
	cfg  ChatConfig
}

func NewClient(cfg ChatConfig) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(90 * time.Second).
			SetHeader("Content-Type", "application/json"),
		cfg: cfg,
	}
}

func (c *Client) Configured() bool {
	return c.cfg.Valid()
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if !c.cfg.Valid() {
		return "", ErrNotConfigured
	}

	var parsed completionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetBody(completionRequest{Model: c.cfg.Model, Messages: messages}).
		SetResult(&parsed).
		Post(strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
