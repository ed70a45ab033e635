package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zorojean/lifekline/internal/apperr"
	platformhttp "github.com/zorojean/lifekline/internal/platform/http"
	"github.com/zorojean/lifekline/models"
)

// Completer sends one generation request and returns the raw message content
type Completer interface {
	Complete(ctx context.Context, settings models.APISettings, req models.GenerationRequest) (string, error)
}

// Client talks to any OpenAI compatible chat completions endpoint
type Client struct {
	http        *platformhttp.Client
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

// Options tune the request body
type Options struct {
	Temperature float64
	MaxTokens   int
}

// NewClient creates a new chat completions client on top of a rate limited HTTP client
func NewClient(httpClient *platformhttp.Client, opts Options) *Client {
	return &Client{
		http:        httpClient,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      log.With().Str("component", "openai_client").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete validates the settings, posts the system and user segments and
// returns choices[0].message.content.
func (c *Client) Complete(ctx context.Context, settings models.APISettings, req models.GenerationRequest) (string, error) {
	settings, err := NormalizeSettings(settings)
	if err != nil {
		return "", err
	}
	if req.Model == "" {
		req.Model = settings.Model
	}

	payload, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := settings.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &apperr.TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+settings.APIKey)

	c.logger.Debug().Str("url", url).Str("model", req.Model).Int("prompt_length", len(req.User)).Msg("Sending prompt")

	resp, err := c.http.DoRequest(ctx, httpReq)
	if err != nil {
		c.logger.Error().Err(err).Str("model", req.Model).Msg("Chat completion failed")
		return "", err
	}

	var decoded chatResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		c.logger.Error().Err(err).Str("response", string(resp.Body)).Msg("Error parsing JSON")
		return "", &apperr.MalformedResponseError{Reason: "response envelope is not JSON", Err: err}
	}

	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		c.logger.Warn().Str("response", string(resp.Body)).Msg("Model returned no content")
		return "", &apperr.EmptyContentError{}
	}

	content := decoded.Choices[0].Message.Content
	c.logger.Debug().Int("content_length", len(content)).Msg("Received completion")
	return content, nil
}

// NormalizeSettings trims the settings, strips trailing slashes from the base
// URL and rejects blank values and non-ASCII API keys before any request is made.
func NormalizeSettings(s models.APISettings) (models.APISettings, error) {
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.Model = strings.TrimSpace(s.Model)

	if s.APIKey == "" {
		return s, &apperr.ConfigError{Field: "apiKey", Message: "请在高级设置中填写 API Key"}
	}
	if s.BaseURL == "" {
		return s, &apperr.ConfigError{Field: "apiBaseUrl", Message: "请在高级设置中填写 API Base URL"}
	}
	if s.Model == "" {
		return s, &apperr.ConfigError{Field: "modelName", Message: "请在高级设置中填写模型名称"}
	}
	for i, r := range s.APIKey {
		if r > 127 {
			return s, &apperr.ConfigError{
				Field:   "apiKey",
				Message: fmt.Sprintf("API Key 第 %d 个字节处包含非法字符 %q（如中文或全角符号），请检查是否复制错误", i+1, r),
			}
		}
	}
	return s, nil
}
