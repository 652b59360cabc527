package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	OpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultChatTimeout bounds a single completion round trip. The provider
	// can otherwise hold a connection open indefinitely.
	DefaultChatTimeout = 60 * time.Second
)

// OpenRouterClient talks to the OpenRouter chat/completions endpoint.
type OpenRouterClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

type OpenRouterConfig struct {
	APIKey     string
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewOpenRouterClient(cfg OpenRouterConfig) (*OpenRouterClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY not configured")
	}
	if cfg.URL == "" {
		cfg.URL = OpenRouterURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultChatTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenRouterClient{apiKey: cfg.APIKey, url: cfg.URL, httpClient: cfg.HTTPClient}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: 0})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Provider: "openrouter", Err: err}
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &TransportError{Provider: "openrouter", Status: res.StatusCode, Err: fmt.Errorf("body=%s", string(body))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &TransportError{Provider: "openrouter", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &TransportError{Provider: "openrouter", Err: errors.New("response contained no choices")}
	}
	log.Printf("casepilot llm_call provider=openrouter model=%s elapsed_ms=%d response_chars=%d",
		model, time.Since(start).Milliseconds(), len(parsed.Choices[0].Message.Content))
	return parsed.Choices[0].Message.Content, nil
}
