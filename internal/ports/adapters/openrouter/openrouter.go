package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/wordsplice/internal/ports/adapters/endpoint"
)

const (
	defaultModel   = "google/gemini-2.0-flash-001"
	defaultTimeout = 90 * time.Second
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds each request.
	Timeout time.Duration
	// Temperature is sent only when positive.
	Temperature float64
}

type Adapter struct {
	key     string
	model   string
	baseURL string
	timeout time.Duration
	temp    float64
	client  *http.Client
	log     zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		key:     cfg.APIKey,
		model:   cfg.Model,
		baseURL: endpoint.OpenRouter.Normalize(cfg.BaseURL),
		timeout: cfg.Timeout,
		temp:    cfg.Temperature,
		client:  &http.Client{},
		log:     log.With().Str("component", "openrouter").Str("model", cfg.Model).Logger(),
	}
}

// GenerateJSON sends prompt as a single user message with a strict
// json_schema response format and returns the message content as text.
func (a *Adapter) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	if strings.TrimSpace(a.key) == "" {
		return "", errors.New("openrouter: api key required")
	}
	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if a.temp > 0 {
		payload["temperature"] = a.temp
	}
	if schema != nil {
		payload["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "word_selection",
				"strict": true,
				"schema": schema,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", a.timeout, a.model)
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, endpoint.Truncate(endpoint.Redact(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}

	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	a.log.Debug().
		Dur("took", time.Since(start)).
		Str("finish_reason", raw.Choices[0].FinishReason).
		Int("chars", len(content)).
		Msg("completion received")
	return content, nil
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}
