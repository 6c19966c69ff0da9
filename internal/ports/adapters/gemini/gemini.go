package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/wordsplice/internal/ports/adapters/endpoint"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 90 * time.Second
)

// ErrBlocked is returned when the provider refuses the prompt or stops the
// candidate for safety reasons.
var ErrBlocked = errors.New("gemini: response blocked")

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
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = endpoint.Gemini.Normalize(cfg.BaseURL)
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateJSON calls generateContent in JSON mode and returns the text of
// the first candidate.
func (a *Adapter) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	return a.generate(ctx, []part{{Text: prompt}}, schema)
}

func (a *Adapter) generate(ctx context.Context, parts []part, schema map[string]any) (string, error) {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return "", errors.New("gemini: api key required")
	}

	gr := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   toGeminiSchema(schema),
		},
	}
	if a.cfg.Temperature > 0 {
		t := a.cfg.Temperature
		gr.GenerationConfig.Temperature = &t
	}
	body, err := json.Marshal(gr)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	u := a.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(a.cfg.Model) + ":generateContent"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("gemini timeout after %s (model=%s)", a.cfg.Timeout, a.cfg.Model)
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("gemini status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, endpoint.Truncate(endpoint.Redact(string(rb), a.cfg.APIKey), 400))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if br := out.PromptFeedback.BlockReason; br != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, br)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}
	c := out.Candidates[0]
	switch c.FinishReason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return "", fmt.Errorf("%w: finish reason %s", ErrBlocked, c.FinishReason)
	}

	var b strings.Builder
	for _, p := range c.Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty content")
	}
	a.log.Debug().
		Dur("took", time.Since(start)).
		Str("finish_reason", c.FinishReason).
		Int("chars", len(text)).
		Msg("completion received")
	return text, nil
}

// toGeminiSchema rewrites a JSON schema into the OpenAPI subset accepted by
// responseSchema: upper-case type names and no additionalProperties.
func toGeminiSchema(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch k {
		case "additionalProperties", "$schema", "title":
			continue
		case "type":
			if s, ok := v.(string); ok {
				out[k] = strings.ToUpper(s)
				continue
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				conv := make(map[string]any, len(props))
				for name, p := range props {
					if pm, ok := p.(map[string]any); ok {
						conv[name] = toGeminiSchema(pm)
					} else {
						conv[name] = p
					}
				}
				out[k] = conv
				continue
			}
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = toGeminiSchema(im)
				continue
			}
		}
		out[k] = v
	}
	return out
}
