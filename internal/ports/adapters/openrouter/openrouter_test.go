package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMessageContentToString(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{"string", `{"spans":[]}`, `{"spans":[]}`, false},
		{"parts", []any{map[string]any{"type": "text", "text": `{"spans"`}, map[string]any{"type": "text", "text": `:[]}`}}, `{"spans":[]}`, false},
		{"blank", "  ", "", true},
		{"empty parts", []any{map[string]any{"type": "image"}}, "", true},
		{"number", 42.0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := messageContentToString(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateJSON_SendsSchemaAndReturnsContent(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"spans\":[{\"words\":[{\"index\":1,\"text\":\"I\"}]}]}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	a := New(Config{APIKey: "sk-or-test", Model: "m/x", BaseURL: srv.URL}, zerolog.Nop())
	schema := map[string]any{"type": "object"}
	out, err := a.GenerateJSON(context.Background(), "pick words", schema)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if !strings.Contains(out, `"spans"`) {
		t.Fatalf("unexpected content %q", out)
	}
	if gotAuth != "Bearer sk-or-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["model"] != "m/x" {
		t.Fatalf("unexpected model %v", gotBody["model"])
	}
	rf, ok := gotBody["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_schema" {
		t.Fatalf("expected json_schema response_format, got %v", gotBody["response_format"])
	}
	msgs := gotBody["messages"].([]any)
	if msgs[0].(map[string]any)["content"] != "pick words" {
		t.Fatalf("prompt not forwarded: %v", msgs)
	}
	if _, ok := gotBody["temperature"]; ok {
		t.Fatalf("temperature should be omitted when unset, got %v", gotBody["temperature"])
	}
}

func TestGenerateJSON_SendsConfiguredTemperature(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	a := New(Config{APIKey: "k", BaseURL: srv.URL, Temperature: 0.3}, zerolog.Nop())
	if _, err := a.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if gotBody["temperature"] != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", gotBody["temperature"])
	}
}

func TestGenerateJSON_StatusErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad Authorization: Bearer sk-or-secret"}`)
	}))
	defer srv.Close()

	a := New(Config{APIKey: "sk-or-secret", BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.GenerateJSON(context.Background(), "p", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), "sk-or-secret") {
		t.Fatalf("api key leaked: %v", err)
	}
	if !strings.Contains(err.Error(), "openrouter status 401") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGenerateJSON_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	a := New(Config{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	if _, err := a.GenerateJSON(context.Background(), "p", nil); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestGenerateJSON_RequiresKey(t *testing.T) {
	a := New(Config{}, zerolog.Nop())
	if _, err := a.GenerateJSON(context.Background(), "p", nil); err == nil {
		t.Fatalf("expected error without key")
	}
}
