package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/wordsplice/internal/types"
)

var (
	ErrEmptyTranscript = errors.New("transcript has no words")
	ErrMalformed       = errors.New("malformed model response")
	ErrNoSelection     = errors.New("model selected no words")
)

type wordJSON struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type spanJSON struct {
	Words []wordJSON `json:"words"`
}

// Parse decodes a model answer into Picks. It accepts the
// {"spans":[{"words":[...]}]} object, a bare {"words":[...]} object, or a
// bare array of words; the last two are treated as a single span.
func Parse(raw string) ([]types.Pick, error) {
	clean, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var spans []spanJSON
	if strings.HasPrefix(clean, "[") {
		var words []wordJSON
		if err := json.Unmarshal([]byte(clean), &words); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		spans = []spanJSON{{Words: words}}
	} else {
		var obj struct {
			Spans []spanJSON `json:"spans"`
			Words []wordJSON `json:"words"`
		}
		if err := json.Unmarshal([]byte(clean), &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		spans = obj.Spans
		if len(spans) == 0 && len(obj.Words) > 0 {
			spans = []spanJSON{{Words: obj.Words}}
		}
	}

	var picks []types.Pick
	span := 0
	for _, s := range spans {
		added := false
		for _, w := range s.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				continue
			}
			if !added {
				span++
				added = true
			}
			picks = append(picks, types.Pick{Span: span, Index: w.Index, Text: text})
		}
	}
	if len(picks) == 0 {
		return nil, ErrNoSelection
	}
	return picks, nil
}

func extractJSON(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformed)
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	obj := strings.Index(t, "{")
	arr := strings.Index(t, "[")
	open, closing := "{", "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closing = "[", "]"
	}
	start := strings.Index(t, open)
	end := strings.LastIndex(t, closing)
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("%w: no JSON found in %q", ErrMalformed, truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
