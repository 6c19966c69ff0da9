// Package transcript converts service responses into Tokens and renders
// transcripts and captions as text.
package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/wordsplice/internal/types"
)

// ScribeWord is one entry of an ElevenLabs speech-to-text response.
type ScribeWord struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Type      string  `json:"type"` // "word", "spacing", "audio_event"
	SpeakerID string  `json:"speaker_id,omitempty"`
}

type ScribeResponse struct {
	LanguageCode string       `json:"language_code"`
	Text         string       `json:"text"`
	Words        []ScribeWord `json:"words"`
}

// FromScribe keeps the "word" entries in service order and numbers them from
// 1. Timing is taken as is.
func FromScribe(resp ScribeResponse) types.Transcript {
	tr := types.Transcript{
		LanguageCode: resp.LanguageCode,
		Text:         strings.TrimSpace(resp.Text),
		Tokens:       make([]types.Token, 0, len(resp.Words)),
	}
	for _, w := range resp.Words {
		if w.Type != "" && w.Type != "word" {
			continue
		}
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		tr.Tokens = append(tr.Tokens, types.Token{
			Index: len(tr.Tokens) + 1,
			Text:  text,
			Start: w.Start,
			End:   w.End,
		})
	}
	return tr
}

// OrderingViolation points at a token that breaks
// tokens[i].Start <= tokens[i].End <= tokens[i+1].Start.
type OrderingViolation struct {
	Index  int
	Reason string
}

func (v OrderingViolation) String() string {
	return fmt.Sprintf("token %d: %s", v.Index, v.Reason)
}

func CheckOrdering(tokens []types.Token) []OrderingViolation {
	var out []OrderingViolation
	for i, t := range tokens {
		if t.Start > t.End {
			out = append(out, OrderingViolation{Index: t.Index, Reason: fmt.Sprintf("start %.3f after end %.3f", t.Start, t.End)})
		}
		if i+1 < len(tokens) && t.End > tokens[i+1].Start {
			out = append(out, OrderingViolation{Index: t.Index, Reason: fmt.Sprintf("end %.3f overlaps next start %.3f", t.End, tokens[i+1].Start)})
		}
	}
	return out
}

// RenderText writes one "[start - end] text" line per token.
func RenderText(tokens []types.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		fmt.Fprintf(&b, "[%.2fs - %.2fs] %s\n", t.Start, t.End, t.Text)
	}
	return b.String()
}

func RenderCaptions(caps []types.Caption) string {
	var b strings.Builder
	for _, c := range caps {
		fmt.Fprintf(&b, "[%.2fs - %.2fs] %s\n", c.Start, c.Start+c.Duration, c.Text)
	}
	return b.String()
}

type json3 struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// ParseJSON3 decodes YouTube's json3 caption format. Events without text
// (window/style events, bare newlines) are skipped.
func ParseJSON3(b []byte) ([]types.Caption, error) {
	var doc json3
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse json3 captions: %w", err)
	}
	out := make([]types.Caption, 0, len(doc.Events))
	for _, ev := range doc.Events {
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		out = append(out, types.Caption{
			Text:     text,
			Start:    float64(ev.TStartMs) / 1000,
			Duration: float64(ev.DDurationMs) / 1000,
		})
	}
	return out, nil
}

// minCaptionDuration keeps clamped captions audible.
const minCaptionDuration = 0.1

// ClampCaptions shortens each caption so it ends where the next one starts.
// Auto-generated captions overlap heavily otherwise.
func ClampCaptions(caps []types.Caption) []types.Caption {
	out := make([]types.Caption, len(caps))
	copy(out, caps)
	for i := 0; i+1 < len(out); i++ {
		end := out[i].Start + out[i].Duration
		next := out[i+1].Start
		if end > next {
			out[i].Duration = max(minCaptionDuration, next-out[i].Start)
		}
	}
	return out
}

// Words joins token texts with single spaces.
func Words(tokens []types.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

// Chunk is one window of a long recording transcribed on its own. Token
// times are relative to Offset.
type Chunk struct {
	Offset float64
	Tokens []types.Token
}

// MergeChunks moves chunk tokens onto the recording timeline. Neighbouring
// windows overlap by overlap seconds; the overlap is split at its midpoint
// so a word heard in both windows is kept once. Tokens keep chunk order and
// are numbered from 1.
func MergeChunks(chunks []Chunk, overlap float64) []types.Token {
	out := []types.Token{}
	for i, c := range chunks {
		lo := math.Inf(-1)
		if i > 0 {
			lo = c.Offset + overlap/2
		}
		hi := math.Inf(1)
		if i+1 < len(chunks) {
			hi = chunks[i+1].Offset + overlap/2
		}
		for _, t := range c.Tokens {
			start := c.Offset + t.Start
			if start < lo || start >= hi {
				continue
			}
			out = append(out, types.Token{
				Index: len(out) + 1,
				Text:  t.Text,
				Start: start,
				End:   c.Offset + t.End,
			})
		}
	}
	return out
}
