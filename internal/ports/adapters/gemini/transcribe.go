package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/wordsplice/internal/domain/transcript"
	"github.com/forPelevin/wordsplice/internal/types"
)

const (
	defaultChunk   = 5 * time.Minute
	defaultOverlap = 5 * time.Second
)

const transcribePrompt = `Transcribe the speech in this audio clip word by word.
Return JSON of the form {"words":[{"text":"word","start":0.0,"end":0.4}]}.
start and end are seconds from the beginning of this clip.
One entry per spoken word, in the order spoken, punctuation attached to its word.
Do not add words that are not spoken and do not describe sounds.`

// Cutter cuts a window out of a recording and reports its length.
type Cutter interface {
	ExtractRange(ctx context.Context, inAudio string, r types.Range, outAudio string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Transcriber sends a recording to Gemini in overlapping windows, each
// small enough to travel inline, and merges the word lists.
type Transcriber struct {
	a       *Adapter
	cut     Cutter
	chunk   float64
	overlap float64
}

func NewTranscriber(a *Adapter, cut Cutter, chunk, overlap time.Duration) *Transcriber {
	if chunk <= 0 {
		chunk = defaultChunk
	}
	if overlap < 0 || overlap >= chunk {
		overlap = defaultOverlap
	}
	return &Transcriber{a: a, cut: cut, chunk: chunk.Seconds(), overlap: overlap.Seconds()}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	dur, err := t.cut.ProbeDuration(ctx, audioPath)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("gemini transcribe: %w", err)
	}
	wins := windows(dur, t.chunk, t.overlap)
	if len(wins) == 0 {
		return types.Transcript{}, errors.New("gemini transcribe: audio has no duration")
	}

	tmp, err := os.MkdirTemp("", "wordsplice-gemini-*")
	if err != nil {
		return types.Transcript{}, err
	}
	defer os.RemoveAll(tmp)

	ext := filepath.Ext(audioPath)
	chunks := make([]transcript.Chunk, 0, len(wins))
	for i, w := range wins {
		path := audioPath
		if len(wins) > 1 {
			path = filepath.Join(tmp, fmt.Sprintf("chunk_%03d%s", i, ext))
			if err := t.cut.ExtractRange(ctx, audioPath, w, path); err != nil {
				return types.Transcript{}, err
			}
		}
		start := time.Now()
		tokens, err := t.transcribeFile(ctx, path)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("gemini transcribe chunk %d/%d: %w", i+1, len(wins), err)
		}
		t.a.log.Info().
			Int("chunk", i+1).
			Int("chunks", len(wins)).
			Int("words", len(tokens)).
			Dur("took", time.Since(start)).
			Msg("chunk transcribed")
		chunks = append(chunks, transcript.Chunk{Offset: w.Start, Tokens: tokens})
	}

	tokens := transcript.MergeChunks(chunks, t.overlap)
	return types.Transcript{Text: transcript.Words(tokens), Tokens: tokens}, nil
}

func (t *Transcriber) transcribeFile(ctx context.Context, path string) ([]types.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	parts := []part{
		{Text: transcribePrompt},
		{InlineData: &inlineData{MimeType: audioMime(path), Data: base64.StdEncoding.EncodeToString(b)}},
	}
	raw, err := t.a.generate(ctx, parts, wordsSchema())
	if err != nil {
		return nil, err
	}
	return parseWords(raw)
}

// windows covers [0, dur) with windows of chunk seconds, each starting
// overlap seconds before the previous one ends.
func windows(dur, chunk, overlap float64) []types.Range {
	if dur <= 0 {
		return nil
	}
	step := chunk - overlap
	var out []types.Range
	for start := 0.0; ; start += step {
		end := min(start+chunk, dur)
		out = append(out, types.Range{Start: start, End: end})
		if end >= dur {
			return out
		}
	}
}

func wordsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"words": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":  map[string]any{"type": "string"},
						"start": map[string]any{"type": "number"},
						"end":   map[string]any{"type": "number"},
					},
					"required": []string{"text", "start", "end"},
				},
			},
		},
		"required": []string{"words"},
	}
}

type chunkWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// parseWords accepts {"words":[...]} or a bare array, optionally fenced.
func parseWords(raw string) ([]types.Token, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var words []chunkWord
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &words); err != nil {
			return nil, fmt.Errorf("gemini: decode words: %w", err)
		}
	} else {
		var obj struct {
			Words []chunkWord `json:"words"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, fmt.Errorf("gemini: decode words: %w", err)
		}
		words = obj.Words
	}

	out := make([]types.Token, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		start := max(w.Start, 0)
		out = append(out, types.Token{
			Index: len(out) + 1,
			Text:  text,
			Start: start,
			End:   max(w.End, start),
		})
	}
	return out, nil
}

func audioMime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".m4a", ".aac":
		return "audio/aac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/mp3"
	}
}
