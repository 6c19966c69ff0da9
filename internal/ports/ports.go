package ports

import (
	"context"

	"github.com/forPelevin/wordsplice/internal/types"
)

// Downloader retrieves media from the video platform.
type Downloader interface {
	DownloadAudio(ctx context.Context, url, outDir, videoID string) (string, error)
	FetchCaptions(ctx context.Context, url, lang string) ([]types.Caption, error)
}

// ASR turns an audio file into word-timestamped tokens.
type ASR interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

// LLM returns the raw JSON text a model produced for prompt. schema is a
// JSON schema the provider should constrain its output to.
type LLM interface {
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error)
}

// AudioTool cuts and joins audio files.
type AudioTool interface {
	ExtractRange(ctx context.Context, inAudio string, r types.Range, outAudio string) error
	Concat(ctx context.Context, parts []string, outAudio, comment string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
