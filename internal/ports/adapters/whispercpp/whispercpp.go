package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/wordsplice/internal/domain/transcript"
	"github.com/forPelevin/wordsplice/internal/types"
)

// WavConverter produces the 16 kHz mono WAV whisper.cpp expects.
type WavConverter interface {
	ExtractAudioMono16k(ctx context.Context, inAudio, outWav string) error
}

type Adapter struct {
	bin   string
	model string
	conv  WavConverter
}

func New(binPath, modelPath string, conv WavConverter) *Adapter {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &Adapter{bin: binPath, model: modelPath, conv: conv}
}

type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp locally with one word per segment and
// flattens the segments into tokens.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	if a.model == "" {
		return types.Transcript{}, errors.New("whisper.cpp: model path required")
	}
	tmp, err := os.MkdirTemp("", "wordsplice-whisper-*")
	if err != nil {
		return types.Transcript{}, err
	}
	defer os.RemoveAll(tmp)

	wavPath := filepath.Join(tmp, "audio.wav")
	if err := a.conv.ExtractAudioMono16k(ctx, audioPath, wavPath); err != nil {
		return types.Transcript{}, err
	}

	outPrefix := filepath.Join(tmp, "whisper")
	cmd := exec.CommandContext(ctx, a.bin, args(a.model, wavPath, outPrefix)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return parse(jb)
}

func args(model, wavPath, outPrefix string) []string {
	return []string{
		"-m", model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-ml", "1",
		"-sow",
		"-np",
	}
}

func parse(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp json: %w", err)
	}

	tr := types.Transcript{LanguageCode: out.Result.Language, Tokens: []types.Token{}}
	for _, seg := range out.Transcription {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}
		start := float64(seg.Offsets.From) / 1000
		end := float64(seg.Offsets.To) / 1000
		if end < start {
			end = start
		}
		// Segments longer than one word share their span evenly.
		step := (end - start) / float64(len(words))
		for i, w := range words {
			tr.Tokens = append(tr.Tokens, types.Token{
				Index: len(tr.Tokens) + 1,
				Text:  w,
				Start: start + step*float64(i),
				End:   start + step*float64(i+1),
			})
		}
	}
	tr.Text = transcript.Words(tr.Tokens)
	return tr, nil
}
