package whispercpp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FlattensSegments(t *testing.T) {
	raw := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"offsets": {"from": 0, "to": 500}, "text": " I"},
			{"offsets": {"from": 500, "to": 1000}, "text": " love"},
			{"offsets": {"from": 1000, "to": 1000}, "text": "  "},
			{"offsets": {"from": 1000, "to": 2000}, "text": " cats dogs"}
		]
	}`)
	tr, err := parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "en", tr.LanguageCode)
	assert.Equal(t, "I love cats dogs", tr.Text)
	require.Len(t, tr.Tokens, 4)
	assert.Equal(t, 1, tr.Tokens[0].Index)
	assert.Equal(t, 4, tr.Tokens[3].Index)
	assert.InDelta(t, 1.0, tr.Tokens[2].Start, 1e-9)
	assert.InDelta(t, 1.5, tr.Tokens[2].End, 1e-9)
	assert.InDelta(t, 1.5, tr.Tokens[3].Start, 1e-9)
	assert.InDelta(t, 2.0, tr.Tokens[3].End, 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	_, err := parse([]byte("{"))
	assert.Error(t, err)
}

func TestArgs_WordLevelOutput(t *testing.T) {
	got := strings.Join(args("m.bin", "a.wav", "/tmp/w"), " ")
	assert.Contains(t, got, "-ml 1")
	assert.Contains(t, got, "-sow")
	assert.Contains(t, got, "-oj")
	assert.Contains(t, got, "-of /tmp/w")
}

type failingConv struct{}

func (failingConv) ExtractAudioMono16k(context.Context, string, string) error {
	return errors.New("ffmpeg extract audio: boom")
}

func TestTranscribe_ConversionError(t *testing.T) {
	a := New("whisper-cli", "model.bin", failingConv{})
	_, err := a.Transcribe(context.Background(), "in.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	a = New("", "", failingConv{})
	_, err = a.Transcribe(context.Background(), "in.mp3")
	assert.EqualError(t, err, "whisper.cpp: model path required")
}
