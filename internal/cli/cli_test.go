package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/wordsplice/internal/domain/selection"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"ELEVENLABS_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY",
		"WORDSPLICE_LLM_PROVIDER", "WORDSPLICE_OUT_DIR", "WORDSPLICE_TRANSCRIBER",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRoot(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestArgsValidation(t *testing.T) {
	isolate(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"fetch"}, "accepts 1 arg(s), received 0"},
		{[]string{"splice", "only-one.json"}, "accepts 2 arg(s), received 1"},
		{[]string{"doctor", "extra"}, "unknown command"},
		{[]string{"fetch", "abc", "--audio-only", "--captions-only"}, "none of the others can be"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelect_EmptyTranscriptFailsWithoutNetwork(t *testing.T) {
	dir := isolate(t)
	t.Setenv("GEMINI_API_KEY", "g-test")
	path := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tokens":[]}`), 0o644))

	_, err := execute(t, "select", path, "--log-format", "json", "-q")
	assert.True(t, errors.Is(err, selection.ErrEmptyTranscript), "got %v", err)
}

func TestSelect_RequiresProviderKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "t.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tokens":[{"index":1,"text":"hi","start":0,"end":1}]}`), 0o644))

	_, err := execute(t, "select", path, "--llm", "openrouter", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY is required")
}

func TestRun_RequiresKeys(t *testing.T) {
	isolate(t)
	out, err := execute(t, "run", "dQw4w9WgXcQ", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ELEVENLABS_API_KEY is required")
	assert.NotContains(t, out, "[1/4]")
}

func TestInvalidFlagValueIsRejectedByConfig(t *testing.T) {
	isolate(t)
	_, err := execute(t, "select", "x.json", "--unmatched", "ignore", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unmatched")
}

func TestSplice_MissingSelection(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "splice", filepath.Join(dir, "missing.json"), filepath.Join(dir, "a.mp3"), "-q")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "two"}}, []columnAlignment{alignRight})
	assert.Contains(t, got, "two")
	assert.Contains(t, got, "A")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestTranscribe_ReusesExistingUnlessForced(t *testing.T) {
	dir := isolate(t)
	t.Setenv("GEMINI_API_KEY", "g-test")
	t.Setenv("WORDSPLICE_TOOLS_FFPROBE", filepath.Join(dir, "no-ffprobe"))
	audio := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("mp3"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_gemini_transcript.json"),
		[]byte(`{"text":"hi there","tokens":[{"index":1,"text":"hi","start":0,"end":0.5},{"index":2,"text":"there","start":0.5,"end":1}]}`), 0o644))

	out, err := execute(t, "transcribe", audio, "--provider", "gemini", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 words, existing)")

	_, err = execute(t, "transcribe", audio, "--provider", "gemini", "--force", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini transcribe")
}

func TestTranscribe_GeminiRequiresKey(t *testing.T) {
	dir := isolate(t)
	audio := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("mp3"), 0o644))

	_, err := execute(t, "transcribe", audio, "--provider", "gemini", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY is required for --provider gemini")
}
