//go:build integration

package itest

import (
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/wordsplice/internal/types"
)

// TestE2E_Splice cuts five words out of a generated tone and checks the
// joined file is as long as the cuts.
func TestE2E_Splice(t *testing.T) {
	tmp := t.TempDir()

	audio := filepath.Join(tmp, "abc.mp3")
	ff := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "sine=frequency=440:duration=5",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		audio,
	)
	if b, err := ff.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}

	timed := []types.TimedPick{
		{Span: 1, Index: 1, Text: "I", Start: 0.0, End: 0.5},
		{Span: 1, Index: 2, Text: "love", Start: 0.5, End: 1.0},
		{Span: 2, Index: 5, Text: "dogs", Start: 2.0, End: 2.5},
		{Span: 3, Index: 4, Text: "not", Start: 1.5, End: 2.0},
		{Span: 3, Index: 3, Text: "cats", Start: 1.0, End: 1.5},
	}
	timedPath := filepath.Join(tmp, "abc_elevenlabs_transcript_remix_with_timing.json")
	b, err := json.MarshalIndent(timed, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(timedPath, b, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name  string
		extra []string
	}{
		{"stream copy", nil},
		{"reencode", []string{"--reencode", "-o", filepath.Join(tmp, "reencoded.mp3")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"splice", timedPath, audio, "--log-format", "json", "--tolerance", "0.3"}, tc.extra...)
			res := runCLI(t, args, nil)
			if res.exitCode != 0 {
				t.Fatalf("splice failed (%d):\n%s", res.exitCode, res.output)
			}

			out := filepath.Join(tmp, "abc_elevenlabs_transcript_remix_fake.mp3")
			if tc.extra != nil {
				out = tc.extra[len(tc.extra)-1]
			}
			if !strings.Contains(res.output, out) {
				t.Fatalf("expected output path %s in:\n%s", out, res.output)
			}
			sec, err := probeDurationSeconds(out)
			if err != nil {
				t.Fatalf("probe: %v", err)
			}
			if math.Abs(sec-2.5) > 0.3 {
				t.Fatalf("expected about 2.5s of audio, got %.3fs", sec)
			}
			tags, err := probeComment(out)
			if err != nil {
				t.Fatalf("probe tags: %v", err)
			}
			if !strings.Contains(tags, "synthetic remix") {
				t.Fatalf("expected remix comment tag, got %q", tags)
			}
			if _, err := os.Stat(strings.TrimSuffix(out, ".mp3") + ".ass"); err != nil {
				t.Fatalf("captions missing: %v", err)
			}
		})
	}
}

// TestE2E_Run drives the full chain against the real services. It needs
// network access, both API keys and WORDSPLICE_E2E_VIDEO.
func TestE2E_Run(t *testing.T) {
	video := os.Getenv("WORDSPLICE_E2E_VIDEO")
	if video == "" || os.Getenv("ELEVENLABS_API_KEY") == "" || os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("set WORDSPLICE_E2E_VIDEO, ELEVENLABS_API_KEY and GEMINI_API_KEY to run")
	}
	out := t.TempDir()

	res := runCLIWithTimeout(t, []string{"run", video, "--out", out, "--spans", "3", "--unmatched", "drop-word"}, map[string]string{
		"ELEVENLABS_API_KEY": os.Getenv("ELEVENLABS_API_KEY"),
		"GEMINI_API_KEY":     os.Getenv("GEMINI_API_KEY"),
	}, e2eTimeout)
	if res.exitCode != 0 {
		t.Fatalf("run failed (%d):\n%s", res.exitCode, res.output)
	}
	for _, want := range []string{"[1/4] fetch ok", "[4/4] splice ok"} {
		if !strings.Contains(res.output, want) {
			t.Fatalf("expected %q in output:\n%s", want, res.output)
		}
	}
	matches, _ := filepath.Glob(filepath.Join(out, "*_remix_fake.mp3"))
	if len(matches) != 1 {
		t.Fatalf("expected one remix file in %s, got %v", out, matches)
	}
	if sec, err := probeDurationSeconds(matches[0]); err != nil || sec <= 0 {
		t.Fatalf("remix has no duration: %v %v", sec, err)
	}
}
