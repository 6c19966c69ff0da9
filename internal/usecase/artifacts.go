package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FetchArtifacts struct {
	Audio        string
	CaptionsJSON string
	CaptionsText string
}

func FetchPaths(outDir, videoID string) FetchArtifacts {
	return FetchArtifacts{
		Audio:        filepath.Join(outDir, videoID+".mp3"),
		CaptionsJSON: filepath.Join(outDir, videoID+"_transcript.json"),
		CaptionsText: filepath.Join(outDir, videoID+"_transcript.txt"),
	}
}

type TranscriptArtifacts struct {
	JSON string
	Text string
}

func TranscriptPaths(audioPath, provider string) TranscriptArtifacts {
	if provider == "" {
		provider = "elevenlabs"
	}
	base := trimExt(audioPath) + "_" + provider + "_transcript"
	return TranscriptArtifacts{JSON: base + ".json", Text: base + ".txt"}
}

type SelectionArtifacts struct {
	Picks string
	Timed string
	Text  string
}

func SelectionPaths(transcriptPath string) SelectionArtifacts {
	base := trimExt(transcriptPath) + "_remix"
	return SelectionArtifacts{
		Picks: base + ".json",
		Timed: base + "_with_timing.json",
		Text:  base + ".txt",
	}
}

// SplicePath names the output audio after the timed selection file, without
// its "_with_timing" suffix.
func SplicePath(timedPath string) string {
	return strings.TrimSuffix(trimExt(timedPath), "_with_timing") + "_fake.mp3"
}

// CaptionsPath puts the karaoke track next to the spliced audio.
func CaptionsPath(outPath string) string {
	return trimExt(outPath) + ".ass"
}

func trimExt(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p))
}

// artifact is one output file rendered before anything is written.
type artifact struct {
	path string
	data []byte
	err  error
}

func jsonArtifact(path string, v any) artifact {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return artifact{path: path, err: fmt.Errorf("marshal %s: %w", filepath.Base(path), err)}
	}
	return artifact{path: path, data: append(b, '\n')}
}

func textArtifact(path, s string) artifact {
	return artifact{path: path, data: []byte(s)}
}

// writeAll writes every artifact or none of them: on the first failure the
// files already written are removed.
func writeAll(arts ...artifact) error {
	for _, a := range arts {
		if a.err != nil {
			return a.err
		}
	}
	for i, a := range arts {
		if err := writeFile(a.path, a.data); err != nil {
			for _, done := range arts[:i] {
				_ = os.Remove(done.path)
			}
			return err
		}
	}
	return nil
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func writeJSON(path string, v any) error { return writeAll(jsonArtifact(path, v)) }

func writeText(path, s string) error { return writeAll(textArtifact(path, s)) }

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
