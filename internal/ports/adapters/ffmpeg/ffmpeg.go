package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/wordsplice/internal/types"
)

type Adapter struct {
	ffmpeg   string
	ffprobe  string
	reencode bool
}

type Option func(*Adapter)

// WithReencode makes ExtractRange re-encode to MP3 instead of stream copy.
// Copying is frame-granular (~26ms for MP3); re-encoding cuts on samples.
func WithReencode(on bool) Option {
	return func(a *Adapter) { a.reencode = on }
}

func New(ffmpegPath, ffprobePath string, opts ...Option) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	a := &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inAudio, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inAudio,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

// ExtractRange writes [r.Start, r.End) of inAudio to outAudio. The range is
// not checked against the media duration; ffmpeg decides.
func (a *Adapter) ExtractRange(ctx context.Context, inAudio string, r types.Range, outAudio string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, extractArgs(inAudio, r, outAudio, a.reencode)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract range [%s-%s]: %w\n%s", fmtSeconds(r.Start), fmtSeconds(r.End), err, string(b))
	}
	return nil
}

// Concat joins parts, in order, with the concat demuxer.
func (a *Adapter) Concat(ctx context.Context, parts []string, outAudio, comment string) error {
	if len(parts) == 0 {
		return fmt.Errorf("ffmpeg concat: no input parts")
	}
	listPath := filepath.Join(filepath.Dir(parts[0]), "concat_list.txt")
	if err := os.WriteFile(listPath, []byte(concatList(parts)), 0o644); err != nil {
		return fmt.Errorf("ffmpeg concat: write list: %w", err)
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, concatArgs(listPath, outAudio, comment)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	return parseDuration(string(b))
}

func extractArgs(inAudio string, r types.Range, outAudio string, reencode bool) []string {
	args := []string{
		"-y",
		"-ss", fmtSeconds(r.Start),
		"-t", fmtSeconds(r.Duration()),
		"-i", inAudio,
		"-vn",
	}
	if reencode {
		args = append(args, "-c:a", "libmp3lame", "-b:a", "192k")
	} else {
		args = append(args, "-c:a", "copy")
	}
	return append(args, outAudio)
}

func concatArgs(listPath, outAudio, comment string) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
	}
	if comment != "" {
		args = append(args, "-metadata", "comment="+comment)
	}
	return append(args, outAudio)
}

// concatList renders the concat demuxer script. Single quotes inside paths
// are closed, escaped and reopened as the demuxer expects.
func concatList(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
