package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/forPelevin/wordsplice/internal/domain/transcript"
	"github.com/forPelevin/wordsplice/internal/types"
)

// ErrNoCaptions means the video has no captions in the requested language.
var ErrNoCaptions = errors.New("yt-dlp: no captions available")

type Adapter struct {
	bin string
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath}
}

// DownloadAudio fetches the best audio stream and converts it to MP3 at
// <outDir>/<videoID>.mp3, replacing any previous download.
func (a *Adapter) DownloadAudio(ctx context.Context, url, outDir, videoID string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, a.bin, audioArgs(url, outDir, videoID)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp download audio: %w\n%s", err, string(b))
	}
	out := filepath.Join(outDir, videoID+".mp3")
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("yt-dlp download audio: expected %s: %w", out, err)
	}
	return out, nil
}

// FetchCaptions downloads manual or automatic captions without the media.
func (a *Adapter) FetchCaptions(ctx context.Context, url, lang string) ([]types.Caption, error) {
	tmp, err := os.MkdirTemp("", "wordsplice-captions-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	cmd := exec.CommandContext(ctx, a.bin, captionArgs(url, tmp, lang)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp fetch captions: %w\n%s", err, string(b))
	}

	matches, err := filepath.Glob(filepath.Join(tmp, "*.json3"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoCaptions
	}
	// Manual subs and auto subs of the same language share a file name, so
	// the first match is as good as any.
	sort.Strings(matches)
	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, err
	}
	caps, err := transcript.ParseJSON3(raw)
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		return nil, ErrNoCaptions
	}
	return caps, nil
}

func audioArgs(url, outDir, videoID string) []string {
	return []string{
		"--no-playlist",
		"--force-overwrites",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"-o", filepath.Join(outDir, videoID+".%(ext)s"),
		url,
	}
}

func captionArgs(url, outDir, lang string) []string {
	if lang == "" {
		lang = "en"
	}
	return []string{
		"--no-playlist",
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", "json3",
		"-o", filepath.Join(outDir, "captions.%(ext)s"),
		url,
	}
}
