// Package preflight reports whether the external tools and credentials a
// run needs are present.
package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/forPelevin/wordsplice/internal/config"
)

// Requirement is an executable wordsplice shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check is one credential check.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "yt-dlp", Command: cfg.Tools.YTDLP, Description: "audio and caption download"},
		{Name: "ffmpeg", Command: cfg.Tools.FFmpeg, Description: "cutting and joining audio"},
		{Name: "ffprobe", Command: cfg.Tools.FFprobe, Description: "duration checks"},
	}
	reqs = append(reqs, Requirement{
		Name:        "whisper.cpp",
		Command:     cfg.Tools.WhisperBin,
		Description: "local transcription",
		Optional:    cfg.Transcriber != config.TranscriberWhisperCPP,
	})
	return reqs
}

func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Detail = path
		results = append(results, status)
	}
	return results
}

// CheckKeys reports the API keys of the configured providers without
// revealing them.
func CheckKeys(cfg *config.Config) []Check {
	var out []Check
	switch cfg.Transcriber {
	case config.TranscriberElevenLabs:
		out = append(out, keyCheck("ELEVENLABS_API_KEY", cfg.RequireTranscriber()))
	case config.TranscriberGemini:
		out = append(out, keyCheck("GEMINI_API_KEY (transcribe)", cfg.RequireTranscriber()))
	}
	name := "GEMINI_API_KEY"
	if cfg.LLM.Provider == config.ProviderOpenRouter {
		name = "OPENROUTER_API_KEY"
	}
	out = append(out, keyCheck(name, cfg.RequireLLM()))
	if cfg.Transcriber == config.TranscriberWhisperCPP {
		model := strings.TrimSpace(cfg.Tools.WhisperModel)
		out = append(out, Check{Name: "whisper model", OK: model != "", Detail: model})
	}
	return out
}

func keyCheck(name string, err error) Check {
	if err != nil {
		return Check{Name: name, Detail: "missing"}
	}
	return Check{Name: name, OK: true, Detail: "set"}
}

// Missing reports the required binaries that were not found, nil when
// every one is available.
func Missing(bins []Status) error {
	var missing []string
	for _, b := range bins {
		if !b.Available && !b.Optional {
			missing = append(missing, fmt.Sprintf("%s (%s)", b.Name, b.Detail))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s; run `wordsplice doctor` for details", strings.Join(missing, ", "))
}

// Ready is false when a required binary or key is missing.
func Ready(bins []Status, keys []Check) bool {
	for _, b := range bins {
		if !b.Available && !b.Optional {
			return false
		}
	}
	for _, k := range keys {
		if !k.OK {
			return false
		}
	}
	return true
}
