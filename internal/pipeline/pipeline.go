package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/wordsplice/internal/config"
	"github.com/forPelevin/wordsplice/internal/domain/media"
	"github.com/forPelevin/wordsplice/internal/domain/selection"
	"github.com/forPelevin/wordsplice/internal/ports"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/elevenlabs"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/endpoint"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/gemini"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/openrouter"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/wordsplice/internal/preflight"
	"github.com/forPelevin/wordsplice/internal/usecase"
)

// Pipeline runs single stages or the whole chain with adapters built from
// cfg.
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger
	uc  usecase.Usecase
	// tools reports missing executables before a run starts; nil skips the check.
	tools func() error
}

// Validate checks what every stage depends on but the struct tags cannot
// express: provider base URLs.
func Validate(cfg *config.Config) error {
	if err := endpoint.ElevenLabs.Validate(cfg.ElevenLabs.BaseURL, nil); err != nil {
		return err
	}
	if cfg.Transcriber == config.TranscriberGemini {
		if err := endpoint.Gemini.Validate(cfg.GeminiASR.BaseURL, nil); err != nil {
			return err
		}
	}
	switch cfg.LLM.Provider {
	case config.ProviderOpenRouter:
		return endpoint.OpenRouter.Validate(cfg.LLM.BaseURL, cfg.LLM.AllowedHosts)
	default:
		return endpoint.Gemini.Validate(cfg.LLM.BaseURL, cfg.LLM.AllowedHosts)
	}
}

func New(cfg *config.Config, log zerolog.Logger) (*Pipeline, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	ff := ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, ffmpeg.WithReencode(cfg.Splice.Reencode))
	p := NewWithDeps(cfg, usecase.Deps{
		Downloader: ytdlp.New(cfg.Tools.YTDLP),
		ASR:        newASR(cfg, ff, log),
		LLM:        newLLM(cfg, log),
		Audio:      ff,
		Log:        log,
	})
	p.tools = func() error {
		return preflight.Missing(preflight.CheckBinaries(preflight.Requirements(cfg)))
	}
	return p, nil
}

// NewWithDeps wires caller-provided ports, e.g. fakes in tests.
func NewWithDeps(cfg *config.Config, d usecase.Deps) *Pipeline {
	return &Pipeline{cfg: cfg, log: d.Log, uc: usecase.New(d)}
}

func newASR(cfg *config.Config, ff *ffmpeg.Adapter, log zerolog.Logger) ports.ASR {
	switch cfg.Transcriber {
	case config.TranscriberWhisperCPP:
		return whispercpp.New(cfg.Tools.WhisperBin, cfg.Tools.WhisperModel, ff)
	case config.TranscriberGemini:
		a := gemini.New(gemini.Config{
			APIKey:  cfg.GeminiASR.APIKey,
			Model:   cfg.GeminiASR.Model,
			BaseURL: cfg.GeminiASR.BaseURL,
			Timeout: seconds(cfg.GeminiASR.TimeoutSeconds),
		}, log)
		return gemini.NewTranscriber(a, ff, seconds(cfg.GeminiASR.ChunkSeconds), seconds(cfg.GeminiASR.OverlapSeconds))
	}
	return elevenlabs.New(elevenlabs.Config{
		APIKey:   cfg.ElevenLabs.APIKey,
		Model:    cfg.ElevenLabs.Model,
		BaseURL:  cfg.ElevenLabs.BaseURL,
		Language: cfg.ElevenLabs.Language,
		Timeout:  seconds(cfg.ElevenLabs.TimeoutSeconds),
	}, log)
}

func newLLM(cfg *config.Config, log zerolog.Logger) ports.LLM {
	if cfg.LLM.Provider == config.ProviderOpenRouter {
		return openrouter.New(openrouter.Config{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Timeout:     seconds(cfg.LLM.TimeoutSeconds),
			Temperature: cfg.LLM.Temperature,
		}, log)
	}
	return gemini.New(gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     seconds(cfg.LLM.TimeoutSeconds),
		Temperature: cfg.LLM.Temperature,
	}, log)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

type FetchOptions struct {
	AudioOnly    bool
	CaptionsOnly bool
}

func (p *Pipeline) Fetch(ctx context.Context, source string, opts FetchOptions) (usecase.FetchResult, error) {
	return p.uc.Fetch(ctx, usecase.FetchInput{
		Source:       source,
		OutDir:       p.cfg.OutDir,
		SubLang:      p.cfg.SubLang,
		AudioOnly:    opts.AudioOnly,
		CaptionsOnly: opts.CaptionsOnly,
		Force:        p.cfg.Force,
	})
}

func (p *Pipeline) Transcribe(ctx context.Context, audioPath string) (usecase.TranscribeResult, error) {
	if err := p.cfg.RequireTranscriber(); err != nil {
		return usecase.TranscribeResult{}, err
	}
	return p.uc.Transcribe(ctx, usecase.TranscribeInput{
		AudioPath: audioPath,
		Provider:  p.cfg.Transcriber,
		Force:     p.cfg.Force,
	})
}

func (p *Pipeline) Select(ctx context.Context, transcriptPath string) (usecase.SelectResult, error) {
	return p.selectFrom(ctx, transcriptPath, nil)
}

func (p *Pipeline) selectFrom(ctx context.Context, transcriptPath string, tr *usecase.TranscribeResult) (usecase.SelectResult, error) {
	if err := p.cfg.RequireLLM(); err != nil {
		return usecase.SelectResult{}, err
	}
	policy, err := selection.ParsePolicy(p.cfg.Select.Unmatched)
	if err != nil {
		return usecase.SelectResult{}, err
	}
	in := usecase.SelectInput{TranscriptPath: transcriptPath, Spans: p.cfg.Select.Spans, Policy: policy}
	if tr != nil {
		in.Transcript = &tr.Transcript
	}
	return p.uc.Select(ctx, in)
}

// Splice cuts the selection out of audioPath. outPath may be empty.
func (p *Pipeline) Splice(ctx context.Context, timedPath, audioPath, outPath string) (usecase.SpliceResult, error) {
	return p.uc.Splice(ctx, p.spliceInput(timedPath, audioPath, outPath, ""))
}

func (p *Pipeline) spliceInput(timedPath, audioPath, outPath, source string) usecase.SpliceInput {
	return usecase.SpliceInput{
		TimedPath: timedPath,
		AudioPath: audioPath,
		OutPath:   outPath,
		Source:    source,
		MergeGap:  p.cfg.Splice.MergeGap,
		Tolerance: p.cfg.Splice.Tolerance,
	}
}

const totalSteps = 4

// Run executes fetch, transcribe, select and splice for one video, writing
// "[n/4]" status lines to status. It stops at the first failing stage.
func (p *Pipeline) Run(ctx context.Context, source string, status io.Writer) (*usecase.Job, error) {
	if err := p.cfg.RequireTranscriber(); err != nil {
		return nil, err
	}
	if err := p.cfg.RequireLLM(); err != nil {
		return nil, err
	}
	if p.tools != nil {
		if err := p.tools(); err != nil {
			return nil, err
		}
	}

	job := &usecase.Job{Source: source, VideoID: media.VideoID(source)}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"fetch", func(ctx context.Context) (err error) {
			job.Fetch, err = p.Fetch(ctx, source, FetchOptions{})
			return err
		}},
		{"transcribe", func(ctx context.Context) (err error) {
			job.Transcribe, err = p.Transcribe(ctx, job.Fetch.AudioPath)
			return err
		}},
		{"select", func(ctx context.Context) (err error) {
			job.Select, err = p.selectFrom(ctx, job.Transcribe.JSONPath, &job.Transcribe)
			return err
		}},
		{"splice", func(ctx context.Context) (err error) {
			in := p.spliceInput(job.Select.TimedPath, job.Fetch.AudioPath, "", job.VideoID)
			in.Timed = job.Select.Timed
			job.Splice, err = p.uc.Splice(ctx, in)
			return err
		}},
	}

	for i, st := range steps {
		fmt.Fprintf(status, "[%d/%d] %s ...\n", i+1, totalSteps, st.name)
		start := time.Now()
		if err := st.fn(ctx); err != nil {
			fmt.Fprintf(status, "[%d/%d] %s failed\n", i+1, totalSteps, st.name)
			return job, fmt.Errorf("%s: %w", st.name, err)
		}
		fmt.Fprintf(status, "[%d/%d] %s ok (%s)\n", i+1, totalSteps, st.name, time.Since(start).Round(10*time.Millisecond))
	}
	return job, nil
}

// ensure adapters implement ports
var _ ports.Downloader = (*ytdlp.Adapter)(nil)
var _ ports.ASR = (*elevenlabs.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.ASR = (*gemini.Transcriber)(nil)
var _ ports.LLM = (*gemini.Adapter)(nil)
var _ ports.LLM = (*openrouter.Adapter)(nil)
var _ ports.AudioTool = (*ffmpeg.Adapter)(nil)
