package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/forPelevin/wordsplice/internal/domain/media"
	"github.com/forPelevin/wordsplice/internal/domain/selection"
	"github.com/forPelevin/wordsplice/internal/domain/splice"
	"github.com/forPelevin/wordsplice/internal/domain/subtitles"
	"github.com/forPelevin/wordsplice/internal/domain/transcript"
	"github.com/forPelevin/wordsplice/internal/ports"
	"github.com/forPelevin/wordsplice/internal/types"
)

// ErrNoAudio reports a download that produced an empty or unreadable file.
var ErrNoAudio = errors.New("downloaded audio has no duration")

type Deps struct {
	Downloader ports.Downloader
	ASR        ports.ASR
	LLM        ports.LLM
	Audio      ports.AudioTool
	Log        zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

// Job carries the results of each stage to the next when they run in one
// process.
type Job struct {
	Source     string
	VideoID    string
	Fetch      FetchResult
	Transcribe TranscribeResult
	Select     SelectResult
	Splice     SpliceResult
}

type FetchInput struct {
	Source       string
	OutDir       string
	SubLang      string
	AudioOnly    bool
	CaptionsOnly bool
	// Force downloads again even when the files exist.
	Force bool
}

type FetchResult struct {
	VideoID      string
	AudioPath    string
	Duration     float64
	Captions     int
	CaptionsJSON string
	CaptionsText string
}

func (u Usecase) Fetch(ctx context.Context, in FetchInput) (FetchResult, error) {
	if in.AudioOnly && in.CaptionsOnly {
		return FetchResult{}, errors.New("audio-only and captions-only are mutually exclusive")
	}
	id := media.VideoID(in.Source)
	url := media.SourceURL(in.Source)
	paths := FetchPaths(in.OutDir, id)
	res := FetchResult{VideoID: id}
	log := u.d.Log.With().Str("video_id", id).Logger()

	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return FetchResult{}, err
	}

	if !in.CaptionsOnly {
		audio := paths.Audio
		downloaded := false
		if !in.Force && exists(audio) {
			log.Info().Str("path", audio).Msg("audio exists, skipping download")
		} else {
			log.Info().Str("url", url).Msg("downloading audio")
			var err error
			if audio, err = u.d.Downloader.DownloadAudio(ctx, url, in.OutDir, id); err != nil {
				return FetchResult{}, err
			}
			downloaded = true
		}
		dur, err := u.d.Audio.ProbeDuration(ctx, audio)
		if err == nil && dur <= 0 {
			err = ErrNoAudio
		}
		if err != nil {
			if downloaded {
				_ = os.Remove(audio)
			}
			return FetchResult{}, fmt.Errorf("read duration of %s: %w", audio, err)
		}
		res.AudioPath = audio
		res.Duration = dur
		log.Info().Str("path", audio).Float64("duration_sec", dur).Msg("audio ready")
	}

	if !in.AudioOnly && !in.Force && exists(paths.CaptionsJSON) && exists(paths.CaptionsText) {
		var caps []types.Caption
		if err := readJSON(paths.CaptionsJSON, &caps); err == nil {
			log.Info().Str("path", paths.CaptionsJSON).Msg("captions exist, skipping download")
			res.Captions = len(caps)
			res.CaptionsJSON = paths.CaptionsJSON
			res.CaptionsText = paths.CaptionsText
			return res, nil
		}
	}
	if !in.AudioOnly {
		caps, err := u.d.Downloader.FetchCaptions(ctx, url, in.SubLang)
		switch {
		case err != nil && in.CaptionsOnly:
			return FetchResult{}, err
		case err != nil:
			log.Warn().Err(err).Msg("captions unavailable, continuing without them")
		default:
			caps = transcript.ClampCaptions(caps)
			err := writeAll(
				jsonArtifact(paths.CaptionsJSON, caps),
				textArtifact(paths.CaptionsText, transcript.RenderCaptions(caps)),
			)
			if err != nil {
				return FetchResult{}, err
			}
			res.Captions = len(caps)
			res.CaptionsJSON = paths.CaptionsJSON
			res.CaptionsText = paths.CaptionsText
			log.Info().Int("captions", len(caps)).Str("path", paths.CaptionsJSON).Msg("captions written")
		}
	}
	return res, nil
}

type TranscribeInput struct {
	AudioPath string
	// Provider names the output files, e.g. "elevenlabs".
	Provider string
	// Force transcribes again even when the transcript file exists.
	Force bool
}

type TranscribeResult struct {
	Transcript types.Transcript
	JSONPath   string
	TextPath   string
	// Reused is set when an existing transcript file was loaded.
	Reused bool
}

func (u Usecase) Transcribe(ctx context.Context, in TranscribeInput) (TranscribeResult, error) {
	if _, err := os.Stat(in.AudioPath); err != nil {
		return TranscribeResult{}, fmt.Errorf("stat audio: %w", err)
	}
	paths := TranscriptPaths(in.AudioPath, in.Provider)
	if !in.Force && exists(paths.JSON) {
		var prev types.Transcript
		err := readJSON(paths.JSON, &prev)
		if err == nil {
			u.d.Log.Info().Str("path", paths.JSON).Int("words", len(prev.Tokens)).Msg("transcript exists, skipping transcription")
			return TranscribeResult{Transcript: prev, JSONPath: paths.JSON, TextPath: paths.Text, Reused: true}, nil
		}
		u.d.Log.Warn().Err(err).Str("path", paths.JSON).Msg("existing transcript unreadable, transcribing again")
	}

	tr, err := u.d.ASR.Transcribe(ctx, in.AudioPath)
	if err != nil {
		return TranscribeResult{}, err
	}
	for _, v := range transcript.CheckOrdering(tr.Tokens) {
		u.d.Log.Warn().Int("token", v.Index).Str("reason", v.Reason).Msg("non-monotonic word timing")
	}

	err = writeAll(
		jsonArtifact(paths.JSON, tr),
		textArtifact(paths.Text, transcript.RenderText(tr.Tokens)),
	)
	if err != nil {
		return TranscribeResult{}, err
	}
	u.d.Log.Info().
		Int("words", len(tr.Tokens)).
		Str("language", tr.LanguageCode).
		Str("path", paths.JSON).
		Msg("transcript written")
	return TranscribeResult{Transcript: tr, JSONPath: paths.JSON, TextPath: paths.Text}, nil
}

type SelectInput struct {
	TranscriptPath string
	// Transcript skips reading TranscriptPath when set.
	Transcript *types.Transcript
	Spans      int
	Policy     selection.Policy
}

type SelectResult struct {
	Picks     []types.Pick
	Timed     []types.TimedPick
	Dropped   []types.Pick
	PicksPath string
	TimedPath string
	TextPath  string
}

func (u Usecase) Select(ctx context.Context, in SelectInput) (SelectResult, error) {
	var tr types.Transcript
	if in.Transcript != nil {
		tr = *in.Transcript
	} else {
		if err := readJSON(in.TranscriptPath, &tr); err != nil {
			return SelectResult{}, err
		}
	}
	if len(tr.Tokens) == 0 {
		return SelectResult{}, selection.ErrEmptyTranscript
	}

	picks, err := u.pick(ctx, tr.Tokens, in.Spans)
	if err != nil {
		return SelectResult{}, err
	}
	timed, dropped, err := selection.Attach(tr.Tokens, picks, in.Policy)
	if err != nil {
		return SelectResult{}, err
	}
	for _, p := range dropped {
		u.d.Log.Warn().Int("span", p.Span).Int("index", p.Index).Str("word", p.Text).Msg("dropped word not found in transcript")
	}

	paths := SelectionPaths(in.TranscriptPath)
	err = writeAll(
		jsonArtifact(paths.Picks, picks),
		jsonArtifact(paths.Timed, timed),
		textArtifact(paths.Text, selection.RenderText(timed)),
	)
	if err != nil {
		return SelectResult{}, err
	}
	u.d.Log.Info().Int("words", len(timed)).Str("path", paths.Timed).Msg("selection written")

	return SelectResult{
		Picks:     picks,
		Timed:     timed,
		Dropped:   dropped,
		PicksPath: paths.Picks,
		TimedPath: paths.Timed,
		TextPath:  paths.Text,
	}, nil
}

// pick asks the model once and, if the answer cannot be parsed, once more
// with a stricter prompt.
func (u Usecase) pick(ctx context.Context, tokens []types.Token, spans int) ([]types.Pick, error) {
	prompt := selection.BuildPrompt(tokens, spans)
	schema := selection.Schema()

	raw, err := u.d.LLM.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}
	picks, err := selection.Parse(raw)
	if err == nil || !errors.Is(err, selection.ErrMalformed) {
		return picks, err
	}

	u.d.Log.Warn().Err(err).Msg("model response unusable, retrying with stricter prompt")
	raw, err = u.d.LLM.GenerateJSON(ctx, selection.RetryPrompt(prompt, err), schema)
	if err != nil {
		return nil, err
	}
	picks, err = selection.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("after retry: %w", err)
	}
	return picks, nil
}

type SpliceInput struct {
	TimedPath string
	// Timed skips reading TimedPath when set.
	Timed     []types.TimedPick
	AudioPath string
	// OutPath defaults to the name derived from TimedPath.
	OutPath   string
	Source    string
	MergeGap  float64
	Tolerance float64
}

type SpliceResult struct {
	OutPath  string
	Captions string
	Ranges   []types.Range
	Expected float64
	Actual   float64
}

func (u Usecase) Splice(ctx context.Context, in SpliceInput) (SpliceResult, error) {
	timed := in.Timed
	if timed == nil {
		if err := readJSON(in.TimedPath, &timed); err != nil {
			return SpliceResult{}, err
		}
	}
	if len(timed) == 0 {
		return SpliceResult{}, selection.ErrNoSelection
	}
	if _, err := os.Stat(in.AudioPath); err != nil {
		return SpliceResult{}, fmt.Errorf("stat audio: %w", err)
	}
	out := in.OutPath
	if out == "" {
		out = SplicePath(in.TimedPath)
	}

	ranges := splice.Plan(timed, in.MergeGap)
	tmp, err := os.MkdirTemp("", "wordsplice-splice-*")
	if err != nil {
		return SpliceResult{}, err
	}
	defer os.RemoveAll(tmp)

	parts := make([]string, 0, len(ranges))
	for i, r := range ranges {
		part := filepath.Join(tmp, splice.SegmentName(i))
		u.d.Log.Debug().
			Int("segment", i+1).
			Float64("start", r.Start).
			Float64("end", r.End).
			Str("text", r.Text).
			Msg("cutting")
		if err := u.d.Audio.ExtractRange(ctx, in.AudioPath, r, part); err != nil {
			return SpliceResult{}, err
		}
		parts = append(parts, part)
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return SpliceResult{}, err
		}
	}
	comment := splice.Comment(in.Source)
	if err := u.d.Audio.Concat(ctx, parts, out, comment); err != nil {
		_ = os.Remove(out)
		return SpliceResult{}, err
	}
	expected := splice.Expected(ranges)
	actual, err := u.d.Audio.ProbeDuration(ctx, out)
	if err != nil {
		_ = os.Remove(out)
		return SpliceResult{}, fmt.Errorf("read spliced duration: %w", err)
	}
	captions := CaptionsPath(out)
	if err := writeText(captions, subtitles.RenderRemixASS(ranges, comment)); err != nil {
		_ = os.Remove(out)
		return SpliceResult{}, err
	}

	diff, over := splice.Deviation(expected, actual, in.Tolerance)
	level := zerolog.InfoLevel
	if over {
		level = zerolog.WarnLevel
	}
	u.d.Log.WithLevel(level).
		Float64("expected_sec", expected).
		Float64("actual_sec", actual).
		Float64("diff_sec", diff).
		Int("segments", len(ranges)).
		Str("path", out).
		Msg("remix written")

	return SpliceResult{OutPath: out, Captions: captions, Ranges: ranges, Expected: expected, Actual: actual}, nil
}
