package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forPelevin/wordsplice/internal/domain/selection"
	"github.com/forPelevin/wordsplice/internal/pipeline"
	"github.com/forPelevin/wordsplice/internal/preflight"
	"github.com/forPelevin/wordsplice/internal/usecase"
)

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().String("sub-lang", "en", "Caption language to fetch")
}

func addForceFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("force", false, "Download and transcribe again even when the output files exist")
}

func addTranscribeFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "elevenlabs", "Transcriber: elevenlabs, whispercpp or gemini")
	cmd.Flags().String("language", "", "Language code hint for the transcriber (empty = auto)")
}

func addSelectFlags(cmd *cobra.Command) {
	cmd.Flags().String("llm", "gemini", "Language model provider: gemini or openrouter")
	cmd.Flags().String("model", "", "Model name (default depends on provider)")
	cmd.Flags().Float64("temperature", 0, "Sampling temperature for the language model (0 = provider default)")
	cmd.Flags().Int("spans", selection.DefaultSpans, "Number of word spans to ask for")
	cmd.Flags().String("unmatched", string(selection.PolicyFail), "Picked words missing from the transcript: fail, drop-word or drop-span")
}

func addSpliceFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("merge-gap", 0, "Merge cuts at most this many seconds apart (0 = off)")
	cmd.Flags().Bool("reencode", false, "Re-encode cuts with libmp3lame instead of stream copy")
	cmd.Flags().Float64("tolerance", 0.05, "Warn when the output duration is off by more than this many seconds")
}

func newFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url-or-id>",
		Short: "Download a video's audio and captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioOnly, _ := cmd.Flags().GetBool("audio-only")
			captionsOnly, _ := cmd.Flags().GetBool("captions-only")

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			res, err := p.Fetch(ctx, args[0], pipeline.FetchOptions{AudioOnly: audioOnly, CaptionsOnly: captionsOnly})
			if err != nil {
				return err
			}
			a.printFetch(res)
			return nil
		},
	}
	cmd.Flags().Bool("audio-only", false, "Skip captions")
	cmd.Flags().Bool("captions-only", false, "Skip the audio download")
	cmd.MarkFlagsMutuallyExclusive("audio-only", "captions-only")
	addFetchFlags(cmd)
	addForceFlag(cmd)
	return cmd
}

func newTranscribeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <audio>",
		Short: "Transcribe an audio file into word-timestamped tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			res, err := p.Transcribe(ctx, args[0])
			if err != nil {
				return err
			}
			a.printTranscribe(res)
			return nil
		},
	}
	addTranscribeFlags(cmd)
	addForceFlag(cmd)
	return cmd
}

func newSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <transcript.json>",
		Short: "Ask a language model to pick words for the remix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			res, err := p.Select(ctx, args[0])
			if err != nil {
				return err
			}
			a.printSelect(res)
			return nil
		},
	}
	addSelectFlags(cmd)
	return cmd
}

func newSpliceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "splice <timed-selection.json> <audio>",
		Short: "Cut the selected words out of the audio and join them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFile, _ := cmd.Flags().GetString("out-file")

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			res, err := p.Splice(ctx, args[0], args[1], outFile)
			if err != nil {
				return err
			}
			a.printSplice(res)
			return nil
		},
	}
	cmd.Flags().StringP("out-file", "o", "", "Output file (default: <selection>_fake.mp3)")
	addSpliceFlags(cmd)
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <video-id-or-url>",
		Short: "Fetch, transcribe, select and splice in one go",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			a.log.Info().Str("source", args[0]).Msg("starting run")
			job, err := p.Run(ctx, args[0], a.stdout)
			if err != nil {
				return err
			}
			a.printSelect(job.Select)
			a.printSplice(job.Splice)
			return nil
		},
	}
	addFetchFlags(cmd)
	addTranscribeFlags(cmd)
	addSelectFlags(cmd)
	addSpliceFlags(cmd)
	addForceFlag(cmd)
	return cmd
}

var errNotReady = errors.New("preflight failed: required tools or keys are missing")

func newDoctorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bins := preflight.CheckBinaries(preflight.Requirements(a.cfg))
			keys := preflight.CheckKeys(a.cfg)

			rows := make([][]string, 0, len(bins)+len(keys))
			for _, b := range bins {
				state := "ok"
				switch {
				case !b.Available && b.Optional:
					state = "optional"
				case !b.Available:
					state = "missing"
				}
				rows = append(rows, []string{b.Name, state, b.Detail})
			}
			for _, k := range keys {
				state := "ok"
				if !k.OK {
					state = "missing"
				}
				rows = append(rows, []string{k.Name, state, k.Detail})
			}
			fmt.Fprintln(a.stdout, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if a.cfg.File != "" {
				fmt.Fprintf(a.stdout, "config: %s\n", a.cfg.File)
			}

			if !preflight.Ready(bins, keys) {
				return errNotReady
			}
			return nil
		},
	}
	addTranscribeFlags(cmd)
	cmd.Flags().String("llm", "gemini", "Language model provider: gemini or openrouter")
	return cmd
}

func (a *app) printFetch(res usecase.FetchResult) {
	if res.AudioPath != "" {
		size := "?"
		if st, err := os.Stat(res.AudioPath); err == nil {
			size = humanize.Bytes(uint64(st.Size()))
		}
		fmt.Fprintf(a.stdout, "audio: %s (%s, %s)\n", res.AudioPath, size, fmtDuration(res.Duration))
	}
	if res.CaptionsJSON != "" {
		fmt.Fprintf(a.stdout, "captions: %s (%d lines)\n", res.CaptionsJSON, res.Captions)
	}
}

func (a *app) printTranscribe(res usecase.TranscribeResult) {
	note := ""
	if res.Reused {
		note = ", existing"
	}
	fmt.Fprintf(a.stdout, "transcript: %s (%s words%s)\n", res.JSONPath, humanize.Comma(int64(len(res.Transcript.Tokens))), note)
	fmt.Fprintf(a.stdout, "text: %s\n", res.TextPath)
}

func (a *app) printSelect(res usecase.SelectResult) {
	rows := make([][]string, 0, len(res.Timed))
	for i, p := range res.Timed {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(p.Span),
			strconv.Itoa(p.Index),
			p.Text,
			fmt.Sprintf("%.2f", p.Start),
			fmt.Sprintf("%.2f", p.End),
		})
	}
	fmt.Fprintln(a.stdout, renderTable(
		[]string{"#", "Span", "Index", "Word", "Start", "End"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignRight},
	))
	if len(res.Dropped) > 0 {
		fmt.Fprintf(a.stdout, "dropped: %d word(s) not found in the transcript\n", len(res.Dropped))
	}
	fmt.Fprintf(a.stdout, "remix: %s\n", selection.Sentence(res.Timed))
	fmt.Fprintf(a.stdout, "selection: %s\n", res.TimedPath)
}

func (a *app) printSplice(res usecase.SpliceResult) {
	fmt.Fprintf(a.stdout, "output: %s (%d cuts, expected %.2fs, actual %.2fs)\n",
		res.OutPath, len(res.Ranges), res.Expected, res.Actual)
	if res.Captions != "" {
		fmt.Fprintf(a.stdout, "captions: %s\n", res.Captions)
	}
}

func fmtDuration(sec float64) string {
	return (time.Duration(sec * float64(time.Second))).Round(time.Second).String()
}
