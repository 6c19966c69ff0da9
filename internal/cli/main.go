package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forPelevin/wordsplice/internal/config"
	"github.com/forPelevin/wordsplice/internal/logging"
	"github.com/forPelevin/wordsplice/internal/pipeline"
)

// app is the state shared by all subcommands once the root pre-run has
// loaded configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgPath string
	verbose bool
	quiet   bool
	timeout time.Duration

	cfg   *config.Config
	log   zerolog.Logger
	runID string
}

// flagKeys maps command-line flags onto configuration keys. A flag only
// overrides the key when it was set explicitly.
var flagKeys = map[string]string{
	"out":         "out_dir",
	"sub-lang":    "sub_lang",
	"provider":    "transcriber",
	"language":    "elevenlabs.language",
	"llm":         "llm.provider",
	"model":       "llm.model",
	"temperature": "llm.temperature",
	"force":       "force",
	"spans":       "select.spans",
	"unmatched":   "select.unmatched",
	"merge-gap":   "splice.merge_gap",
	"reencode":    "splice.reencode",
	"tolerance":   "splice.tolerance",
	"log-format":  "log.format",
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRoot(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "wordsplice",
		Short:         "Remix a video's audio by re-ordering the words its speaker said",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "Config file (default: ./wordsplice.yaml or ~/.config/wordsplice/)")
	pf.String("out", "downloads", "Output directory")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Only log errors")
	pf.String("log-format", "auto", "Log format: auto, console or json")
	pf.DurationVar(&a.timeout, "timeout", 2*time.Hour, "Overall time limit")

	root.AddCommand(
		newFetchCmd(a),
		newTranscribeCmd(a),
		newSelectCmd(a),
		newSpliceCmd(a),
		newRunCmd(a),
		newDoctorCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var opts []config.Option
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		opts = append(opts, config.WithOverride(key, flagValue(cmd, f)))
	})

	cfg, err := config.Load(a.cfgPath, opts...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.runID = uuid.NewString()
	a.log = logging.New(a.stderr, logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: a.verbose,
		Quiet:   a.quiet,
	}).With().Str("run_id", a.runID).Str("cmd", cmd.Name()).Logger()

	if cfg.File != "" {
		a.log.Debug().Str("file", cfg.File).Msg("config loaded")
	}
	return nil
}

// flagValue returns the typed value so viper decodes numbers and booleans
// without string parsing.
func flagValue(cmd *cobra.Command, f *pflag.Flag) any {
	fs := cmd.Flags()
	switch f.Value.Type() {
	case "bool":
		v, _ := fs.GetBool(f.Name)
		return v
	case "int":
		v, _ := fs.GetInt(f.Name)
		return v
	case "float64":
		v, _ := fs.GetFloat64(f.Name)
		return v
	default:
		return f.Value.String()
	}
}

// context is cancelled on SIGINT/SIGTERM or when the timeout elapses.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(a.cfg, a.log)
}
