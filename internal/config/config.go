package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"

	TranscriberElevenLabs = "elevenlabs"
	TranscriberWhisperCPP = "whispercpp"
	TranscriberGemini     = "gemini"

	UnmatchedFail     = "fail"
	UnmatchedDropWord = "drop-word"
	UnmatchedDropSpan = "drop-span"
)

type ElevenLabs struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model" validate:"required"`
	BaseURL        string `mapstructure:"base_url"`
	Language       string `mapstructure:"language"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// GeminiASR configures transcription with Gemini. Long recordings are sent
// in overlapping chunks.
type GeminiASR struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model" validate:"required"`
	BaseURL        string `mapstructure:"base_url"`
	ChunkSeconds   int    `mapstructure:"chunk_seconds" validate:"gte=30"`
	OverlapSeconds int    `mapstructure:"overlap_seconds" validate:"gte=0,ltfield=ChunkSeconds"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

type LLM struct {
	Provider       string   `mapstructure:"provider" validate:"oneof=gemini openrouter"`
	APIKey         string   `mapstructure:"api_key"`
	Model          string   `mapstructure:"model"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedHosts   []string `mapstructure:"allowed_hosts"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" validate:"gte=0"`
	Temperature    float64  `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

type Tools struct {
	YTDLP        string `mapstructure:"ytdlp" validate:"required"`
	FFmpeg       string `mapstructure:"ffmpeg" validate:"required"`
	FFprobe      string `mapstructure:"ffprobe" validate:"required"`
	WhisperBin   string `mapstructure:"whisper_bin"`
	WhisperModel string `mapstructure:"whisper_model"`
}

type Select struct {
	Spans     int    `mapstructure:"spans" validate:"min=1,max=50"`
	Unmatched string `mapstructure:"unmatched" validate:"oneof=fail drop-word drop-span"`
}

type Splice struct {
	MergeGap  float64 `mapstructure:"merge_gap" validate:"gte=0"`
	Reencode  bool    `mapstructure:"reencode"`
	Tolerance float64 `mapstructure:"tolerance" validate:"gte=0"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=auto console json"`
}

// Config is the merged view of defaults, the optional config file and the
// environment (including a best-effort .env).
type Config struct {
	OutDir      string `mapstructure:"out_dir" validate:"required"`
	SubLang     string `mapstructure:"sub_lang"`
	Transcriber string `mapstructure:"transcriber" validate:"oneof=elevenlabs whispercpp gemini"`
	// Force repeats downloads and transcriptions whose output files exist.
	Force      bool       `mapstructure:"force"`
	ElevenLabs ElevenLabs `mapstructure:"elevenlabs"`
	GeminiASR  GeminiASR  `mapstructure:"gemini_asr"`
	LLM        LLM        `mapstructure:"llm"`
	Tools      Tools      `mapstructure:"tools"`
	Select     Select     `mapstructure:"select"`
	Splice     Splice     `mapstructure:"splice"`
	Log        Log        `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("out_dir", "downloads")
	v.SetDefault("sub_lang", "en")
	v.SetDefault("transcriber", TranscriberElevenLabs)
	v.SetDefault("force", false)

	v.SetDefault("elevenlabs.api_key", "")
	v.SetDefault("elevenlabs.model", "scribe_v1")
	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("elevenlabs.language", "")
	v.SetDefault("elevenlabs.timeout_seconds", 1800)

	v.SetDefault("gemini_asr.api_key", "")
	v.SetDefault("gemini_asr.model", "gemini-2.0-flash")
	v.SetDefault("gemini_asr.base_url", "")
	v.SetDefault("gemini_asr.chunk_seconds", 300)
	v.SetDefault("gemini_asr.overlap_seconds", 5)
	v.SetDefault("gemini_asr.timeout_seconds", 300)

	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.allowed_hosts", []string{})
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.temperature", 0.0)

	v.SetDefault("tools.ytdlp", "yt-dlp")
	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.ffprobe", "ffprobe")
	v.SetDefault("tools.whisper_bin", ".cache/bin/whisper.cpp")
	v.SetDefault("tools.whisper_model", ".cache/models/ggml-base.bin")

	v.SetDefault("select.spans", 5)
	v.SetDefault("select.unmatched", UnmatchedFail)

	v.SetDefault("splice.merge_gap", 0.0)
	v.SetDefault("splice.reencode", false)
	v.SetDefault("splice.tolerance", 0.05)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

// Option adjusts the viper instance before it is decoded.
type Option func(*viper.Viper)

// WithOverride sets key above every other source, e.g. from a command-line
// flag.
func WithOverride(key string, value any) Option {
	return func(v *viper.Viper) { v.Set(key, value) }
}

// Load reads configuration. An explicit path must exist; otherwise
// wordsplice.{yaml,toml,json} is looked up in the working directory and in
// ~/.config/wordsplice, and its absence is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for _, opt := range opts {
		opt(v)
	}

	v.SetEnvPrefix("WORDSPLICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("elevenlabs.api_key", "WORDSPLICE_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	_ = v.BindEnv("gemini_asr.api_key", "WORDSPLICE_GEMINI_ASR_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini_asr.base_url", "WORDSPLICE_GEMINI_ASR_BASE_URL", "GEMINI_BASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("wordsplice")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "wordsplice"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.applyProviderEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyProviderEnv fills LLM settings from the provider's conventional
// variables when the generic ones are unset.
func (c *Config) applyProviderEnv() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch c.LLM.Provider {
	case ProviderGemini:
		c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("GEMINI_API_KEY"))
		c.LLM.Model = firstNonEmpty(c.LLM.Model, os.Getenv("GEMINI_MODEL"), "gemini-2.0-flash")
		c.LLM.BaseURL = firstNonEmpty(c.LLM.BaseURL, os.Getenv("GEMINI_BASE_URL"))
	case ProviderOpenRouter:
		c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("OPENROUTER_API_KEY"))
		c.LLM.Model = firstNonEmpty(c.LLM.Model, os.Getenv("OPENROUTER_MODEL"), "google/gemini-2.0-flash-001")
		c.LLM.BaseURL = firstNonEmpty(c.LLM.BaseURL, os.Getenv("OPENROUTER_BASE_URL"))
		if len(c.LLM.AllowedHosts) == 0 {
			if hosts := os.Getenv("OPENROUTER_ALLOWED_HOSTS"); hosts != "" {
				c.LLM.AllowedHosts = strings.Split(hosts, ",")
			}
		}
	}
}

func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RequireTranscriber reports a missing speech-to-text key. Only stages that
// call the service need it.
func (c Config) RequireTranscriber() error {
	switch c.Transcriber {
	case TranscriberElevenLabs:
		if strings.TrimSpace(c.ElevenLabs.APIKey) == "" {
			return errors.New("ELEVENLABS_API_KEY is required (set it in .env)")
		}
	case TranscriberGemini:
		if strings.TrimSpace(c.GeminiASR.APIKey) == "" {
			return errors.New("GEMINI_API_KEY is required for --provider gemini (set it in .env)")
		}
	}
	return nil
}

func (c Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		return errors.New("OPENROUTER_API_KEY is required (set it in .env)")
	default:
		return errors.New("GEMINI_API_KEY is required (set it in .env)")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
