package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/wordsplice/internal/domain/transcript"
	"github.com/forPelevin/wordsplice/internal/ports/adapters/endpoint"
	"github.com/forPelevin/wordsplice/internal/types"
)

const (
	defaultModel   = "scribe_v1"
	defaultTimeout = 30 * time.Minute
	sttPath        = "/v1/speech-to-text"
)

type Config struct {
	APIKey   string
	Model    string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

type Adapter struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = endpoint.ElevenLabs.Normalize(cfg.BaseURL)
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With().Str("component", "elevenlabs").Logger(),
	}
}

// Transcribe uploads audioPath and returns the word tokens of the response.
// The multipart body is streamed, so large files are never held in memory.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return types.Transcript{}, errors.New("elevenlabs: api key required")
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("stat audio: %w", err)
	}
	a.log.Info().
		Str("file", filepath.Base(audioPath)).
		Str("size", humanize.Bytes(uint64(st.Size()))).
		Str("model", a.cfg.Model).
		Msg("uploading audio for transcription")

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.writeForm(mw, f, audioPath)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		// The transport closes the body when the service answers before
		// reading the whole upload; the status error is reported instead.
		if err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("elevenlabs: write form: %w", err)
		}
		return nil
	})

	var resp transcript.ScribeResponse
	g.Go(func() error {
		defer pr.Close()
		req, err := http.NewRequestWithContext(gctx, http.MethodPost, a.cfg.BaseURL+sttPath, pr)
		if err != nil {
			return err
		}
		req.Header.Set("xi-api-key", a.cfg.APIKey)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		res, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("elevenlabs request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			rb, readErr := io.ReadAll(res.Body)
			if readErr != nil {
				return fmt.Errorf("elevenlabs status %d and read body failed: %v", res.StatusCode, readErr)
			}
			return fmt.Errorf("elevenlabs status %d: %s", res.StatusCode, endpoint.Truncate(endpoint.Redact(string(rb), a.cfg.APIKey), 400))
		}
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			return fmt.Errorf("elevenlabs: decode response: %w", err)
		}
		a.log.Debug().Dur("took", time.Since(start)).Int("entries", len(resp.Words)).Msg("transcription received")
		return nil
	})

	if err := g.Wait(); err != nil {
		return types.Transcript{}, err
	}
	return transcript.FromScribe(resp), nil
}

func (a *Adapter) writeForm(mw *multipart.Writer, f io.Reader, audioPath string) error {
	fields := [][2]string{
		{"model_id", a.cfg.Model},
		{"timestamps_granularity", "word"},
		{"tag_audio_events", "false"},
	}
	if lang := strings.TrimSpace(a.cfg.Language); lang != "" && !strings.EqualFold(lang, "auto") {
		fields = append(fields, [2]string{"language_code", lang})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(audioPath))))
	h.Set("Content-Type", mimeFromExt(filepath.Ext(audioPath)))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/m4a"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
