// Package speech implements the TTS Synthesizer against an OpenAI-compatible
// /audio/speech endpoint, such as a self-hosted Tortoise or Kokoro server.
//
// Audio is requested as WAV so it can be decoded without an external
// transcoder. The unconditioned voice is sent as an empty voice name, which
// compatible servers treat as "no conditioning".
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

// Synthesizer implements tts.Synthesizer using the go-openai client.
type Synthesizer struct {
	client  *openai.Client
	model   string
	baseURL string
}

// New creates a speech synthesizer from config.
func New(cfg config.SpeechConfig) (*Synthesizer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: no speech base_url configured", tts.ErrSetup)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: no speech model configured", tts.ErrSetup)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Synthesizer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		baseURL: clientCfg.BaseURL,
	}, nil
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "speech" }

// Probe lists the server's models and reports whether the configured one is
// among them.
func (s *Synthesizer) Probe(ctx context.Context) (*tts.DeviceInfo, error) {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}

	device := fmt.Sprintf("%s @ %s", s.model, s.baseURL)
	found := false
	for _, m := range models.Models {
		if m.ID == s.model {
			found = true
			break
		}
	}
	if !found {
		slog.Warn("speech server does not list the configured model", "model", s.model, "models", len(models.Models))
	}
	return &tts.DeviceInfo{Backend: s.Name(), Device: device}, nil
}

// LoadVoice resolves the voice selector. Named voices are validated by the
// server on first use.
func (s *Synthesizer) LoadVoice(_ context.Context, name string) (*tts.Voice, error) {
	if tts.IsRandom(name) {
		return tts.Unconditioned(), nil
	}
	return &tts.Voice{Name: strings.TrimSpace(name), Conditioned: true}, nil
}

// Synthesize requests WAV audio for text and decodes it.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*audio.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", tts.ErrSynthesis)
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		ResponseFormat: openai.SpeechResponseFormatWav,
	}
	if opts.Voice != nil && opts.Voice.Conditioned {
		req.Voice = openai.SpeechVoice(opts.Voice.Name)
	}

	slog.Debug("speech synthesize", "text_length", len(text), "voice", opts.Voice.String(), "model", s.model)

	resp, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: speech request: %v", tts.ErrSynthesis, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading speech response: %v", tts.ErrSynthesis, err)
	}

	w, err := audio.DecodeWAV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tts.ErrSynthesis, err)
	}
	if w.SampleRate != audio.SampleRate || w.Channels != audio.Mono {
		return nil, fmt.Errorf("%w: server returned %d Hz / %d channels, need %d Hz mono",
			tts.ErrSynthesis, w.SampleRate, w.Channels, audio.SampleRate)
	}
	return w, nil
}

// Close is a no-op; the HTTP client holds no per-run state.
func (s *Synthesizer) Close() error { return nil }
