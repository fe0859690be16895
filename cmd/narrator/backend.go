package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
	"github.com/nadzzz/narrator/internal/tts/speech"
	"github.com/nadzzz/narrator/internal/tts/tone"
	"github.com/nadzzz/narrator/internal/tts/wyoming"
)

// backend builds the configured synthesizer for the pipeline.
type backend struct {
	cfg *config.Config
}

func (b *backend) Name() string { return b.cfg.TTS.Backend }

func (b *backend) build() (tts.Synthesizer, error) {
	switch b.cfg.TTS.Backend {
	case "wyoming":
		return wyoming.New(b.cfg.TTS.Wyoming)
	case "speech":
		return speech.New(b.cfg.TTS.Speech)
	case "tone":
		return tone.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown tts backend %q", tts.ErrSetup, b.cfg.TTS.Backend)
	}
}

// Detect probes a throwaway instance of the backend.
func (b *backend) Detect(ctx context.Context) (*tts.DeviceInfo, error) {
	s, err := b.build()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Probe(ctx)
}

// Open returns the synthesizer for a run, behind the chunk cache when it is
// enabled.
func (b *backend) Open(_ context.Context) (tts.Synthesizer, error) {
	s, err := b.build()
	if err != nil {
		return nil, err
	}
	if !b.cfg.Cache.Enabled {
		return s, nil
	}

	cached, err := tts.Cached(s, b.cfg.Cache.Dir)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	slog.Debug("chunk cache enabled", "dir", b.cfg.Cache.Dir)
	return cached, nil
}
