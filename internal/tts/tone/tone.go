// Package tone is an offline Synthesizer that renders each chunk as a short
// sine tone. Output length depends only on the chunk text, so runs are
// reproducible without a speech server.
package tone

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/tts"
)

const (
	// FramesPerRune is how many samples each rune of text produces.
	FramesPerRune = audio.SampleRate / 20

	amplitude = 0.2
	baseHz    = 220.0
)

// Synthesizer renders text as tones.
type Synthesizer struct{}

// New returns a tone synthesizer.
func New() *Synthesizer { return &Synthesizer{} }

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "tone" }

// Probe reports the CPU; tones need no accelerator.
func (s *Synthesizer) Probe(context.Context) (*tts.DeviceInfo, error) {
	return &tts.DeviceInfo{Backend: s.Name(), Device: "cpu"}, nil
}

// LoadVoice accepts any voice name.
func (s *Synthesizer) LoadVoice(_ context.Context, name string) (*tts.Voice, error) {
	if tts.IsRandom(name) {
		return tts.Unconditioned(), nil
	}
	return &tts.Voice{Name: name, Conditioned: true}, nil
}

// Synthesize returns FramesPerRune samples per rune of text. Named voices
// shift the pitch so they are audibly distinct.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*audio.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", tts.ErrSynthesis, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", tts.ErrSynthesis)
	}

	freq := baseHz
	if opts.Voice != nil && opts.Voice.Conditioned {
		freq += float64(len(opts.Voice.Name)%12) * 20
	}

	n := utf8.RuneCountInString(text) * FramesPerRune
	samples := make([]float32, n)
	step := 2 * math.Pi * freq / audio.SampleRate
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(step*float64(i)))
	}
	return audio.NewWaveform(samples), nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }
