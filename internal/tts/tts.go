// Package tts defines the interface for text-to-speech synthesis.
//
// A Synthesizer is created once per run, asked for a voice once, and then
// called sequentially for every chunk of the document. Backends live in
// subpackages: wyoming (Wyoming protocol over TCP), speech (OpenAI-compatible
// HTTP API) and tone (an offline test signal).
package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nadzzz/narrator/internal/audio"
)

// RandomVoice selects unconditioned synthesis: no voice samples and no
// conditioning latents. It does not pick a named voice at random.
const RandomVoice = "random"

var (
	// ErrSetup is returned when a backend cannot be initialized or a voice
	// cannot be loaded.
	ErrSetup = errors.New("synthesizer setup failed")

	// ErrSynthesis is returned when a chunk cannot be synthesized.
	ErrSynthesis = errors.New("synthesis failed")
)

// Preset names a quality/speed trade-off.
type Preset string

const (
	PresetUltraFast   Preset = "ultra_fast"
	PresetFast        Preset = "fast"
	PresetStandard    Preset = "standard"
	PresetHighQuality Preset = "high_quality"
)

// Presets lists every accepted preset, fastest first.
var Presets = []Preset{PresetUltraFast, PresetFast, PresetStandard, PresetHighQuality}

// ParsePreset validates a preset name.
func ParsePreset(name string) (Preset, error) {
	p := Preset(strings.TrimSpace(name))
	for _, known := range Presets {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown preset %q (want one of %s)", name, presetList())
}

// Effective returns the preset synthesis actually runs with. Synthesis is
// pinned to ultra_fast whatever was requested.
// TODO: honor the requested preset once backends are benchmarked with it.
func (p Preset) Effective() Preset {
	return PresetUltraFast
}

func presetList() string {
	names := make([]string, len(Presets))
	for i, p := range Presets {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// Voice is the conditioning profile used for every chunk of a run.
type Voice struct {
	// Name is the backend voice identifier. Empty when unconditioned.
	Name string

	// Conditioned is false for the random voice.
	Conditioned bool
}

// Unconditioned returns the voice that RandomVoice resolves to.
func Unconditioned() *Voice {
	return &Voice{}
}

// IsRandom reports whether a voice selector means unconditioned synthesis.
func IsRandom(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == RandomVoice
}

// String returns the selector that produced the voice.
func (v *Voice) String() string {
	if v == nil || !v.Conditioned {
		return RandomVoice
	}
	return v.Name
}

// SynthesizeOpts controls synthesis of a single chunk.
type SynthesizeOpts struct {
	Voice  *Voice
	Preset Preset
}

// DeviceInfo describes where synthesis will run. It is informational only.
type DeviceInfo struct {
	Backend     string
	Device      string
	Accelerated bool
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "wyoming", "speech").
	Name() string

	// Probe reports the device the backend synthesizes on.
	Probe(ctx context.Context) (*DeviceInfo, error)

	// LoadVoice resolves a voice selector once, before the first chunk.
	// RandomVoice yields an unconditioned voice.
	LoadVoice(ctx context.Context, name string) (*Voice, error)

	// Synthesize generates a mono waveform at audio.SampleRate for text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*audio.Waveform, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}
