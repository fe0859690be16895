// Package audio holds the waveform type that flows from the synthesizer to the
// output file, and the assembler that concatenates and encodes it.
//
// Every waveform in a run shares the same sample rate and channel count. The
// synthesis contract fixes these at 24000 Hz mono; the assembler refuses to
// mix anything else rather than resampling.
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// SampleRate is the rate, in Hz, every synthesizer backend must produce.
	SampleRate = 24000

	// Mono is the channel count of synthesized speech.
	Mono = 1

	// BitDepth is the PCM sample width written to WAV files.
	BitDepth = 16
)

var (
	// ErrConcatenation is returned when there is nothing to assemble or the
	// waveforms disagree on format.
	ErrConcatenation = errors.New("concatenation failed")

	// ErrIO is returned when the assembled audio cannot be written.
	ErrIO = errors.New("audio write failed")
)

// Waveform is a sequence of interleaved samples normalized to [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// NewWaveform returns a mono waveform at the contract sample rate.
func NewWaveform(samples []float32) *Waveform {
	return &Waveform{
		Samples:    samples,
		SampleRate: SampleRate,
		Channels:   Mono,
	}
}

// Frames returns the number of sample frames (samples per channel).
func (w *Waveform) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// Duration returns the playback length of the waveform.
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(w.Frames()) / float64(w.SampleRate) * float64(time.Second))
}

// Concat joins waveforms along the time axis, preserving order.
func Concat(waves []*Waveform) (*Waveform, error) {
	if len(waves) == 0 {
		return nil, fmt.Errorf("%w: no waveforms to assemble", ErrConcatenation)
	}

	first := waves[0]
	if first == nil {
		return nil, fmt.Errorf("%w: waveform 1 is nil", ErrConcatenation)
	}

	total := 0
	for i, w := range waves {
		if w == nil {
			return nil, fmt.Errorf("%w: waveform %d is nil", ErrConcatenation, i+1)
		}
		if w.Channels != first.Channels {
			return nil, fmt.Errorf("%w: waveform %d has %d channels, expected %d",
				ErrConcatenation, i+1, w.Channels, first.Channels)
		}
		if w.SampleRate != first.SampleRate {
			return nil, fmt.Errorf("%w: waveform %d is %d Hz, expected %d Hz",
				ErrConcatenation, i+1, w.SampleRate, first.SampleRate)
		}
		total += len(w.Samples)
	}

	samples := make([]float32, 0, total)
	for _, w := range waves {
		samples = append(samples, w.Samples...)
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: first.SampleRate,
		Channels:   first.Channels,
	}, nil
}
