package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF format tag for integer PCM.
const wavFormatPCM = 1

// WriteWAV encodes w as 16-bit PCM WAV at path.
//
// Missing parent directories are created. The data is written to a temporary
// file next to path and renamed into place, so path either holds the complete
// file or is left untouched.
func WriteWAV(path string, w *Waveform) error {
	if w == nil || len(w.Samples) == 0 {
		return fmt.Errorf("%w: empty waveform", ErrIO)
	}
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return fmt.Errorf("%w: invalid format %d Hz / %d channels", ErrIO, w.SampleRate, w.Channels)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating output directory: %v", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".narrator-*.wav")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := encode(tmp, w); err != nil {
		return fmt.Errorf("%w: encoding wav: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", ErrIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: moving wav into place: %v", ErrIO, err)
	}
	committed = true
	return nil
}

func encode(out io.WriteSeeker, w *Waveform) error {
	format := &goaudio.Format{SampleRate: w.SampleRate, NumChannels: w.Channels}
	e := wav.NewEncoder(out, format.SampleRate, BitDepth, format.NumChannels, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format:         format,
		Data:           toInt16Range(w.Samples),
		SourceBitDepth: BitDepth,
	}
	if err := e.Write(buf); err != nil {
		return err
	}
	return e.Close()
}

// DecodeWAV reads a PCM WAV stream into a Waveform.
func DecodeWAV(r io.ReadSeeker) (*Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav stream")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported wav audio format %d", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}

	bitDepth := int(d.BitDepth)
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = intToFloat(v, bitDepth)
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}, nil
}

// FromPCM16LE converts raw little-endian 16-bit PCM into a Waveform.
// A trailing odd byte is ignored.
func FromPCM16LE(pcm []byte, sampleRate, channels int) *Waveform {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return &Waveform{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

func toInt16Range(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		clamped := math.Max(-1, math.Min(1, float64(s)))
		out[i] = int(math.Round(clamped * math.MaxInt16))
	}
	return out
}

// intToFloat scales a decoded PCM sample to [-1, 1]. 8-bit WAV is unsigned.
func intToFloat(v, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return float32(v-128) / 128
	case 16:
		return float32(v) / 32768
	case 24:
		return float32(v) / 8388608
	case 32:
		return float32(float64(v) / 2147483648)
	default:
		return 0
	}
}
