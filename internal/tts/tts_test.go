package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/narrator/internal/audio"
)

func TestParsePreset(t *testing.T) {
	for _, p := range Presets {
		got, err := ParsePreset(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePreset("turbo")
	assert.ErrorContains(t, err, "ultra_fast, fast, standard, high_quality")
}

func TestPresetEffectiveIsPinned(t *testing.T) {
	for _, p := range Presets {
		assert.Equal(t, PresetUltraFast, p.Effective())
	}
}

func TestVoiceSelector(t *testing.T) {
	assert.True(t, IsRandom("random"))
	assert.True(t, IsRandom(""))
	assert.False(t, IsRandom("Random"))
	assert.False(t, IsRandom("tom"))

	var nilVoice *Voice
	assert.Equal(t, "random", nilVoice.String())
	assert.Equal(t, "random", Unconditioned().String())
	assert.Equal(t, "tom", (&Voice{Name: "tom", Conditioned: true}).String())
}

// countingSynth returns a fixed waveform and counts calls.
type countingSynth struct {
	calls int
	fail  bool
}

func (c *countingSynth) Name() string { return "counting" }
func (c *countingSynth) Probe(context.Context) (*DeviceInfo, error) {
	return &DeviceInfo{Backend: "counting"}, nil
}
func (c *countingSynth) LoadVoice(_ context.Context, name string) (*Voice, error) {
	return &Voice{Name: name, Conditioned: !IsRandom(name)}, nil
}
func (c *countingSynth) Synthesize(_ context.Context, text string, _ SynthesizeOpts) (*audio.Waveform, error) {
	c.calls++
	if c.fail {
		return nil, ErrSynthesis
	}
	return audio.NewWaveform([]float32{0, 0.5, -0.5, float32(len(text)) / 100}), nil
}
func (c *countingSynth) Close() error { return nil }

func TestCacheReusesChunks(t *testing.T) {
	dir := t.TempDir()
	next := &countingSynth{}
	c, err := Cached(next, dir)
	require.NoError(t, err)

	opts := SynthesizeOpts{Voice: Unconditioned(), Preset: PresetUltraFast}

	first, err := c.Synthesize(context.Background(), "Hello.", opts)
	require.NoError(t, err)
	second, err := c.Synthesize(context.Background(), "Hello.", opts)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	require.Len(t, second.Samples, len(first.Samples))
	for i := range first.Samples {
		assert.InDelta(t, first.Samples[i], second.Samples[i], 1e-3)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCacheKeyDependsOnVoiceAndText(t *testing.T) {
	next := &countingSynth{}
	c, err := Cached(next, t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = c.Synthesize(ctx, "Hello.", SynthesizeOpts{Voice: Unconditioned()})
	_, _ = c.Synthesize(ctx, "Hello.", SynthesizeOpts{Voice: &Voice{Name: "tom", Conditioned: true}})
	_, _ = c.Synthesize(ctx, "Goodbye.", SynthesizeOpts{Voice: Unconditioned()})
	assert.Equal(t, 3, next.calls)

	// requested preset does not matter, synthesis always runs ultra_fast
	_, _ = c.Synthesize(ctx, "Hello.", SynthesizeOpts{Voice: Unconditioned(), Preset: PresetHighQuality})
	assert.Equal(t, 3, next.calls)
}

func TestCacheIgnoresCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	next := &countingSynth{}
	c, err := Cached(next, dir)
	require.NoError(t, err)

	opts := SynthesizeOpts{Voice: Unconditioned()}
	require.NoError(t, os.WriteFile(c.path("Hello.", opts), []byte("garbage"), 0o644))

	w, err := c.Synthesize(context.Background(), "Hello.", opts)
	require.NoError(t, err)
	assert.Len(t, w.Samples, 4)
	assert.Equal(t, 1, next.calls)
}

func TestCachePropagatesFailures(t *testing.T) {
	dir := t.TempDir()
	c, err := Cached(&countingSynth{fail: true}, dir)
	require.NoError(t, err)

	_, err = c.Synthesize(context.Background(), "Hello.", SynthesizeOpts{})
	assert.True(t, errors.Is(err, ErrSynthesis))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCachedRequiresDir(t *testing.T) {
	_, err := Cached(&countingSynth{}, "")
	assert.True(t, errors.Is(err, ErrSetup))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = Cached(&countingSynth{}, filepath.Join(blocker, "cache"))
	assert.True(t, errors.Is(err, ErrSetup))
}
