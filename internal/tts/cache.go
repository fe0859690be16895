package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nadzzz/narrator/internal/audio"
)

// Cache wraps a Synthesizer and keeps every synthesized chunk on disk as a
// WAV file named after a hash of the backend, voice, preset and text. A chunk
// that was already spoken is read back instead of synthesized again.
type Cache struct {
	next Synthesizer
	dir  string
}

// Cached returns next wrapped with an on-disk chunk cache rooted at dir.
func Cached(next Synthesizer, dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty cache directory", ErrSetup)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating cache directory: %v", ErrSetup, err)
	}
	return &Cache{next: next, dir: dir}, nil
}

// Name returns the wrapped backend's identifier.
func (c *Cache) Name() string { return c.next.Name() }

// Probe delegates to the wrapped backend.
func (c *Cache) Probe(ctx context.Context) (*DeviceInfo, error) { return c.next.Probe(ctx) }

// LoadVoice delegates to the wrapped backend.
func (c *Cache) LoadVoice(ctx context.Context, name string) (*Voice, error) {
	return c.next.LoadVoice(ctx, name)
}

// Synthesize returns the cached waveform for this chunk, or synthesizes and
// stores it.
func (c *Cache) Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*audio.Waveform, error) {
	path := c.path(text, opts)

	if w, err := readCached(path); err == nil {
		slog.Debug("chunk cache hit", "path", path, "samples", len(w.Samples))
		return w, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable cache entry", "path", path, "error", err)
	}

	w, err := c.next.Synthesize(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	if err := audio.WriteWAV(path, w); err != nil {
		slog.Warn("failed to store chunk in cache", "path", path, "error", err)
	}
	return w, nil
}

// Close closes the wrapped backend.
func (c *Cache) Close() error { return c.next.Close() }

func (c *Cache) path(text string, opts SynthesizeOpts) string {
	return filepath.Join(c.dir, cacheKey(c.next.Name(), opts.Voice.String(), string(opts.Preset.Effective()), text)+".wav")
}

func readCached(path string) (*audio.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return audio.DecodeWAV(f)
}

func cacheKey(parts ...string) string {
	hash := sha256.New()
	for _, p := range parts {
		hash.Write([]byte(p))
		hash.Write([]byte{0})
	}
	return hex.EncodeToString(hash.Sum(nil))
}
