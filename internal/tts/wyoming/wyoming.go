// Package wyoming implements the TTS Synthesizer against a Wyoming protocol
// server (Piper, or any engine wrapped by a Wyoming TTS bridge).
//
// Each event on the wire is a JSON header line, optionally followed by a
// JSON data block and a binary payload whose lengths the header announces:
//
//	{"type": "...", "data_length": N, "payload_length": M}\n
//	<N bytes of JSON data>
//	<M bytes of payload>
//
// Synthesis sends a "synthesize" event and collects 16-bit PCM from the
// "audio-start" → "audio-chunk"* → "audio-stop" reply sequence. A "describe"
// event returns the server's "info", which lists the available voices.
package wyoming

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

const dialTimeout = 10 * time.Second

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint string        // host:port of the Wyoming server
	timeout  time.Duration // per request, when ctx has no deadline
}

// New creates a new Wyoming synthesizer from config.
func New(cfg config.WyomingConfig) (*Synthesizer, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: no wyoming endpoint configured", tts.ErrSetup)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Synthesizer{endpoint: endpoint, timeout: timeout}, nil
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "wyoming" }

// Probe asks the server to describe itself.
func (s *Synthesizer) Probe(ctx context.Context) (*tts.DeviceInfo, error) {
	info, err := s.describe(ctx)
	if err != nil {
		return nil, err
	}

	device := s.endpoint
	if len(info.TTS) > 0 {
		device = fmt.Sprintf("%s @ %s", info.TTS[0].Name, s.endpoint)
	}
	return &tts.DeviceInfo{Backend: s.Name(), Device: device}, nil
}

// LoadVoice checks that a named voice is advertised by the server.
func (s *Synthesizer) LoadVoice(ctx context.Context, name string) (*tts.Voice, error) {
	if tts.IsRandom(name) {
		return tts.Unconditioned(), nil
	}

	info, err := s.describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tts.ErrSetup, err)
	}
	if !info.hasVoice(name) {
		return nil, fmt.Errorf("%w: voice %q not offered by %s", tts.ErrSetup, name, s.endpoint)
	}
	return &tts.Voice{Name: name, Conditioned: true}, nil
}

// Synthesize sends text to the Wyoming server and returns the decoded audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*audio.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", tts.ErrSynthesis)
	}

	data := map[string]any{"text": text}
	if opts.Voice != nil && opts.Voice.Conditioned {
		data["voice"] = map[string]any{"name": opts.Voice.Name}
	}

	slog.Debug("wyoming synthesize", "text_length", len(text), "voice", opts.Voice.String(), "endpoint", s.endpoint)

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tts.ErrSynthesis, err)
	}
	defer conn.Close()

	if err := writeEvent(conn, event{Type: "synthesize", Data: data}, nil); err != nil {
		return nil, fmt.Errorf("%w: sending synthesize event: %v", tts.ErrSynthesis, err)
	}

	w, err := readAudio(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tts.ErrSynthesis, err)
	}
	return w, nil
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

func (s *Synthesizer) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", s.endpoint, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}
	return conn, nil
}

func (s *Synthesizer) describe(ctx context.Context) (*serverInfo, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeEvent(conn, event{Type: "describe"}, nil); err != nil {
		return nil, fmt.Errorf("sending describe event: %w", err)
	}

	r := bufio.NewReader(conn)
	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading info: %w", err)
		}
		if evt.Type == "info" {
			return parseInfo(evt.Data)
		}
		slog.Debug("wyoming skipping event while waiting for info", "type", evt.Type)
	}
}

// readAudio collects one audio-start … audio-stop sequence.
func readAudio(r *bufio.Reader) (*audio.Waveform, error) {
	var (
		pcm      []byte
		rate     = audio.SampleRate
		channels = audio.Mono
		width    = 2
	)

	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading wyoming event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			rate = intField(evt.Data, "rate", rate)
			channels = intField(evt.Data, "channels", channels)
			width = intField(evt.Data, "width", width)
			slog.Debug("wyoming audio-start", "rate", rate, "channels", channels, "width", width)

			if width != 2 {
				return nil, fmt.Errorf("unsupported sample width %d bytes", width)
			}
			if rate != audio.SampleRate || channels != audio.Mono {
				return nil, fmt.Errorf("server produces %d Hz / %d channels, need %d Hz mono",
					rate, channels, audio.SampleRate)
			}

		case "audio-chunk":
			pcm = append(pcm, payload...)

		case "audio-stop":
			slog.Debug("wyoming audio-stop", "pcm_bytes", len(pcm))
			return audio.FromPCM16LE(pcm, rate, channels), nil

		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return nil, fmt.Errorf("wyoming error: %s", msg)

		default:
			slog.Debug("wyoming unknown event", "type", evt.Type)
		}
	}
}

func intField(data map[string]any, key string, fallback int) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return fallback
}
