// Package pipeline runs a narration from start to finish.
//
// A run reads a text file, splits it into sentence chunks, speaks each chunk
// through a tts.Synthesizer one after another, joins the waveforms and writes
// a single WAV file. The output is only written once every chunk has been
// synthesized, so a failed run never leaves a partial recording behind.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/text"
	"github.com/nadzzz/narrator/internal/tts"
)

// Stage names a step of a run. It is reported with every failure.
type Stage string

const (
	StageValidateInput     Stage = "validate-input"
	StageEnsureOutputDir   Stage = "ensure-output-dir"
	StageDetectAccelerator Stage = "detect-accelerator"
	StageLoadInput         Stage = "load-input"
	StageInitSynthesizer   Stage = "init-synthesizer"
	StageLoadVoice         Stage = "load-voice"
	StageChunk             Stage = "chunk"
	StageSynthesize        Stage = "synthesize"
	StageAssemble          Stage = "assemble"
	StageWrite             Stage = "write"
	StagePublish           Stage = "publish"
)

// StageError is returned by Run for every failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Backend opens the synthesizer for a run. Detect reports the device the
// backend would run on without keeping any state.
type Backend interface {
	Name() string
	Detect(ctx context.Context) (*tts.DeviceInfo, error)
	Open(ctx context.Context) (tts.Synthesizer, error)
}

// Publisher copies a finished recording somewhere else and returns its
// location.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Request describes one narration.
type Request struct {
	Input  string
	Output string
	Voice  string
	Preset tts.Preset
}

// Result summarizes a successful run.
type Result struct {
	RunID    string
	Output   string
	Chunks   int
	Samples  int
	Duration time.Duration
	// Location is where the output was published, empty when publishing is
	// disabled.
	Location string
}

// Runner executes narration requests.
type Runner struct {
	backend   Backend
	publisher Publisher // nil if publishing is disabled
}

// New creates a Runner. publisher may be nil.
func New(backend Backend, publisher Publisher) *Runner {
	return &Runner{backend: backend, publisher: publisher}
}

// Run narrates req.Input into req.Output.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := slog.With("run_id", runID)

	if req.Preset == "" {
		req.Preset = tts.PresetUltraFast
	}
	logger.Info("narration started",
		"input", req.Input,
		"output", req.Output,
		"voice", req.Voice,
		"preset", req.Preset,
		"backend", r.backend.Name(),
	)
	if eff := req.Preset.Effective(); eff != req.Preset {
		logger.Warn("preset is not applied to synthesis", "requested", req.Preset, "effective", eff)
	}

	// Step 1: Validate paths.
	if err := validateInput(req.Input); err != nil {
		return nil, fail(StageValidateInput, err)
	}
	outDir := filepath.Dir(req.Output)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fail(StageEnsureOutputDir, fmt.Errorf("%w: creating %s: %v", audio.ErrIO, outDir, err))
	}

	// Step 2: Report the device. Failures here never stop the run.
	if info, err := r.backend.Detect(ctx); err != nil {
		logger.Warn("device detection failed", "stage", StageDetectAccelerator, "error", err)
	} else {
		logger.Info("synthesis device", "backend", info.Backend, "device", info.Device, "accelerated", info.Accelerated)
	}

	// Step 3: Load the document and the synthesizer.
	doc, err := text.Load(req.Input)
	if err != nil {
		return nil, fail(StageLoadInput, err)
	}
	logger.Debug("input loaded", "bytes", len(doc.Content))

	synth, err := r.backend.Open(ctx)
	if err != nil {
		return nil, fail(StageInitSynthesizer, err)
	}
	defer func() {
		if err := synth.Close(); err != nil {
			logger.Warn("closing synthesizer", "error", err)
		}
	}()

	voice, err := synth.LoadVoice(ctx, req.Voice)
	if err != nil {
		return nil, fail(StageLoadVoice, err)
	}
	logger.Info("voice ready", "voice", voice.String(), "conditioned", voice.Conditioned)

	// Step 4: Chunk.
	chunks := text.Chunk(doc.Content)
	if len(chunks) == 0 {
		return nil, fail(StageChunk, fmt.Errorf("%w: no sentences left after filtering %s", text.ErrEmptyInput, req.Input))
	}
	logger.Info("input chunked", "chunks", len(chunks))

	// Step 5: Synthesize, strictly in document order.
	opts := tts.SynthesizeOpts{Voice: voice, Preset: req.Preset}
	waves := make([]*audio.Waveform, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fail(StageSynthesize, fmt.Errorf("stopped before chunk %d/%d: %w", i+1, len(chunks), err))
		}

		logger.Info("synthesizing chunk", "index", i+1, "total", len(chunks), "text_length", len(chunk))
		logger.Debug("chunk text", "index", i+1, "text", chunk)

		w, err := synth.Synthesize(ctx, chunk, opts)
		if err != nil {
			return nil, fail(StageSynthesize, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
		}
		if w == nil || w.SampleRate != audio.SampleRate || w.Channels != audio.Mono {
			return nil, fail(StageSynthesize, fmt.Errorf("%w: chunk %d/%d: expected %d Hz mono audio",
				tts.ErrSynthesis, i+1, len(chunks), audio.SampleRate))
		}
		waves = append(waves, w)
	}

	// Step 6: Assemble and write.
	full, err := audio.Concat(waves)
	if err != nil {
		return nil, fail(StageAssemble, err)
	}
	if err := audio.WriteWAV(req.Output, full); err != nil {
		return nil, fail(StageWrite, err)
	}

	result := &Result{
		RunID:    runID,
		Output:   req.Output,
		Chunks:   len(chunks),
		Samples:  len(full.Samples),
		Duration: full.Duration(),
	}
	logger.Info("output written", "path", req.Output, "samples", result.Samples, "audio_duration", result.Duration)

	// Step 7: Publish, if configured.
	if r.publisher != nil {
		loc, err := r.publisher.Publish(ctx, req.Output)
		if err != nil {
			return nil, fail(StagePublish, err)
		}
		result.Location = loc
		logger.Info("output published", "location", loc)
	}

	logger.Info("narration complete", "duration", time.Since(start), "chunks", result.Chunks)
	return result, nil
}

func validateInput(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no input path given", text.ErrNotFound)
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", text.ErrNotFound, path)
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
