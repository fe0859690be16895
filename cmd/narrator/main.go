// Narrator reads a text file, speaks it sentence by sentence through a TTS
// backend and writes the result as a single 24 kHz mono WAV file.
//
// Usage:
//
//	narrator [input_file] [output_file] [flags]
//	narrator talk.txt talk.wav --voice tom --backend speech
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/pipeline"
	"github.com/nadzzz/narrator/internal/storage"
	"github.com/nadzzz/narrator/internal/tts"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code := runCLI(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// runCLI executes the root command and returns the process exit status.
// Every failure, including bad arguments and flags, is logged before
// returning 1.
func runCLI(ctx context.Context, args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		reportError(err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "narrator [input_file] [output_file]",
		Short: "Convert a text file into a spoken WAV file",
		Long: `Narrator splits a text file into sentences, synthesizes each one and
writes the joined audio as a mono 24000 Hz WAV file.

Lines starting with "Slide " are skipped. The input defaults to
input/example.txt and the output to output/output.wav.`,
		Args:          cobra.MaximumNArgs(2),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, configFile)
		},
	}
	cmd.SetVersionTemplate("narrator {{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to config file (e.g. configs/narrator.yaml)")
	flags.String("voice", tts.RandomVoice, `voice to use, or "random" for an unconditioned voice`)
	flags.String("preset", string(tts.PresetUltraFast), "quality preset: ultra_fast, fast, standard, high_quality")
	flags.String("backend", "wyoming", "tts backend: wyoming, speech, tone")
	flags.String("cache-dir", "", "directory for cached chunk audio")
	flags.Bool("no-cache", false, "disable the chunk cache")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(cmd *cobra.Command, args []string, configFile string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)

	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if len(args) > 1 {
		cfg.Output = args[1]
	}

	preset, err := tts.ParsePreset(cfg.Preset)
	if err != nil {
		return err
	}

	var publisher pipeline.Publisher
	if cfg.Storage.S3.Enabled() {
		s3, err := storage.NewS3(cfg.Storage.S3)
		if err != nil {
			return fmt.Errorf("configuring storage: %w", err)
		}
		publisher = s3
	}

	slog.Info("narrator starting", "version", version, "backend", cfg.TTS.Backend)

	runner := pipeline.New(&backend{cfg: cfg}, publisher)
	res, err := runner.Run(cmd.Context(), pipeline.Request{
		Input:  cfg.Input,
		Output: cfg.Output,
		Voice:  cfg.Voice,
		Preset: preset,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d chunks, %s)\n", res.Output, res.Chunks, res.Duration.Round(time.Millisecond))
	if res.Location != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", res.Location)
	}
	return nil
}

func reportError(err error) {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		slog.Error("narration failed", "stage", se.Stage, "error", se.Err)
		return
	}
	slog.Error("narration failed", "error", err)
}
