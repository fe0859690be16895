// Package config handles loading and validating the narrator configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// NARRATOR_* environment variables, then command-line flags. Nothing is ever
// written back.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nadzzz/narrator/internal/tts"
)

// Config is the root configuration for a narrator run.
type Config struct {
	Input   string        `mapstructure:"input"`
	Output  string        `mapstructure:"output"`
	Voice   string        `mapstructure:"voice"`
	Preset  string        `mapstructure:"preset"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend string        `mapstructure:"backend"` // "wyoming", "speech" or "tone"
	Wyoming WyomingConfig `mapstructure:"wyoming"`
	Speech  SpeechConfig  `mapstructure:"speech"`
}

// WyomingConfig holds settings for a Wyoming protocol TTS server.
type WyomingConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // host:port
	Timeout  time.Duration `mapstructure:"timeout"`  // per chunk
}

// SpeechConfig holds settings for an OpenAI-compatible /audio/speech API.
type SpeechConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig controls the on-disk chunk cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// StorageConfig configures where the finished file is published.
type StorageConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds S3-compatible object storage settings. Publishing is
// enabled when Bucket is set.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	PublicURL string `mapstructure:"public_url"`
}

// Enabled reports whether the output should be uploaded.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"voice":     "voice",
	"preset":    "preset",
	"backend":   "tts.backend",
	"cache-dir": "cache.dir",
	"log-level": "logging.level",
}

// Load reads the configuration from defaults, file, environment and flags.
// If configFile is non-empty it is used directly; otherwise narrator.yaml is
// looked up in ., ./configs and $HOME/.config/narrator. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("input", filepath.Join("input", "example.txt"))
	v.SetDefault("output", filepath.Join("output", "output.wav"))
	v.SetDefault("voice", tts.RandomVoice)
	v.SetDefault("preset", string(tts.PresetUltraFast))
	v.SetDefault("tts.backend", "wyoming")
	v.SetDefault("tts.wyoming.endpoint", "localhost:10200")
	v.SetDefault("tts.wyoming.timeout", 5*time.Minute)
	v.SetDefault("tts.speech.base_url", "http://localhost:8000/v1")
	v.SetDefault("tts.speech.model", "tortoise")
	v.SetDefault("tts.speech.timeout", 5*time.Minute)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("tts.speech.api_key", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "auto")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.public_url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("narrator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "narrator"))
		}
	}

	// Environment variables: NARRATOR_VOICE, NARRATOR_TTS_BACKEND, etc.
	v.SetEnvPrefix("NARRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
		if f := flags.Lookup("no-cache"); f != nil && f.Changed {
			if off, err := flags.GetBool("no-cache"); err == nil && off {
				v.Set("cache.enabled", false)
			}
		}
	}

	// Read config file (optional — env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.TTS.Speech.APIKey = resolveEnvRef(cfg.TTS.Speech.APIKey)
	cfg.Storage.S3.AccessKey = resolveEnvRef(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = resolveEnvRef(cfg.Storage.S3.SecretKey)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that flags and files cannot constrain on their own.
func (c *Config) Validate() error {
	if _, err := tts.ParsePreset(c.Preset); err != nil {
		return err
	}
	switch c.TTS.Backend {
	case "wyoming", "speech", "tone":
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache enabled but no cache directory set")
	}
	if c.Storage.S3.Enabled() && c.Storage.S3.Endpoint == "" {
		return fmt.Errorf("storage.s3.bucket is set but storage.s3.endpoint is empty")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "narrator")
	}
	return filepath.Join(os.TempDir(), "narrator-cache")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// SetupLogging configures the global slog logger based on config.
// Logs go to stderr so stdout stays free for command output.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
