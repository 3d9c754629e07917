package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config stores runtime configuration for the bridge.
type Config struct {
	Provider      string `env:"STT_PROVIDER" envDefault:"deepgram"`
	DefaultLocale string `env:"STT_DEFAULT_LOCALE" envDefault:"en-US"`
	LocalesFile   string `env:"STT_LOCALES_FILE"`

	Audio    AudioConfig
	Deepgram DeepgramConfig
	Google   GoogleConfig
	Session  SessionConfig
}

type AudioConfig struct {
	Backend         string `env:"STT_AUDIO_BACKEND" envDefault:"portaudio"`
	InputFormat     string `env:"STT_AUDIO_INPUT_FORMAT" envDefault:"pulse"`
	InputDevice     string `env:"STT_AUDIO_INPUT_DEVICE" envDefault:"default"`
	SampleRate      int    `env:"STT_SAMPLE_RATE" envDefault:"16000"`
	Channels        int    `env:"STT_CHANNELS" envDefault:"1"`
	FramesPerBuffer int    `env:"STT_FRAMES_PER_BUFFER" envDefault:"4096"`
	FFMPEGCommand   string `env:"STT_FFMPEG_COMMAND" envDefault:"ffmpeg"`
}

type DeepgramConfig struct {
	APIKey      string `env:"DEEPGRAM_API_KEY"`
	APIBaseURL  string `env:"DEEPGRAM_API_BASE" envDefault:"https://api.deepgram.com/v1"`
	Model       string `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`
	SmartFormat bool   `env:"DEEPGRAM_SMART_FORMAT" envDefault:"true"`
}

type GoogleConfig struct {
	ProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	CredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	Location        string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	Model           string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"latest_long"`
}

type SessionConfig struct {
	DrainTimeout        time.Duration `env:"STT_DRAIN_TIMEOUT" envDefault:"4s"`
	ModelInstallTimeout time.Duration `env:"STT_MODEL_INSTALL_TIMEOUT" envDefault:"120s"`
}

// Load resolves configuration from environment variables and applies
// defaults for values outside their usable range.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment variables are invalid: %w", err)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.FramesPerBuffer < 256 {
		cfg.Audio.FramesPerBuffer = 4096
	}
	if cfg.Session.DrainTimeout <= 0 {
		cfg.Session.DrainTimeout = 4 * time.Second
	}
	if cfg.Session.ModelInstallTimeout <= 0 {
		cfg.Session.ModelInstallTimeout = 120 * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env defaults cannot express.
func (c Config) Validate() error {
	switch c.Provider {
	case "deepgram", "google":
	default:
		return fmt.Errorf("STT_PROVIDER must be deepgram or google, got %q", c.Provider)
	}
	switch c.Audio.Backend {
	case "portaudio", "ffmpeg":
	default:
		return fmt.Errorf("STT_AUDIO_BACKEND must be portaudio or ffmpeg, got %q", c.Audio.Backend)
	}
	if strings.TrimSpace(c.DefaultLocale) == "" {
		return fmt.Errorf("STT_DEFAULT_LOCALE must not be empty")
	}
	if c.Provider == "google" {
		if c.Google.ProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when STT_PROVIDER=google")
		}
		if c.Google.CredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when STT_PROVIDER=google")
		}
	}
	return nil
}
