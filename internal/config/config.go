package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultGeminiModel = "gemini-2.5-flash-preview-09-2025"

// Config stores runtime configuration for every frontend.
type Config struct {
	Gemini  GeminiConfig
	Audio   AudioConfig
	Grading GradingConfig
	Web     WebConfig
	Log     LogConfig
}

type GeminiConfig struct {
	APIKey     string
	APIBaseURL string
	APIVersion string
	Model      string
	Timeout    time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
	MinClipBytes    int
}

type GradingConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type WebConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Load resolves configuration from an optional .env file, environment variables and defaults.
// Variables already present in the environment win over the .env file.
func Load() (Config, error) {
	_ = godotenv.Load(envFile())

	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:     firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
			APIBaseURL: strings.TrimSpace(os.Getenv("ACCENTCOACH_GEMINI_BASE_URL")),
			APIVersion: envOrDefault("ACCENTCOACH_GEMINI_API_VERSION", "v1beta"),
			Model:      envOrDefault("ACCENTCOACH_GEMINI_MODEL", DefaultGeminiModel),
			Timeout:    time.Duration(envOrDefaultInt("ACCENTCOACH_GEMINI_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("ACCENTCOACH_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("ACCENTCOACH_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("ACCENTCOACH_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("ACCENTCOACH_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("ACCENTCOACH_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("ACCENTCOACH_CHUNK_SIZE", 4096),
			MinClipBytes:    envOrDefaultInt("ACCENTCOACH_MIN_CLIP_BYTES", 1024),
		},
		Grading: GradingConfig{
			MaxAttempts: envOrDefaultInt("ACCENTCOACH_GRADING_MAX_ATTEMPTS", 5),
			BaseDelay:   time.Duration(envOrDefaultInt("ACCENTCOACH_GRADING_BASE_DELAY_MS", 1000)) * time.Millisecond,
		},
		Web: WebConfig{
			Addr: envOrDefault("ACCENTCOACH_WEB_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envOrDefault("ACCENTCOACH_LOG_LEVEL", "info")),
			Format: strings.ToLower(envOrDefault("ACCENTCOACH_LOG_FORMAT", "text")),
			File:   strings.TrimSpace(os.Getenv("ACCENTCOACH_LOG_FILE")),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Audio.MinClipBytes < 0 {
		cfg.Audio.MinClipBytes = 1024
	}
	if cfg.Grading.MaxAttempts <= 0 {
		cfg.Grading.MaxAttempts = 5
	}
	if cfg.Grading.BaseDelay < 0 {
		cfg.Grading.BaseDelay = time.Second
	}
	if cfg.Gemini.Timeout <= 0 {
		cfg.Gemini.Timeout = 60 * time.Second
	}

	return cfg, nil
}

func envFile() string {
	return envOrDefault("ACCENTCOACH_ENV_FILE", ".env")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
