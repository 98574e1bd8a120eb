package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"accentcoach/internal/audio"
	"accentcoach/internal/capture"
	"accentcoach/internal/config"
	"accentcoach/internal/grading"
	"accentcoach/internal/kana"
	"accentcoach/internal/logging"
	"accentcoach/internal/ports"
	"accentcoach/internal/providers/gemini"
	"accentcoach/internal/usecase"
	"accentcoach/internal/wordbank"
)

// Runtime holds the dependencies shared by every session.
type Runtime struct {
	Config config.Config
	Logger *slog.Logger
	Grader *grading.Client
	reader wordbank.Reader

	logFile io.Closer
}

// Services is the assembled runtime graph for a single local session.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     *slog.Logger

	runtime *Runtime
}

// Close stops the session and releases runtime resources.
func (s Services) Close() {
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.runtime != nil {
		s.runtime.Close()
	}
}

// Load resolves configuration and builds the shared grading stack. Logs go to logOutput unless
// ACCENTCOACH_LOG_FILE names a file.
func Load(logOutput io.Writer) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logOutput == nil {
		logOutput = os.Stderr
	}
	var logFile *os.File
	if cfg.Log.File != "" {
		logFile, err = os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logOutput = logFile
	}
	logger := logging.New(logOutput, cfg.Log.Level, cfg.Log.Format)

	reader := kana.NewAnalyzer()
	if _, err := wordbank.Default(reader); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("invalid word bank: %w", err)
	}

	model := gemini.NewProvider(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		APIBaseURL: cfg.Gemini.APIBaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		Model:      cfg.Gemini.Model,
		Timeout:    cfg.Gemini.Timeout,
	})
	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not configured; grading requests will fail")
	}

	grader := grading.NewClient(model, grading.Config{
		MaxAttempts: cfg.Grading.MaxAttempts,
		BaseDelay:   cfg.Grading.BaseDelay,
	}, logger.With("component", "grading"))

	runtime := &Runtime{Config: cfg, Logger: logger, Grader: grader, reader: reader}
	if logFile != nil {
		runtime.logFile = logFile
	}
	return runtime, nil
}

// Close releases the log file, if one was opened.
func (r *Runtime) Close() {
	if r.logFile != nil {
		_ = r.logFile.Close()
		r.logFile = nil
	}
}

// NewController builds a session over the given capture device. Each controller owns its word cursor.
func (r *Runtime) NewController(events ports.EventSink, device ports.AudioCapture, prober ports.EncodingProber) (*usecase.SessionController, error) {
	bank, err := wordbank.Default(r.reader)
	if err != nil {
		return nil, err
	}

	recorder := capture.NewRecorder(device, prober, capture.Config{
		Audio: ports.AudioConfig{
			SampleRate:  r.Config.Audio.SampleRate,
			Channels:    r.Config.Audio.Channels,
			InputFormat: r.Config.Audio.InputFormat,
			InputDevice: r.Config.Audio.InputDevice,
		},
		ChunkSize:    r.Config.Audio.ChunkSize,
		MinClipBytes: r.Config.Audio.MinClipBytes,
	}, r.Logger.With("component", "capture"))

	return usecase.NewSessionController(recorder, r.Grader, bank, events, r.Logger.With("component", "session")), nil
}

// Build wires a local session that records through ffmpeg.
func Build(eventSink ports.EventSink, logOutput io.Writer) (Services, error) {
	runtime, err := Load(logOutput)
	if err != nil {
		return Services{}, err
	}

	command := runtime.Config.Audio.RecorderCommand
	controller, err := runtime.NewController(eventSink, audio.NewFFMPEGCapture(command), audio.NewFFMPEGProber(command))
	if err != nil {
		runtime.Close()
		return Services{}, err
	}
	return Services{Controller: controller, Config: runtime.Config, Logger: runtime.Logger, runtime: runtime}, nil
}
