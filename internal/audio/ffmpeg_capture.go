package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"accentcoach/internal/ports"
)

const (
	defaultStartupGrace = 250 * time.Millisecond
	defaultStopGrace    = 1200 * time.Millisecond
)

var ErrRecorderExited = errors.New("ffmpeg exited before capture started")

// FFMPEGCapture records the microphone with ffmpeg, encoded in the negotiated format.
type FFMPEGCapture struct {
	command      string
	startupGrace time.Duration
	stopGrace    time.Duration
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{
		command:      command,
		startupGrace: defaultStartupGrace,
		stopGrace:    defaultStopGrace,
	}
}

// Start launches ffmpeg and returns once it has survived the startup grace period. An ffmpeg
// that exits early usually means the input device could not be opened.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	args, err := buildCaptureArgs(cfg)
	if err != nil {
		return nil, err
	}

	rec, err := launch(ctx, c.command, args, c.stopGrace)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.startupGrace)
	defer timer.Stop()

	select {
	case <-rec.exited:
		_ = rec.out.Close()
		if rec.exitErr != nil {
			return nil, fmt.Errorf("%w: %w: %s", ErrRecorderExited, rec.exitErr, strings.TrimSpace(rec.stderr.String()))
		}
		return nil, ErrRecorderExited
	case <-timer.C:
	}
	return rec, nil
}

func buildCaptureArgs(cfg ports.AudioConfig) ([]string, error) {
	format, err := LookupFormat(cfg.MIMEType)
	if err != nil {
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", valueOr(cfg.InputFormat, "pulse"),
		"-i", valueOr(cfg.InputDevice, "default"),
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
	}
	return append(args, format.outputArgs()...), nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ffmpegRecording is one running ffmpeg process. Output already written to the pipe stays
// readable until EOF after Stop.
type ffmpegRecording struct {
	cmd       *exec.Cmd
	out       *os.File
	stderr    *bytes.Buffer
	stopGrace time.Duration

	exited  chan struct{}
	exitErr error

	stopOnce sync.Once
	stopErr  error
}

func launch(ctx context.Context, command string, args []string, stopGrace time.Duration) (*ffmpegRecording, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	// cmd.StdoutPipe would be closed by Wait before the trailer written on SIGINT is drained.
	out, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg pipe: %w", err)
	}
	cmd.Stdout = w
	if err := cmd.Start(); err != nil {
		_ = out.Close()
		_ = w.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	_ = w.Close()

	rec := &ffmpegRecording{
		cmd:       cmd,
		out:       out,
		stderr:    stderr,
		stopGrace: stopGrace,
		exited:    make(chan struct{}),
	}
	go func() {
		rec.exitErr = cmd.Wait()
		close(rec.exited)
	}()
	return rec, nil
}

func (r *ffmpegRecording) Read(p []byte) (int, error) {
	return r.out.Read(p)
}

// Stop asks ffmpeg to finalize the container with SIGINT and kills it after the grace period.
func (r *ffmpegRecording) Stop() error {
	r.stopOnce.Do(func() {
		_ = r.cmd.Process.Signal(os.Interrupt)

		timer := time.NewTimer(r.stopGrace)
		defer timer.Stop()
		select {
		case <-r.exited:
		case <-timer.C:
			_ = r.cmd.Process.Kill()
			<-r.exited
		}

		r.stopErr = normalizeStopErr(r.exitErr)
		if r.stopErr != nil && r.stderr.Len() > 0 {
			r.stopErr = fmt.Errorf("%w: %s", r.stopErr, strings.TrimSpace(r.stderr.String()))
		}
	})
	return r.stopErr
}

func (r *ffmpegRecording) Close() error {
	err := r.Stop()
	if closeErr := r.out.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
		err = closeErr
	}
	return err
}

// normalizeStopErr treats a non-zero exit as a normal stop; ffmpeg exits 255 on SIGINT.
func normalizeStopErr(err error) error {
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return err
}
