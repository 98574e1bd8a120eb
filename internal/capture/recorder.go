// Package capture owns a microphone recording from device acquisition to the finalized clip.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"accentcoach/internal/audio"
	"accentcoach/internal/domain"
	"accentcoach/internal/logging"
	"accentcoach/internal/ports"
)

var (
	ErrPermissionDenied    = errors.New("microphone unavailable or permission denied")
	ErrNoSupportedEncoding = errors.New("no supported recording encoding")
	ErrEmptyCapture        = errors.New("no audio captured")
	ErrNotCapturing        = errors.New("no active capture")
)

const (
	DefaultChunkSize    = 4096
	DefaultMinClipBytes = 1024

	drainTimeout = 3 * time.Second
)

// Config controls encoding negotiation and buffering.
type Config struct {
	Audio       ports.AudioConfig
	Preferences []string
	ChunkSize   int
	// MinClipBytes flags smaller clips as too short to grade.
	MinClipBytes int
}

// Result is delivered once the base64 payload of a stopped capture is ready.
type Result struct {
	Clip    domain.Clip
	Payload string
	// DeviceErr is a non-fatal error reported while releasing the device.
	DeviceErr error
}

// Recorder captures one recording at a time. Starting a new capture releases the previous one.
type Recorder struct {
	device ports.AudioCapture
	prober ports.EncodingProber
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	active     *activeCapture
	last       *Result
	generation uint64
}

type activeCapture struct {
	session  ports.AudioSession
	format   audio.Format
	started  time.Time
	cancel   context.CancelFunc
	pumpDone chan struct{}

	chunksMu sync.Mutex
	chunks   [][]byte
	readErr  error
}

func NewRecorder(device ports.AudioCapture, prober ports.EncodingProber, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MinClipBytes < 0 {
		cfg.MinClipBytes = DefaultMinClipBytes
	}
	if len(cfg.Preferences) == 0 {
		cfg.Preferences = DefaultPreferences
	}
	return &Recorder{
		device: device,
		prober: prober,
		cfg:    cfg,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// Start releases any previous capture, negotiates an encoding and acquires the microphone.
// The device stays bound to ctx until Stop or Reset, so ctx should outlive the recording.
func (r *Recorder) Start(ctx context.Context) error {
	r.Reset()

	mimeType, err := SelectEncoding(ctx, r.prober, r.cfg.Preferences)
	if err != nil {
		return err
	}
	format, err := audio.LookupFormat(mimeType)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoSupportedEncoding, err)
	}

	audioCfg := r.cfg.Audio
	audioCfg.MIMEType = mimeType

	captureCtx, cancel := context.WithCancel(ctx)
	session, err := r.device.Start(captureCtx, audioCfg)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	active := &activeCapture{
		session:  session,
		format:   format,
		started:  r.now(),
		cancel:   cancel,
		pumpDone: make(chan struct{}),
	}
	go bufferChunks(active, r.cfg.ChunkSize)

	r.mu.Lock()
	r.active = active
	r.mu.Unlock()

	r.logger.Debug("capture started", "mime_type", mimeType)
	return nil
}

// Stop releases the microphone and finalizes the buffered fragments into a clip.
// The returned channel delivers exactly one Result once the base64 payload is derived.
func (r *Recorder) Stop() (<-chan Result, error) {
	r.mu.Lock()
	active := r.active
	r.active = nil
	generation := r.generation
	r.mu.Unlock()

	if active == nil {
		return nil, ErrNotCapturing
	}

	deviceErr := active.release()
	chunks, readErr := active.snapshot()
	if readErr != nil {
		r.logger.Warn("capture read failed", "error", readErr)
		if deviceErr == nil {
			deviceErr = readErr
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyCapture
	}

	data := bytes.Join(chunks, nil)
	if active.format.RawPCM {
		data = audio.EncodeWAV(data, r.cfg.Audio.SampleRate, r.cfg.Audio.Channels)
	}

	clip := domain.Clip{
		Data:     data,
		MIMEType: active.format.MIMEType,
		Size:     len(data),
		Duration: r.now().Sub(active.started),
		TooShort: len(data) < r.cfg.MinClipBytes,
	}

	results := make(chan Result, 1)
	go func() {
		result := Result{
			Clip:      clip,
			Payload:   base64.StdEncoding.EncodeToString(clip.Data),
			DeviceErr: deviceErr,
		}

		r.mu.Lock()
		if r.generation == generation {
			r.last = &result
		}
		r.mu.Unlock()

		results <- result
		close(results)
	}()

	r.logger.Debug("capture stopped", "bytes", clip.Size, "chunks", len(chunks), "too_short", clip.TooShort)
	return results, nil
}

// Reset stops any active capture and discards buffered and derived data. It is idempotent.
func (r *Recorder) Reset() {
	r.mu.Lock()
	active := r.active
	r.active = nil
	r.last = nil
	r.generation++
	r.mu.Unlock()

	if active != nil {
		_ = active.release()
	}
}

// Active reports whether a capture is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Last returns the most recent finalized result, if it has not been reset.
func (r *Recorder) Last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// release stops the device, drains buffered output and closes the session.
func (a *activeCapture) release() error {
	stopErr := a.session.Stop()

	timer := time.NewTimer(drainTimeout)
	select {
	case <-a.pumpDone:
		timer.Stop()
	case <-timer.C:
	}

	closeErr := a.session.Close()
	<-a.pumpDone
	a.cancel()

	if stopErr != nil {
		return stopErr
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}

func (a *activeCapture) snapshot() ([][]byte, error) {
	a.chunksMu.Lock()
	defer a.chunksMu.Unlock()
	return a.chunks, a.readErr
}

func bufferChunks(active *activeCapture, chunkSize int) {
	defer close(active.pumpDone)

	buf := make([]byte, chunkSize)
	for {
		n, err := active.session.Read(buf)
		if n > 0 {
			active.chunksMu.Lock()
			active.chunks = append(active.chunks, append([]byte(nil), buf[:n]...))
			active.chunksMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				active.chunksMu.Lock()
				active.readErr = err
				active.chunksMu.Unlock()
			}
			return
		}
	}
}
