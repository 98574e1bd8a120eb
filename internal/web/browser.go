package web

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"accentcoach/internal/ports"
)

var (
	ErrCaptureDenied  = errors.New("browser denied microphone access")
	ErrCaptureTimeout = errors.New("browser did not answer capture request")
)

const (
	captureAckTimeout  = 30 * time.Second
	captureDoneTimeout = 3 * time.Second
)

// browserDevice records through the browser's MediaRecorder. Fragments arrive as binary frames
// on the connection and are exposed to the recorder as a byte stream.
type browserDevice struct {
	send func(serverMessage) bool

	mu        sync.Mutex
	supported map[string]bool
	pending   chan captureAck
	active    *browserSession
}

type captureAck struct {
	session *browserSession
	err     error
}

func newBrowserDevice(send func(serverMessage) bool) *browserDevice {
	return &browserDevice{send: send}
}

func (d *browserDevice) setSupported(mimeTypes []string) {
	supported := make(map[string]bool, len(mimeTypes))
	for _, mimeType := range mimeTypes {
		supported[mimeType] = true
	}
	d.mu.Lock()
	d.supported = supported
	d.mu.Unlock()
}

// Supports answers from the list the browser sent in its hello.
func (d *browserDevice) Supports(_ context.Context, mimeType string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.supported == nil {
		return false, ports.ErrProbeUnavailable
	}
	return d.supported[mimeType], nil
}

func (d *browserDevice) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	ack := make(chan captureAck, 1)
	d.mu.Lock()
	d.pending = ack
	d.mu.Unlock()

	if !d.send(serverMessage{
		Type:       evtCaptureRequest,
		MIMEType:   cfg.MIMEType,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}) {
		d.abandon(ack)
		return nil, io.ErrClosedPipe
	}

	timer := time.NewTimer(captureAckTimeout)
	defer timer.Stop()

	select {
	case result := <-ack:
		if result.err != nil {
			return nil, result.err
		}
		return result.session, nil
	case <-timer.C:
		d.abandon(ack)
		return nil, ErrCaptureTimeout
	case <-ctx.Done():
		d.abandon(ack)
		return nil, ctx.Err()
	}
}

// abandon withdraws a capture request and releases a session the browser opened too late.
func (d *browserDevice) abandon(ack chan captureAck) {
	d.mu.Lock()
	if d.pending == ack {
		d.pending = nil
	}
	d.mu.Unlock()

	select {
	case result := <-ack:
		if result.session != nil {
			_ = result.session.Close()
		}
	default:
	}
}

// captureReady opens the session before the acknowledgement is delivered so fragments that
// follow the ready message are never dropped.
func (d *browserDevice) captureReady() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	var session *browserSession
	if pending != nil {
		session = newBrowserSession(d)
		d.active = session
	}
	d.mu.Unlock()

	if pending != nil {
		pending <- captureAck{session: session}
	}
}

func (d *browserDevice) captureDenied(message string) {
	err := ErrCaptureDenied
	if message != "" {
		err = errors.New(message)
	}
	d.fail(err)
}

func (d *browserDevice) fail(err error) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	if pending != nil {
		pending <- captureAck{err: err}
	}
}

// fragment forwards one binary frame to the active capture. Frames outside a capture are dropped.
func (d *browserDevice) fragment(data []byte) {
	d.mu.Lock()
	session := d.active
	d.mu.Unlock()
	if session != nil {
		session.write(data)
	}
}

func (d *browserDevice) captureDone() {
	d.mu.Lock()
	session := d.active
	d.mu.Unlock()
	if session != nil {
		session.finish()
	}
}

// close releases the active capture when the connection goes away.
func (d *browserDevice) close() {
	d.fail(io.ErrClosedPipe)
	d.mu.Lock()
	session := d.active
	d.active = nil
	d.mu.Unlock()
	if session != nil {
		_ = session.Close()
	}
}

func (d *browserDevice) detach(session *browserSession) {
	d.mu.Lock()
	if d.active == session {
		d.active = nil
	}
	d.mu.Unlock()
}

type browserSession struct {
	device *browserDevice
	reader *io.PipeReader
	writer *io.PipeWriter

	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
}

func newBrowserSession(device *browserDevice) *browserSession {
	reader, writer := io.Pipe()
	return &browserSession{
		device: device,
		reader: reader,
		writer: writer,
		done:   make(chan struct{}),
	}
}

func (s *browserSession) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *browserSession) write(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	_, _ = s.writer.Write(data)
}

func (s *browserSession) finish() {
	s.doneOnce.Do(func() {
		close(s.done)
		_ = s.writer.Close()
	})
}

// Stop asks the browser to stop recording and waits for its final fragment.
func (s *browserSession) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if !s.device.send(serverMessage{Type: evtCaptureStop}) {
			s.finish()
			return
		}
		timer := time.NewTimer(captureDoneTimeout)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			err = errors.New("browser did not confirm end of recording")
			s.finish()
		}
	})
	return err
}

func (s *browserSession) Close() error {
	s.finish()
	s.device.detach(s)
	return s.reader.Close()
}
