package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"accentcoach/internal/ports"
)

type fakeDevice struct {
	mu       sync.Mutex
	sessions []*fakeSession
	calls    int
	configs  []ports.AudioConfig
	err      error
}

func (f *fakeDevice) Start(_ context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeSession yields its chunks and then blocks until Stop, like a live microphone.
type fakeSession struct {
	mu         sync.Mutex
	chunks     [][]byte
	stopped    chan struct{}
	stopOnce   sync.Once
	stopCalls  int
	closeCalls int
	stopErr    error
}

func newFakeSession(chunks ...[]byte) *fakeSession {
	return &fakeSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 {
		n := copy(p, f.chunks[0])
		if n < len(f.chunks[0]) {
			f.chunks[0] = f.chunks[0][n:]
		} else {
			f.chunks = f.chunks[1:]
		}
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	<-f.stopped
	return 0, io.EOF
}

func (f *fakeSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	err := f.stopErr
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return err
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeSession) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls, f.closeCalls
}

type fakeProber struct {
	supported map[string]bool
	err       error
	queries   []string
}

func (f *fakeProber) Supports(_ context.Context, mimeType string) (bool, error) {
	f.queries = append(f.queries, mimeType)
	if f.err != nil {
		return false, f.err
	}
	return f.supported[mimeType], nil
}
