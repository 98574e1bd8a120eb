package ports

import (
	"context"
	"errors"
	"io"

	"accentcoach/internal/domain"
)

// ErrProbeUnavailable is returned by an EncodingProber that cannot answer capability queries.
var ErrProbeUnavailable = errors.New("encoding capability query unavailable")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	// MIMEType is the negotiated recording encoding.
	MIMEType string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// EncodingProber answers whether the capture runtime can record a MIME type.
type EncodingProber interface {
	Supports(ctx context.Context, mimeType string) (bool, error)
}

// ModelRequest is a single multimodal grading request.
type ModelRequest struct {
	Prompt   string
	Audio    []byte
	MIMEType string
}

// GradingModel sends a grading request to a generative model and returns its output text.
type GradingModel interface {
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	WordChanged(word domain.WordItem)
	EvaluationReady(evaluation domain.Evaluation)
	SessionError(code domain.ErrorCode, detail string)
}
