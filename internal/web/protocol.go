package web

import (
	"accentcoach/internal/domain"
	"accentcoach/internal/pitch"
)

// Client message types.
const (
	msgHello         = "hello"
	msgStart         = "start"
	msgStop          = "stop"
	msgSubmit        = "submit"
	msgReset         = "reset"
	msgNext          = "next"
	msgCaptureReady  = "capture_ready"
	msgCaptureDenied = "capture_denied"
	msgCaptureDone   = "capture_done"
)

// Server event types.
const (
	evtSession        = "session"
	evtWord           = "word"
	evtEvaluation     = "evaluation"
	evtError          = "error"
	evtClip           = "clip"
	evtCaptureRequest = "capture_request"
	evtCaptureStop    = "capture_stop"
)

type clientMessage struct {
	Type string `json:"type"`
	// Supported lists the recording MIME types the browser can produce (hello).
	Supported []string `json:"supported,omitempty"`
	// Message explains a capture_denied.
	Message string `json:"message,omitempty"`
}

type serverMessage struct {
	Type       string              `json:"type"`
	State      domain.SessionState `json:"state,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Code       string              `json:"code,omitempty"`
	Message    string              `json:"message,omitempty"`
	Word       *domain.WordItem    `json:"word,omitempty"`
	Diagram    *pitch.Diagram      `json:"diagram,omitempty"`
	Evaluation *domain.Evaluation  `json:"evaluation,omitempty"`
	Clip       *domain.Clip        `json:"clip,omitempty"`
	MIMEType   string              `json:"mimeType,omitempty"`
	SampleRate int                 `json:"sampleRate,omitempty"`
	Channels   int                 `json:"channels,omitempty"`
}
