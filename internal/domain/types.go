package domain

import "time"

// SessionState models the practice session lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStateCaptured  SessionState = "captured"
	SessionStateGrading   SessionState = "grading"
	SessionStateGraded    SessionState = "graded"
	SessionStateError     SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted SessionStateReason = "recording_restarted"
	SessionReasonRecordingCaptured  SessionStateReason = "recording_captured"
	SessionReasonGrading            SessionStateReason = "grading"
	SessionReasonGraded             SessionStateReason = "graded"
	SessionReasonReset              SessionStateReason = "reset"
	SessionReasonWordChanged        SessionStateReason = "word_changed"
	SessionReasonMicUnavailable     SessionStateReason = "mic_unavailable"
	SessionReasonEmptyCapture       SessionStateReason = "empty_capture"
	SessionReasonTooShort           SessionStateReason = "too_short"
	SessionReasonGradingFailed      SessionStateReason = "grading_failed"
)

// ErrorCode identifies user-visible backend errors.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeMicrophone ErrorCode = "microphone"
	ErrorCodeAudioStop  ErrorCode = "audio_stop"
	ErrorCodeCapture    ErrorCode = "capture"
	ErrorCodeGrading    ErrorCode = "grading"
)

// WordItem is one practice word with its expected pitch pattern.
type WordItem struct {
	ID          int    `json:"id"`
	Word        string `json:"word"`
	Kanji       string `json:"kanji,omitempty"`
	Reading     string `json:"reading"`
	AccentLabel string `json:"accentLabel"`
	Pattern     []int  `json:"pattern"`
	Description string `json:"description"`
}

// Evaluation is the structured feedback returned by the grading model.
type Evaluation struct {
	Score          int    `json:"score"`
	Result         string `json:"result"`
	AccentFeedback string `json:"accent_feedback"`
	Advice         string `json:"advice"`
}

// Clip is a finalized recording.
type Clip struct {
	Data     []byte        `json:"-"`
	MIMEType string        `json:"mimeType"`
	Size     int           `json:"size"`
	Duration time.Duration `json:"duration"`
	TooShort bool          `json:"tooShort"`
}

// Status summarizes the current session for frontends.
type Status struct {
	State        SessionState `json:"state"`
	Word         WordItem     `json:"word"`
	Evaluation   *Evaluation  `json:"evaluation,omitempty"`
	Loading      bool         `json:"loading"`
	Error        string       `json:"error,omitempty"`
	HasClip      bool         `json:"hasClip"`
	ClipMIMEType string       `json:"clipMimeType,omitempty"`
	ClipBytes    int          `json:"clipBytes,omitempty"`
	Generation   uint64       `json:"generation"`
}

// CanRecord reports whether a new recording may start from this status.
func (s Status) CanRecord() bool {
	return s.State != SessionStateRecording && s.State != SessionStateGrading
}
