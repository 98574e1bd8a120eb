package tui

import "accentcoach/internal/domain"

// StateMsg reports a session state transition.
type StateMsg struct {
	State  domain.SessionState
	Reason domain.SessionStateReason
}

// WordMsg carries the newly selected word.
type WordMsg struct {
	Word domain.WordItem
}

// EvaluationMsg carries a completed grading result.
type EvaluationMsg struct {
	Evaluation domain.Evaluation
}

// ErrorMsg carries a user-facing session error.
type ErrorMsg struct {
	Code    domain.ErrorCode
	Message string
}

// CommandDoneMsg is returned when a session command finishes.
type CommandDoneMsg struct {
	Command string
	Clip    *domain.Clip
	Err     error
}
