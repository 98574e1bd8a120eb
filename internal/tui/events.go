package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"accentcoach/internal/domain"
)

// Events adapts session events into bubbletea messages.
type Events struct {
	ch        chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, 64), done: make(chan struct{})}
}

// Close stops delivery; later events are dropped.
func (e *Events) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

func (e *Events) emit(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// Wait returns a command that delivers the next session event.
func (e *Events) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

func (e *Events) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	e.emit(StateMsg{State: state, Reason: reason})
}

func (e *Events) WordChanged(word domain.WordItem) {
	e.emit(WordMsg{Word: word})
}

func (e *Events) EvaluationReady(evaluation domain.Evaluation) {
	e.emit(EvaluationMsg{Evaluation: evaluation})
}

func (e *Events) SessionError(code domain.ErrorCode, detail string) {
	e.emit(ErrorMsg{Code: code, Message: detail})
}
