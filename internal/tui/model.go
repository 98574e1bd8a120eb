// Package tui is the terminal frontend.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"accentcoach/internal/domain"
	"accentcoach/internal/pitch"
	"accentcoach/internal/usecase"
)

const passScore = 70

// Session is the practice session driven by the TUI.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (domain.Clip, error)
	Submit(ctx context.Context) error
	Reset()
	NextWord() domain.WordItem
	Word() domain.WordItem
	Status() domain.Status
}

// Model is the root bubbletea model.
type Model struct {
	session Session
	events  *Events

	word       domain.WordItem
	state      domain.SessionState
	evaluation *domain.Evaluation
	clip       *domain.Clip
	errMessage string
	busy       bool
	width      int
}

func New(session Session, events *Events) Model {
	status := session.Status()
	return Model{
		session: session,
		events:  events,
		word:    session.Word(),
		state:   status.State,
	}
}

func (m Model) Init() tea.Cmd {
	return m.events.Wait()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StateMsg:
		m.state = msg.State
		switch msg.State {
		case domain.SessionStateIdle, domain.SessionStateRecording:
			m.evaluation = nil
			m.errMessage = ""
			if msg.State == domain.SessionStateIdle {
				m.clip = nil
			}
		case domain.SessionStateGrading:
			m.errMessage = ""
		}
		return m, m.events.Wait()

	case WordMsg:
		m.word = msg.Word
		return m, m.events.Wait()

	case EvaluationMsg:
		evaluation := msg.Evaluation
		m.evaluation = &evaluation
		return m, m.events.Wait()

	case ErrorMsg:
		m.errMessage = msg.Message
		return m, m.events.Wait()

	case CommandDoneMsg:
		m.busy = false
		if msg.Clip != nil {
			m.clip = msg.Clip
		}
		if msg.Err != nil && isRejection(msg.Err) {
			m.errMessage = rejectionMessage(msg.Err)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.events.Close()
		return m, tea.Quit
	}

	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case KeySpace:
		m.busy = true
		if m.state == domain.SessionStateRecording {
			return m, stopCmd(m.session)
		}
		return m, startCmd(m.session)
	case KeyEnter:
		m.busy = true
		return m, submitCmd(m.session)
	case KeyReset:
		m.busy = true
		return m, resetCmd(m.session)
	case KeyNext:
		m.busy = true
		return m, nextCmd(m.session)
	}
	return m, nil
}

func startCmd(session Session) tea.Cmd {
	return func() tea.Msg {
		return CommandDoneMsg{Command: "start", Err: session.Start(context.Background())}
	}
}

func stopCmd(session Session) tea.Cmd {
	return func() tea.Msg {
		clip, err := session.Stop(context.Background())
		if err != nil {
			return CommandDoneMsg{Command: "stop", Err: err}
		}
		return CommandDoneMsg{Command: "stop", Clip: &clip}
	}
}

func submitCmd(session Session) tea.Cmd {
	return func() tea.Msg {
		return CommandDoneMsg{Command: "submit", Err: session.Submit(context.Background())}
	}
}

func resetCmd(session Session) tea.Cmd {
	return func() tea.Msg {
		session.Reset()
		return CommandDoneMsg{Command: "reset"}
	}
}

func nextCmd(session Session) tea.Cmd {
	return func() tea.Msg {
		session.NextWord()
		return CommandDoneMsg{Command: "next"}
	}
}

func isRejection(err error) bool {
	return errors.Is(err, usecase.ErrBusy) || errors.Is(err, usecase.ErrNoClip)
}

func rejectionMessage(err error) string {
	if errors.Is(err, usecase.ErrNoClip) {
		return "먼저 녹음해주세요."
	}
	return "지금은 녹음할 수 없습니다."
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("일본어 발음 코치"))
	b.WriteString("\n\n")
	b.WriteString(LabelStyle.Render(m.word.AccentLabel))
	b.WriteString("\n")
	b.WriteString(WordStyle.Render(m.word.Word))
	b.WriteString("  ")
	b.WriteString(DimStyle.Render(m.word.Reading))
	b.WriteString("\n")
	b.WriteString(DiagramStyle.Render(pitch.Text(pitch.Render(m.word.Pattern, m.word.Reading))))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(m.word.Description))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if m.evaluation != nil {
		b.WriteString("\n")
		b.WriteString(m.renderEvaluation())
		b.WriteString("\n")
	}
	if m.errMessage != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(m.errMessage))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderStatus() string {
	switch m.state {
	case domain.SessionStateRecording:
		return RecordingStyle.Render("● 녹음 중...")
	case domain.SessionStateCaptured:
		if m.clip != nil {
			return DimStyle.Render(fmt.Sprintf("녹음 완료 (%s, %d bytes, %.1fs)", m.clip.MIMEType, m.clip.Size, m.clip.Duration.Seconds()))
		}
		return DimStyle.Render("녹음 완료")
	case domain.SessionStateGrading:
		return DimStyle.Render("AI가 분석 중입니다...")
	case domain.SessionStateGraded:
		return DimStyle.Render("분석 완료")
	default:
		return DimStyle.Render("준비 완료")
	}
}

func (m Model) renderEvaluation() string {
	scoreStyle := FailStyle
	if m.evaluation.Score >= passScore {
		scoreStyle = PassStyle
	}
	lines := []string{
		scoreStyle.Render(fmt.Sprintf("%d점", m.evaluation.Score)) + "  " + m.evaluation.Result,
		LabelStyle.Render("악센트 분석") + " " + m.evaluation.AccentFeedback,
		LabelStyle.Render("조언") + " " + m.evaluation.Advice,
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var parts []string
	if m.state == domain.SessionStateRecording {
		parts = append(parts, FooterKeyStyle.Render("Space")+FooterDescStyle.Render(" 정지"))
	} else {
		parts = append(parts, FooterKeyStyle.Render("Space")+FooterDescStyle.Render(" 녹음"))
	}
	parts = append(parts, FooterKeyStyle.Render("Enter")+FooterDescStyle.Render(" 채점"))
	parts = append(parts, FooterKeyStyle.Render("r")+FooterDescStyle.Render(" 다시 하기"))
	parts = append(parts, FooterKeyStyle.Render("n")+FooterDescStyle.Render(" 다음 단어"))
	parts = append(parts, FooterKeyStyle.Render("q")+FooterDescStyle.Render(" 종료"))
	return strings.Join(parts, "  ")
}
