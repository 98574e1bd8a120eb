package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"accentcoach/internal/bootstrap"
	"accentcoach/internal/config"
	"accentcoach/internal/domain"
	"accentcoach/internal/pitch"
	"accentcoach/internal/usecase"
)

const (
	eventSession    = "accentcoach:session"
	eventWord       = "accentcoach:word"
	eventEvaluation = "accentcoach:evaluation"
	eventError      = "accentcoach:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, nil)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	a.WordChanged(a.controller.Word())
}

func (a *App) shutdown(_ context.Context) {
	a.services.Close()
}

// GetWord returns the current practice word.
func (a *App) GetWord() (domain.WordItem, error) {
	if err := a.requireReady(); err != nil {
		return domain.WordItem{}, err
	}
	return a.controller.Word(), nil
}

// GetDiagram returns the pitch diagram of the current word.
func (a *App) GetDiagram() (pitch.Diagram, error) {
	if err := a.requireReady(); err != nil {
		return pitch.Diagram{}, err
	}
	return a.controller.Diagram(), nil
}

// NextWord discards the current attempt and moves to the next word.
func (a *App) NextWord() (domain.WordItem, error) {
	if err := a.requireReady(); err != nil {
		return domain.WordItem{}, err
	}
	return a.controller.NextWord(), nil
}

// StartRecording begins capturing from the microphone.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopRecording ends the capture and returns the clip metadata.
func (a *App) StopRecording() (domain.Clip, error) {
	if err := a.requireReady(); err != nil {
		return domain.Clip{}, err
	}
	return a.controller.Stop(a.ctx)
}

// GetClip returns the captured clip as a data URL for playback.
func (a *App) GetClip() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	clip, payload, ok := a.controller.Clip()
	if !ok {
		return "", usecase.ErrNoClip
	}
	return fmt.Sprintf("data:%s;base64,%s", clip.MIMEType, payload), nil
}

// Submit sends the captured clip for grading. The result arrives as an evaluation event.
func (a *App) Submit() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Submit(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Reset clears the current attempt.
func (a *App) Reset() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.Reset()
	return a.controller.Status(), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Error: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	apiKey := "missing"
	if a.cfg.Gemini.APIKey != "" {
		apiKey = "configured"
	}
	return map[string]string{
		"provider":         "Gemini",
		"model":            a.cfg.Gemini.Model,
		"apiKey":           apiKey,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// WordChanged emits the newly selected word with its diagram.
func (a *App) WordChanged(word domain.WordItem) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventWord, map[string]any{
		"word":    word,
		"diagram": pitch.Render(word.Pattern, word.Reading),
	})
}

// EvaluationReady emits a completed grading result.
func (a *App) EvaluationReady(evaluation domain.Evaluation) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventEvaluation, evaluation)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "준비 완료"
	case domain.SessionReasonRecordingStarted:
		return "녹음 중..."
	case domain.SessionReasonRecordingRestarted:
		return "다시 녹음 중... 이전 녹음은 삭제되었습니다"
	case domain.SessionReasonRecordingCaptured:
		return "녹음 완료"
	case domain.SessionReasonGrading:
		return "AI가 분석 중입니다..."
	case domain.SessionReasonGraded:
		return "분석 완료"
	case domain.SessionReasonReset:
		return "초기화되었습니다"
	case domain.SessionReasonWordChanged:
		return "다음 단어"
	case domain.SessionReasonMicUnavailable:
		return "마이크를 사용할 수 없습니다"
	case domain.SessionReasonEmptyCapture:
		return "녹음된 소리가 없습니다"
	case domain.SessionReasonTooShort:
		return "녹음이 너무 짧습니다"
	case domain.SessionReasonGradingFailed:
		return "분석 실패"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "시작 실패"
	case domain.ErrorCodeAudioStop:
		return "녹음 종료 문제"
	default:
		if detail == "" {
			return "알 수 없는 오류"
		}
		return detail
	}
}
