package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"accentcoach/internal/capture"
	"accentcoach/internal/domain"
	"accentcoach/internal/grading"
	"accentcoach/internal/logging"
	"accentcoach/internal/pitch"
	"accentcoach/internal/ports"
)

var (
	ErrBusy         = errors.New("session is busy")
	ErrNotRecording = errors.New("no active recording")
	ErrNoClip       = errors.New("no captured clip to submit")
	ErrClipTooShort = errors.New("captured clip is too short")
	ErrStaleCapture = errors.New("capture was discarded by a reset")
)

// SessionController drives record, stop, submit and reset for the current practice word.
type SessionController struct {
	recorder     Recorder
	grader       Grader
	words        WordBank
	events       ports.EventSink
	logger       *slog.Logger
	newRequestID func() string

	// opMu serializes user operations; mu guards session state shared with grading jobs.
	opMu sync.Mutex
	jobs sync.WaitGroup

	mu         sync.Mutex
	state      domain.SessionState
	clip       *capture.Result
	evaluation *domain.Evaluation
	errMessage string
	generation uint64
	job        *gradingJob
}

func NewSessionController(
	recorder Recorder,
	grader Grader,
	words WordBank,
	events ports.EventSink,
	logger *slog.Logger,
) *SessionController {
	return &SessionController{
		recorder:     recorder,
		grader:       grader,
		words:        words,
		events:       events,
		logger:       logging.OrDiscard(logger),
		newRequestID: uuid.NewString,
		state:        domain.SessionStateIdle,
	}
}

// Start begins recording. It is rejected while recording or grading.
func (c *SessionController) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state == domain.SessionStateRecording || c.state == domain.SessionStateGrading {
		c.mu.Unlock()
		return ErrBusy
	}
	restarted := c.clip != nil
	c.clearResultsLocked()
	c.mu.Unlock()

	if err := c.recorder.Start(ctx); err != nil {
		message := microphoneMessage(err)
		c.fail(domain.ErrorCodeMicrophone, message, domain.SessionReasonMicUnavailable)
		c.logger.Warn("recording failed to start", "error", err)
		return err
	}

	reason := domain.SessionReasonRecordingStarted
	if restarted {
		reason = domain.SessionReasonRecordingRestarted
	}
	c.transition(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends the recording and waits for the clip's payload.
func (c *SessionController) Stop(ctx context.Context) (domain.Clip, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != domain.SessionStateRecording {
		c.mu.Unlock()
		return domain.Clip{}, ErrNotRecording
	}
	generation := c.generation
	c.mu.Unlock()

	results, err := c.recorder.Stop()
	if err != nil {
		if errors.Is(err, capture.ErrEmptyCapture) {
			c.fail(domain.ErrorCodeCapture, messageEmptyCapture, domain.SessionReasonEmptyCapture)
		} else {
			c.fail(domain.ErrorCodeCapture, messageCaptureFailed, domain.SessionReasonEmptyCapture)
		}
		return domain.Clip{}, err
	}

	var result capture.Result
	select {
	case result = <-results:
	case <-ctx.Done():
		c.recorder.Reset()
		c.fail(domain.ErrorCodeCapture, messageCaptureFailed, domain.SessionReasonEmptyCapture)
		return domain.Clip{}, ctx.Err()
	}

	if result.DeviceErr != nil {
		c.logger.Warn("audio device did not stop cleanly", "error", result.DeviceErr)
		c.events.SessionError(domain.ErrorCodeAudioStop, messageStopFailed)
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return domain.Clip{}, ErrStaleCapture
	}
	c.clip = &result
	c.state = domain.SessionStateCaptured
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateCaptured, domain.SessionReasonRecordingCaptured)
	return result.Clip, nil
}

// Submit sends the captured clip for grading. Grading runs in the background; the outcome arrives
// through the event sink and Status.
func (c *SessionController) Submit(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != domain.SessionStateCaptured || c.clip == nil {
		c.mu.Unlock()
		return ErrNoClip
	}
	if c.clip.Clip.TooShort {
		c.state = domain.SessionStateError
		c.errMessage = messageTooShort
		c.mu.Unlock()
		c.events.SessionError(domain.ErrorCodeCapture, messageTooShort)
		c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonTooShort)
		return ErrClipTooShort
	}

	word := c.words.Current()
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &gradingJob{
		requestID:  c.newRequestID(),
		generation: c.generation,
		wordID:     word.ID,
		cancel:     cancel,
	}
	req := grading.Request{
		Word:       word,
		Payload:    c.clip.Payload,
		MIMEType:   c.clip.Clip.MIMEType,
		RequestID:  job.requestID,
		Generation: job.generation,
	}
	c.job = job
	c.state = domain.SessionStateGrading
	c.evaluation = nil
	c.errMessage = ""
	c.jobs.Add(1)
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateGrading, domain.SessionReasonGrading)
	c.logger.Info("grading submitted", "request_id", job.requestID, "word_id", word.ID, "bytes", len(req.Payload))

	go c.runGrading(jobCtx, job, req)
	return nil
}

// Reset discards any capture, result and pending grading and returns to idle. It is idempotent.
func (c *SessionController) Reset() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.resetLocked(domain.SessionReasonReset)
}

// NextWord resets the session and advances to the next practice word.
func (c *SessionController) NextWord() domain.WordItem {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.resetLocked(domain.SessionReasonWordChanged)
	word := c.words.Next()
	c.events.WordChanged(word)
	return word
}

// Status returns a snapshot of the session.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{
		State:      c.state,
		Word:       c.words.Current(),
		Loading:    c.state == domain.SessionStateGrading,
		Error:      c.errMessage,
		Generation: c.generation,
	}
	if c.evaluation != nil {
		evaluation := *c.evaluation
		status.Evaluation = &evaluation
	}
	if c.clip != nil {
		status.HasClip = true
		status.ClipMIMEType = c.clip.Clip.MIMEType
		status.ClipBytes = c.clip.Clip.Size
	}
	return status
}

// Word returns the current practice word.
func (c *SessionController) Word() domain.WordItem {
	return c.words.Current()
}

// Diagram renders the pitch diagram for the current word.
func (c *SessionController) Diagram() pitch.Diagram {
	word := c.words.Current()
	return pitch.Render(word.Pattern, word.Reading)
}

// Clip returns the last captured clip and its base64 payload.
func (c *SessionController) Clip() (domain.Clip, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clip == nil {
		return domain.Clip{}, "", false
	}
	return c.clip.Clip, c.clip.Payload, true
}

// Wait blocks until in-flight grading jobs have finished.
func (c *SessionController) Wait() {
	c.jobs.Wait()
}

// Close cancels pending grading, releases the microphone and waits for background work.
func (c *SessionController) Close() {
	c.Reset()
	c.Wait()
}

func (c *SessionController) resetLocked(reason domain.SessionStateReason) {
	c.recorder.Reset()

	c.mu.Lock()
	c.generation++
	job := c.job
	c.job = nil
	c.clearResultsLocked()
	c.state = domain.SessionStateIdle
	c.mu.Unlock()

	if job != nil {
		job.cancel()
	}
	c.events.SessionStateChanged(domain.SessionStateIdle, reason)
}

func (c *SessionController) runGrading(ctx context.Context, job *gradingJob, req grading.Request) {
	defer c.jobs.Done()
	defer job.cancel()

	evaluation, err := c.grader.Grade(ctx, req)
	c.finishGrading(job, evaluation, err)
}

// finishGrading applies a grading outcome unless the session moved on since submission.
func (c *SessionController) finishGrading(job *gradingJob, evaluation domain.Evaluation, err error) {
	c.mu.Lock()
	current := c.words.Current()
	if c.job != job || c.generation != job.generation || current.ID != job.wordID {
		c.mu.Unlock()
		c.logger.Info("discarding stale grading result",
			"request_id", job.requestID, "generation", job.generation, "word_id", job.wordID)
		return
	}
	c.job = nil

	if err != nil {
		message := gradingMessage(err)
		c.state = domain.SessionStateError
		c.errMessage = message
		c.mu.Unlock()

		c.logger.Warn("grading failed", "request_id", job.requestID, "error", err)
		c.events.SessionError(domain.ErrorCodeGrading, message)
		c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonGradingFailed)
		return
	}

	c.evaluation = &evaluation
	c.state = domain.SessionStateGraded
	c.mu.Unlock()

	c.events.EvaluationReady(evaluation)
	c.events.SessionStateChanged(domain.SessionStateGraded, domain.SessionReasonGraded)
}

func (c *SessionController) fail(code domain.ErrorCode, message string, reason domain.SessionStateReason) {
	c.mu.Lock()
	c.state = domain.SessionStateError
	c.errMessage = message
	c.mu.Unlock()

	c.events.SessionError(code, message)
	c.events.SessionStateChanged(domain.SessionStateError, reason)
}

func (c *SessionController) transition(state domain.SessionState, reason domain.SessionStateReason) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.events.SessionStateChanged(state, reason)
}

func (c *SessionController) clearResultsLocked() {
	c.clip = nil
	c.evaluation = nil
	c.errMessage = ""
}
