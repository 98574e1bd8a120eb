package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"accentcoach/internal/capture"
	"accentcoach/internal/domain"
	"accentcoach/internal/grading"
	"accentcoach/internal/ports"
	"accentcoach/internal/wordbank"
)

const gradedOutput = `{"score":85,"result":"합격입니다","accent_feedback":"は가 높고 し가 낮습니다","advice":"좋아요"}`

func newTestController(t *testing.T, device *fakeAudioCapture, model *fakeModel, events *fakeEventSink) *SessionController {
	t.Helper()

	bank, err := wordbank.Default(nil)
	if err != nil {
		t.Fatalf("word bank: %v", err)
	}
	recorder := capture.NewRecorder(device, &fakeProber{supported: map[string]bool{"audio/webm;codecs=opus": true}}, capture.Config{
		Audio:        ports.AudioConfig{SampleRate: 16000, Channels: 1},
		ChunkSize:    4096,
		MinClipBytes: 1024,
	}, nil)
	grader := grading.NewClient(model, grading.Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}, nil)

	controller := NewSessionController(recorder, grader, bank, events, nil)
	controller.newRequestID = func() string { return "req-test" }
	return controller
}

func recordClip(t *testing.T, controller *SessionController) domain.Clip {
	t.Helper()
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	clip, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	return clip
}

func TestSessionControllerGradesCurrentWord(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(bytes.Repeat([]byte{7}, 1500), bytes.Repeat([]byte{8}, 1500))}}
	model := &fakeModel{replies: []fakeReply{{text: gradedOutput}}}
	events := &fakeEventSink{}
	controller := newTestController(t, device, model, events)

	word := controller.Word()
	if word.Word != "はし" || len(word.Pattern) != 2 || word.Pattern[0] != 1 || word.Pattern[1] != 0 {
		t.Fatalf("unexpected first word: %+v", word)
	}

	clip := recordClip(t, controller)
	if clip.Size != 3000 || clip.TooShort || clip.MIMEType != "audio/webm;codecs=opus" {
		t.Fatalf("unexpected clip: %+v", clip)
	}
	if status := controller.Status(); status.State != domain.SessionStateCaptured || !status.HasClip {
		t.Fatalf("expected captured status, got %+v", status)
	}

	if err := controller.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	controller.Wait()

	status := controller.Status()
	if status.State != domain.SessionStateGraded || status.Loading {
		t.Fatalf("expected graded status, got %+v", status)
	}
	if status.Evaluation == nil || status.Evaluation.Score != 85 {
		t.Fatalf("unexpected evaluation: %+v", status.Evaluation)
	}
	if model.calls() != 1 {
		t.Fatalf("expected one model call, got %d", model.calls())
	}
	if got := model.lastRequest().MIMEType; got != "audio/webm" {
		t.Fatalf("expected base mime type, got %q", got)
	}

	if evaluations := events.snapshotEvaluations(); len(evaluations) != 1 || evaluations[0].Score != 85 {
		t.Fatalf("expected evaluation event, got %+v", evaluations)
	}
	states := events.snapshotStates()
	wantReasons := []domain.SessionStateReason{
		domain.SessionReasonRecordingStarted,
		domain.SessionReasonRecordingCaptured,
		domain.SessionReasonGrading,
		domain.SessionReasonGraded,
	}
	if len(states) != len(wantReasons) {
		t.Fatalf("unexpected state sequence: %+v", states)
	}
	for i, want := range wantReasons {
		if states[i].reason != want {
			t.Fatalf("state %d: expected %s, got %s", i, want, states[i].reason)
		}
	}
}

func TestSessionControllerTooShortSkipsGrading(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(make([]byte, 400))}}
	model := &fakeModel{}
	events := &fakeEventSink{}
	controller := newTestController(t, device, model, events)

	clip := recordClip(t, controller)
	if !clip.TooShort {
		t.Fatalf("expected 400 byte clip to be too short")
	}

	if err := controller.Submit(context.Background()); !errors.Is(err, ErrClipTooShort) {
		t.Fatalf("expected ErrClipTooShort, got %v", err)
	}
	controller.Wait()

	if model.calls() != 0 {
		t.Fatalf("expected no network call, got %d", model.calls())
	}
	status := controller.Status()
	if status.State != domain.SessionStateError || status.Error != messageTooShort {
		t.Fatalf("expected too-short error status, got %+v", status)
	}
	if !status.CanRecord() {
		t.Fatalf("error state must allow recording again")
	}
}

func TestSessionControllerImmediateStopIsEmptyCapture(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession()}}
	events := &fakeEventSink{}
	controller := newTestController(t, device, &fakeModel{}, events)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := controller.Stop(context.Background())
	if !errors.Is(err, capture.ErrEmptyCapture) {
		t.Fatalf("expected ErrEmptyCapture, got %v", err)
	}

	status := controller.Status()
	if status.State != domain.SessionStateError || status.Error != messageEmptyCapture || status.HasClip {
		t.Fatalf("unexpected status after empty capture: %+v", status)
	}
	if errs := events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeCapture {
		t.Fatalf("expected one capture error event, got %+v", errs)
	}
}

func TestSessionControllerMicrophoneFailure(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{err: errors.New("Permission denied")}
	events := &fakeEventSink{}
	controller := newTestController(t, device, &fakeModel{}, events)

	err := controller.Start(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	status := controller.Status()
	if status.State != domain.SessionStateError {
		t.Fatalf("expected error state, got %s", status.State)
	}
	if status.Error != "마이크 오류: Permission denied. 권한을 확인해주세요." {
		t.Fatalf("unexpected message: %q", status.Error)
	}
	states := events.snapshotStates()
	if len(states) != 1 || states[0].reason != domain.SessionReasonMicUnavailable {
		t.Fatalf("unexpected states: %+v", states)
	}
}

func TestSessionControllerRejectsStartWhileBusy(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(make([]byte, 2048))}}
	model := &fakeModel{replies: []fakeReply{{text: gradedOutput}}, block: make(chan struct{})}
	controller := newTestController(t, device, model, &fakeEventSink{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while recording, got %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := controller.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := controller.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while grading, got %v", err)
	}
	if status := controller.Status(); !status.Loading {
		t.Fatalf("expected loading while grading")
	}

	close(model.block)
	controller.Wait()
	if status := controller.Status(); status.State != domain.SessionStateGraded {
		t.Fatalf("expected graded, got %s", status.State)
	}
}

func TestSessionControllerSubmitWithoutClip(t *testing.T) {
	t.Parallel()

	controller := newTestController(t, &fakeAudioCapture{}, &fakeModel{}, &fakeEventSink{})
	if err := controller.Submit(context.Background()); !errors.Is(err, ErrNoClip) {
		t.Fatalf("expected ErrNoClip, got %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestSessionControllerDiscardsStaleGrading(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(make([]byte, 2048))}}
	model := &fakeModel{replies: []fakeReply{{text: gradedOutput}}, block: make(chan struct{}), ignoreCancel: true}
	events := &fakeEventSink{}
	controller := newTestController(t, device, model, events)

	recordClip(t, controller)
	if err := controller.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	model.waitForCall(t)

	controller.Reset()
	close(model.block)
	controller.Wait()

	status := controller.Status()
	if status.State != domain.SessionStateIdle || status.Evaluation != nil || status.Loading {
		t.Fatalf("stale result leaked into session: %+v", status)
	}
	if len(events.snapshotEvaluations()) != 0 {
		t.Fatalf("stale evaluation must not be emitted")
	}
}

func TestSessionControllerDiscardsGradingAfterNextWord(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(make([]byte, 2048))}}
	model := &fakeModel{replies: []fakeReply{{text: gradedOutput}}, block: make(chan struct{}), ignoreCancel: true}
	events := &fakeEventSink{}
	controller := newTestController(t, device, model, events)

	recordClip(t, controller)
	if err := controller.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	model.waitForCall(t)

	next := controller.NextWord()
	close(model.block)
	controller.Wait()

	status := controller.Status()
	if status.Evaluation != nil || status.State != domain.SessionStateIdle {
		t.Fatalf("stale result leaked into session: %+v", status)
	}
	if next.ID != 2 || status.Word.ID != next.ID {
		t.Fatalf("expected word 2 after next, got next=%d status=%d", next.ID, status.Word.ID)
	}
	if len(events.snapshotEvaluations()) != 0 {
		t.Fatalf("stale evaluation must not be emitted")
	}
}

func TestFinishGradingChecksWordID(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(t, &fakeAudioCapture{}, &fakeModel{}, events)
	controller.NextWord()

	controller.mu.Lock()
	job := &gradingJob{requestID: "req-old", generation: controller.generation, wordID: 1, cancel: func() {}}
	controller.job = job
	controller.state = domain.SessionStateGrading
	controller.mu.Unlock()

	controller.finishGrading(job, domain.Evaluation{Score: 90}, nil)

	status := controller.Status()
	if status.Evaluation != nil || status.State == domain.SessionStateGraded {
		t.Fatalf("result for another word was applied: %+v", status)
	}
	if len(events.snapshotEvaluations()) != 0 {
		t.Fatalf("evaluation for another word must not be emitted")
	}
}

func TestSessionControllerGradingFailureAfterRetries(t *testing.T) {
	t.Parallel()

	var replies []fakeReply
	for i := 0; i < 5; i++ {
		replies = append(replies, fakeReply{err: errors.New("Internal error")})
	}
	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(make([]byte, 2048))}}
	model := &fakeModel{replies: replies}
	events := &fakeEventSink{}
	controller := newTestController(t, device, model, events)

	recordClip(t, controller)
	if err := controller.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	controller.Wait()

	if model.calls() != 5 {
		t.Fatalf("expected 5 attempts, got %d", model.calls())
	}
	status := controller.Status()
	if status.State != domain.SessionStateError || status.Error != "분석 실패: Internal error" {
		t.Fatalf("unexpected failure status: %+v", status)
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeGrading {
		t.Fatalf("expected grading error event, got %+v", errs)
	}
}

func TestSessionControllerResetIsIdempotent(t *testing.T) {
	t.Parallel()

	device := &fakeAudioCapture{sessions: []*fakeAudioSession{newFakeAudioSession(make([]byte, 2048))}}
	controller := newTestController(t, device, &fakeModel{}, &fakeEventSink{})

	recordClip(t, controller)
	controller.Reset()
	first := controller.Status()
	controller.Reset()
	second := controller.Status()

	if first.State != domain.SessionStateIdle || first.HasClip || first.Error != "" || first.Evaluation != nil {
		t.Fatalf("unexpected status after reset: %+v", first)
	}
	if second.State != first.State || second.HasClip != first.HasClip || second.Word.ID != first.Word.ID {
		t.Fatalf("second reset changed observable state: %+v vs %+v", first, second)
	}
}

func TestSessionControllerResetWhileRecordingReleasesDevice(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession(make([]byte, 2048))
	controller := newTestController(t, &fakeAudioCapture{sessions: []*fakeAudioSession{session}}, &fakeModel{}, &fakeEventSink{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	controller.Reset()

	if session.stopCount() != 1 {
		t.Fatalf("expected device to be stopped once, got %d", session.stopCount())
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording after reset, got %v", err)
	}
}

func TestSessionControllerNextWordCycles(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(t, &fakeAudioCapture{}, &fakeModel{}, events)

	start := controller.Word()
	var ids []int
	for i := 0; i < 5; i++ {
		ids = append(ids, controller.NextWord().ID)
	}
	if ids[len(ids)-1] != start.ID {
		t.Fatalf("expected to cycle back to %d, got %v", start.ID, ids)
	}
	if got := []int{2, 3, 4, 5, 1}; !equalInts(ids, got) {
		t.Fatalf("unexpected order %v", ids)
	}
	if words := events.snapshotWords(); len(words) != 5 {
		t.Fatalf("expected 5 word events, got %d", len(words))
	}
	if diagram := controller.Diagram(); len(diagram.Points) != len(start.Pattern) {
		t.Fatalf("diagram does not match current word: %+v", diagram)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	calls    int
	err      error
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	stopped   chan struct{}
	once      sync.Once
	stopCalls int
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
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

func (f *fakeAudioSession) Close() error {
	f.once.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.once.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProber struct {
	supported map[string]bool
}

func (f *fakeProber) Supports(_ context.Context, mimeType string) (bool, error) {
	return f.supported[mimeType], nil
}

type fakeReply struct {
	text string
	err  error
}

type fakeModel struct {
	mu           sync.Mutex
	replies      []fakeReply
	requests     []ports.ModelRequest
	block        chan struct{}
	ignoreCancel bool
}

func (f *fakeModel) Generate(ctx context.Context, req ports.ModelRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	index := len(f.requests) - 1
	f.mu.Unlock()

	if f.block != nil {
		if f.ignoreCancel {
			<-f.block
		} else {
			select {
			case <-f.block:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	if index >= len(f.replies) {
		return "", errors.New("unexpected call")
	}
	return f.replies[index].text, f.replies[index].err
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeModel) lastRequest() ports.ModelRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeModel) waitForCall(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("model was never called")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	words       []domain.WordItem
	evaluations []domain.Evaluation
	errors      []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) WordChanged(word domain.WordItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = append(f.words, word)
}

func (f *fakeEventSink) EvaluationReady(evaluation domain.Evaluation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluations = append(f.evaluations, evaluation)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotWords() []domain.WordItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WordItem(nil), f.words...)
}

func (f *fakeEventSink) snapshotEvaluations() []domain.Evaluation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Evaluation(nil), f.evaluations...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}
