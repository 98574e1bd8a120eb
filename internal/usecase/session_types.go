package usecase

import (
	"context"

	"accentcoach/internal/capture"
	"accentcoach/internal/domain"
	"accentcoach/internal/grading"
)

// Recorder captures one clip at a time.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (<-chan capture.Result, error)
	Reset()
	Active() bool
}

// Grader evaluates a captured clip.
type Grader interface {
	Grade(ctx context.Context, req grading.Request) (domain.Evaluation, error)
}

// WordBank is the cyclic practice list.
type WordBank interface {
	Current() domain.WordItem
	Next() domain.WordItem
}

// gradingJob tags an in-flight grading request so late results can be matched to the session.
type gradingJob struct {
	requestID  string
	generation uint64
	wordID     int
	cancel     context.CancelFunc
}
