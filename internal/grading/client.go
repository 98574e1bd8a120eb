// Package grading sends a recorded clip to a generative model and turns its reply into an Evaluation.
package grading

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accentcoach/internal/domain"
	"accentcoach/internal/logging"
	"accentcoach/internal/ports"
)

var (
	ErrGradingFailed     = errors.New("grading failed")
	ErrMalformedResponse = errors.New("malformed grading response")
	ErrInvalidRequest    = errors.New("invalid grading request")
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

// FailedError is returned once every attempt has failed.
type FailedError struct {
	Attempts int
	Err      error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("grading failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

func (e *FailedError) Is(target error) bool { return target == ErrGradingFailed }

// Reason is the last failure message, suitable for display.
func (e *FailedError) Reason() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

// Request identifies one grading job.
type Request struct {
	Word       domain.WordItem
	Payload    string
	MIMEType   string
	RequestID  string
	Generation uint64
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client grades clips with exponential backoff retries.
type Client struct {
	model  ports.GradingModel
	cfg    Config
	logger *slog.Logger
}

func NewClient(model ports.GradingModel, cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Client{model: model, cfg: cfg, logger: logging.OrDiscard(logger)}
}

// Grade makes up to MaxAttempts model calls. Before retry n it waits BaseDelay * 2^(n-1).
func (c *Client) Grade(ctx context.Context, req Request) (domain.Evaluation, error) {
	audio, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("%w: payload is not base64: %v", ErrInvalidRequest, err)
	}
	if len(audio) == 0 {
		return domain.Evaluation{}, fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}
	prompt, err := BuildPrompt(req.Word)
	if err != nil {
		return domain.Evaluation{}, err
	}

	modelReq := ports.ModelRequest{
		Prompt:   prompt,
		Audio:    audio,
		MIMEType: BaseMIMEType(req.MIMEType),
	}
	logger := c.logger.With("request_id", req.RequestID, "word_id", req.Word.ID, "generation", req.Generation)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			logger.Debug("retrying grading", "attempt", attempt, "delay", delay)
			if err := c.cfg.Sleep(ctx, delay); err != nil {
				return domain.Evaluation{}, err
			}
		}

		evaluation, err := c.attempt(ctx, modelReq)
		if err == nil {
			logger.Info("grading succeeded", "attempt", attempt, "score", evaluation.Score)
			return evaluation, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Evaluation{}, ctxErr
		}

		lastErr = err
		logger.Warn("grading attempt failed", "attempt", attempt, "error", err)
	}

	return domain.Evaluation{}, &FailedError{Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, req ports.ModelRequest) (domain.Evaluation, error) {
	text, err := c.model.Generate(ctx, req)
	if err != nil {
		return domain.Evaluation{}, err
	}
	return ParseEvaluation(text)
}

func (c *Client) backoff(retry int) time.Duration {
	return c.cfg.BaseDelay * time.Duration(1<<(retry-1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
