package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"accentcoach/internal/domain"
)

type evaluationPayload struct {
	Score          *int   `json:"score"`
	Result         string `json:"result"`
	AccentFeedback string `json:"accent_feedback"`
	Advice         string `json:"advice"`
}

// ParseEvaluation decodes model output into an Evaluation.
func ParseEvaluation(text string) (domain.Evaluation, error) {
	body := stripCodeFence(text)
	if body == "" {
		return domain.Evaluation{}, fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return domain.Evaluation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Score == nil {
		return domain.Evaluation{}, fmt.Errorf("%w: missing score", ErrMalformedResponse)
	}
	if *payload.Score < 0 || *payload.Score > 100 {
		return domain.Evaluation{}, fmt.Errorf("%w: score %d out of range", ErrMalformedResponse, *payload.Score)
	}

	return domain.Evaluation{
		Score:          *payload.Score,
		Result:         payload.Result,
		AccentFeedback: payload.AccentFeedback,
		Advice:         payload.Advice,
	}, nil
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
