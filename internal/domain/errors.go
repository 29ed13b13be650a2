package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCorruptState marks an unreadable dedup state record.
	ErrCorruptState = errors.New("corrupt run state")
	// ErrCorruptRecord marks an unreadable snapshot or summary record.
	ErrCorruptRecord = errors.New("corrupt record")
	// ErrNoPayload is returned when no JSON object can be recovered from model output.
	ErrNoPayload = errors.New("no structured payload in response")
	// ErrEmptyPayload is returned for a structurally valid but empty payload.
	ErrEmptyPayload = errors.New("empty structured payload")
	// ErrInvalidKey rejects storage keys that do not map to a record.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Pipeline steps that call external collaborators.
const (
	StepFetch     = "fetch"
	StepSummarize = "summarize"
	StepOverall   = "overall"
	StepNotify    = "notify"
)

// StepError reports the failure of a single externally blocking step.
type StepError struct {
	Step  string
	Chunk int
	Err   error
}

func (e *StepError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("%s chunk %d: %v", e.Step, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-triggering the run may succeed without
// operator action. Parse failures and corrupt records are not retryable.
func (e *StepError) Retryable() bool {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return true
	case errors.Is(e.Err, ErrNoPayload), errors.Is(e.Err, ErrEmptyPayload),
		errors.Is(e.Err, ErrCorruptRecord), errors.Is(e.Err, ErrCorruptState):
		return false
	case errors.Is(e.Err, context.Canceled):
		return false
	default:
		return true
	}
}
