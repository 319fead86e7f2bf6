package audit

import (
	"time"

	"github.com/google/uuid"

	"checkscan/internal/submission"
)

// Outcome is the final state of a submitted batch.
type Outcome string

const (
	OutcomeCommitted    Outcome = "committed"
	OutcomeReverted     Outcome = "reverted"
	OutcomeRevertFailed Outcome = "revert_failed"
	// OutcomeAbandoned is an interrupted batch with nothing sent.
	OutcomeAbandoned Outcome = "abandoned"
)

// Event records one batch submission. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	ID          uuid.UUID `json:"id"`
	BatchID     string    `json:"batchId"`
	Timestamp   time.Time `json:"timestamp"`
	Outcome     Outcome   `json:"outcome"`
	Attempted   []string  `json:"attempted"`
	Failed      []string  `json:"failed"`
	Skipped     []string  `json:"skipped"`
	RevertError string    `json:"revertError,omitempty"`
}

// EventFromBatch summarises result as an Event stamped at.
func EventFromBatch(result submission.BatchResult, at time.Time) Event {
	e := Event{
		ID:        uuid.New(),
		BatchID:   result.BatchID,
		Timestamp: at,
		Attempted: nonNil(result.Attempted),
		Failed:    nonNil(result.FailedNames()),
		Skipped:   nonNil(result.Skipped),
	}
	switch {
	case !result.Failed:
		e.Outcome = OutcomeCommitted
	case result.Revert == nil:
		e.Outcome = OutcomeAbandoned
	case result.Revert.HasError:
		e.Outcome = OutcomeRevertFailed
		e.RevertError = result.Revert.ErrorDetail
	default:
		e.Outcome = OutcomeReverted
	}
	return e
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
