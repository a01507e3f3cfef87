package candidates

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError indicates the candidate does not exist for this user.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("candidate not found: %s", e.ID)
}

// ValidationError indicates a rejected input value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// CounterDriftWarning records a candidate delete whose applicant-count
// decrement did not happen. It is logged, never returned.
type CounterDriftWarning struct {
	CandidateID uuid.UUID
	JobID       uuid.UUID
	Cause       error
}

func (e *CounterDriftWarning) Error() string {
	return fmt.Sprintf("applicant count for job %s may have drifted after deleting candidate %s: %v",
		e.JobID, e.CandidateID, e.Cause)
}

func (e *CounterDriftWarning) Unwrap() error {
	return e.Cause
}
