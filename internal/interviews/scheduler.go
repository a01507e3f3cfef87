// Package interviews books interviews with candidates. Booking only records
// the intent; confirmation email is sent elsewhere, which flips email_sent
// through MarkEmailSent.
package interviews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"go.uber.org/zap"
)

// Date and time layouts accepted by Schedule.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Store persists interviews.
type Store interface {
	CreateInterview(ctx context.Context, in *db.InterviewCreateInput) (*db.Interview, error)
	ListInterviewsByCandidate(ctx context.Context, userID, candidateID uuid.UUID) ([]db.Interview, error)
	MarkInterviewEmailSent(ctx context.Context, userID, interviewID uuid.UUID) (bool, error)
}

// Request books one interview. Candidate name, email and job name are
// snapshots, not references.
type Request struct {
	CandidateID    uuid.UUID `json:"candidate_id" validate:"required"`
	CandidateName  string    `json:"candidate_name" validate:"required,max=200"`
	CandidateEmail string    `json:"candidate_email" validate:"required,email"`
	JobName        string    `json:"job_name" validate:"max=200"`
	Date           string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string    `json:"time" validate:"required,datetime=15:04"`
	Notes          string    `json:"notes" validate:"max=2000"`
}

// Scheduler books interviews.
type Scheduler struct {
	store    Store
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Scheduler.
func New(store Store, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		validate: validator.New(),
		logger:   logging.OrNop(logger).Named("interviews"),
		now:      time.Now,
	}
}

// Schedule validates req and inserts a new interview with email_sent false.
// A date before today is rejected. Rescheduling is a new booking.
func (s *Scheduler) Schedule(ctx context.Context, userID uuid.UUID, req *Request) (*db.Interview, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "interview", Message: err.Error()}
	}

	date, err := time.Parse(DateLayout, req.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: err.Error()}
	}
	if date.Before(today(s.now())) {
		return nil, &ValidationError{Field: "date", Message: "must not be in the past"}
	}

	iv, err := s.store.CreateInterview(ctx, &db.InterviewCreateInput{
		UserID:         userID,
		CandidateID:    req.CandidateID,
		CandidateName:  strings.TrimSpace(req.CandidateName),
		CandidateEmail: strings.TrimSpace(req.CandidateEmail),
		JobName:        strings.TrimSpace(req.JobName),
		Date:           date,
		Time:           req.Time,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, &SchedulingFailedError{CandidateID: req.CandidateID, Cause: err}
	}

	s.logger.Info("Interview scheduled",
		zap.String("interview_id", iv.ID.String()),
		zap.String("candidate_id", req.CandidateID.String()),
		zap.String("date", req.Date))
	return iv, nil
}

// ListForCandidate returns a candidate's interviews, soonest first.
func (s *Scheduler) ListForCandidate(ctx context.Context, userID, candidateID uuid.UUID) ([]db.Interview, error) {
	list, err := s.store.ListInterviewsByCandidate(ctx, userID, candidateID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []db.Interview{}
	}
	return list, nil
}

// MarkEmailSent records that the confirmation email went out. Marking an
// already marked interview succeeds.
func (s *Scheduler) MarkEmailSent(ctx context.Context, userID, interviewID uuid.UUID) error {
	ok, err := s.store.MarkInterviewEmailSent(ctx, userID, interviewID)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: interviewID}
	}
	return nil
}

// today is the calendar date of now, in now's location, as UTC midnight so
// it compares directly with dates parsed from DateLayout.
func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SchedulingFailedError reports a failed interview insert. It is not retried.
type SchedulingFailedError struct {
	CandidateID uuid.UUID
	Cause       error
}

func (e *SchedulingFailedError) Error() string {
	return fmt.Sprintf("failed to schedule interview for candidate %s: %v", e.CandidateID, e.Cause)
}

func (e *SchedulingFailedError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a rejected booking request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// NotFoundError indicates the interview does not exist for this user.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("interview not found: %s", e.ID)
}
