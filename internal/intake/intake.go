// Package intake accepts a candidate's application to a job: it records the
// uploaded CV, the application and the candidate, bumps the job's applicant
// count, and notifies downstream automation.
package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"github.com/jonathan/recruit-engine/internal/resolver"
	"github.com/jonathan/recruit-engine/internal/webhook"
	"go.uber.org/zap"
)

// Store is the persistence used inside the intake transaction.
type Store interface {
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*db.Job, error)
	CreateSubmission(ctx context.Context, in *db.SubmissionCreateInput) (*db.Submission, error)
	CreateJobApplication(ctx context.Context, in *db.JobApplicationCreateInput) (*db.JobApplication, error)
	CreateCandidate(ctx context.Context, in *db.CandidateCreateInput) (*db.Candidate, error)
	IncrementApplicants(ctx context.Context, jobID uuid.UUID) error
}

// TxStore runs fn atomically. Everything fn writes commits together or not at all.
type TxStore interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// PGStore adapts *db.DB to TxStore.
type PGStore struct {
	DB *db.DB
}

// WithinTx runs fn inside a database transaction.
func (s PGStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return s.DB.InTx(ctx, func(tx *db.DB) error {
		return fn(tx)
	})
}

// Notifier receives an event for every accepted application.
type Notifier interface {
	Dispatch(ctx context.Context, ev webhook.Event)
}

// Input is one application.
type Input struct {
	Name      string `json:"name" validate:"required,min=1,max=200"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=50"`
	AIRating  *int   `json:"ai_rating" validate:"omitempty,min=0,max=10"`
	FileName  string `json:"file_name" validate:"required_with=FileURL,max=255"`
	FileURL   string `json:"file_url" validate:"omitempty,url"`
	MimeType  string `json:"mime_type" validate:"max=100"`
	SizeBytes int64  `json:"size_bytes" validate:"min=0"`
}

// Result is what one intake created.
type Result struct {
	Submission  *db.Submission     `json:"submission,omitempty"`
	Application *db.JobApplication `json:"application"`
	Candidate   *db.Candidate      `json:"candidate"`
}

// Service performs application intake.
type Service struct {
	store    TxStore
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a Service. notifier may be nil.
func New(store TxStore, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		logger:   logging.OrNop(logger).Named("intake"),
	}
}

// Submit records an application to jobID. The job must belong to userID.
// The applicant count is incremented in the same transaction as the inserts.
func (s *Service) Submit(ctx context.Context, userID, jobID uuid.UUID, in *Input) (*Result, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Field: "application", Message: err.Error()}
	}

	var (
		result Result
		job    *db.Job
	)
	err := s.store.WithinTx(ctx, func(tx Store) error {
		var err error
		job, err = tx.GetJob(ctx, userID, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return &NotFoundError{Resource: "job", ID: jobID}
		}

		// resume_url references the submission rather than the file so the
		// resolver can recover the submission id from it.
		var resumeURL *string
		if in.FileURL != "" {
			sub, err := tx.CreateSubmission(ctx, &db.SubmissionCreateInput{
				ID:        uuid.New(),
				UserID:    userID,
				JobID:     &job.ID,
				FileName:  in.FileName,
				FileURL:   in.FileURL,
				MimeType:  in.MimeType,
				SizeBytes: in.SizeBytes,
			})
			if err != nil {
				return err
			}
			result.Submission = sub
			ref := resolver.Reference(sub.ID)
			resumeURL = &ref
		}

		var submissionID *uuid.UUID
		if result.Submission != nil {
			submissionID = &result.Submission.ID
		}
		jobName := job.Title
		result.Application, err = tx.CreateJobApplication(ctx, &db.JobApplicationCreateInput{
			UserID:       userID,
			JobID:        &job.ID,
			SubmissionID: submissionID,
			JobName:      &jobName,
		})
		if err != nil {
			return err
		}

		rating := 0
		if in.AIRating != nil {
			rating = *in.AIRating
		}
		result.Candidate, err = tx.CreateCandidate(ctx, &db.CandidateCreateInput{
			UserID:    userID,
			JobID:     &job.ID,
			Name:      strings.TrimSpace(in.Name),
			Email:     strings.TrimSpace(in.Email),
			Phone:     in.Phone,
			Status:    db.StatusNew,
			Rating:    rating,
			ResumeURL: resumeURL,
		})
		if err != nil {
			return err
		}

		return tx.IncrementApplicants(ctx, job.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit application: %w", err)
	}

	s.logger.Info("Application accepted",
		zap.String("job_id", job.ID.String()),
		zap.String("candidate_id", result.Candidate.ID.String()))

	if s.notifier != nil {
		ev := webhook.Event{JobID: job.ID, JobName: job.Title, HRUserID: userID}
		if result.Submission != nil {
			ev.CVURL = result.Submission.FileURL
		}
		s.notifier.Dispatch(ctx, ev)
	}
	return &result, nil
}
