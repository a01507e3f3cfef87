// Package candidates manages a candidate's status and rating and keeps the
// owning job's applicant counter in step when candidates are deleted.
package candidates

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"github.com/jonathan/recruit-engine/internal/resolver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// enrichConcurrency bounds parallel resolver calls when listing candidates.
const enrichConcurrency = 8

// Store is the persistence the lifecycle needs.
type Store interface {
	CreateCandidate(ctx context.Context, in *db.CandidateCreateInput) (*db.Candidate, error)
	GetCandidate(ctx context.Context, userID, candidateID uuid.UUID) (*db.Candidate, error)
	ListCandidatesByJob(ctx context.Context, userID, jobID uuid.UUID) ([]db.Candidate, error)
	UpdateCandidateStatus(ctx context.Context, userID, candidateID uuid.UUID, status db.CandidateStatus) (bool, error)
	UpdateCandidateRating(ctx context.Context, userID, candidateID uuid.UUID, rating int) (bool, error)
	DeleteCandidate(ctx context.Context, userID, candidateID uuid.UUID) (*uuid.UUID, bool, error)
	DecrementApplicants(ctx context.Context, userID, jobID uuid.UUID) error
	ReconcileApplicantCounts(ctx context.Context) (int64, error)
}

// CreateInput describes a new candidate.
type CreateInput struct {
	JobID     *uuid.UUID `json:"job_id"`
	Name      string     `json:"name" validate:"required,min=1,max=200"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     string     `json:"phone" validate:"max=50"`
	AIRating  *int       `json:"ai_rating" validate:"omitempty,min=0,max=10"`
	ResumeURL *string    `json:"resume_url" validate:"omitempty,max=2048"`
}

// View is a candidate with its resolved application context.
type View struct {
	*db.Candidate
	Application resolver.Resolution `json:"application"`
	Band        Band                `json:"band"`
}

// Lifecycle implements candidate status, rating and deletion.
type Lifecycle struct {
	store    Store
	resolver resolver.Resolver
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a Lifecycle. res may be nil, in which case views are never enriched.
func New(store Store, res resolver.Resolver, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		resolver: res,
		validate: validator.New(),
		logger:   logging.OrNop(logger).Named("candidates"),
	}
}

// Create inserts a candidate with status New and the AI rating when one was
// given, otherwise 0. It does not change the job's applicant count; intake
// does that.
func (l *Lifecycle) Create(ctx context.Context, userID uuid.UUID, in *CreateInput) (*db.Candidate, error) {
	if err := l.validate.Struct(in); err != nil {
		return nil, &ValidationError{Field: "candidate", Message: err.Error()}
	}

	rating := 0
	if in.AIRating != nil {
		rating = *in.AIRating
	}

	return l.store.CreateCandidate(ctx, &db.CandidateCreateInput{
		UserID:    userID,
		JobID:     in.JobID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     in.Phone,
		Status:    db.StatusNew,
		Rating:    rating,
		ResumeURL: in.ResumeURL,
	})
}

// Get returns the candidate with its application context, or nil when the
// candidate does not exist.
func (l *Lifecycle) Get(ctx context.Context, userID, candidateID uuid.UUID) (*View, error) {
	c, err := l.store.GetCandidate(ctx, userID, candidateID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	v := l.view(ctx, userID, c)
	return &v, nil
}

// ListByJob returns a job's candidates, each enriched concurrently.
func (l *Lifecycle) ListByJob(ctx context.Context, userID, jobID uuid.UUID) ([]View, error) {
	list, err := l.store.ListCandidatesByJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	views := make([]View, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range list {
		g.Go(func() error {
			views[i] = l.view(gctx, userID, &list[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (l *Lifecycle) view(ctx context.Context, userID uuid.UUID, c *db.Candidate) View {
	v := View{Candidate: c, Application: resolver.Unresolved, Band: BandFor(c.Rating)}
	if l.resolver != nil && c.ResumeURL != nil {
		v.Application = l.resolver.Resolve(ctx, userID, *c.ResumeURL)
	}
	return v
}

// UpdateStatus moves a candidate to any status.
func (l *Lifecycle) UpdateStatus(ctx context.Context, userID, candidateID uuid.UUID, status db.CandidateStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	ok, err := l.store.UpdateCandidateStatus(ctx, userID, candidateID, status)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: candidateID}
	}
	return nil
}

// UpdateRating sets a rating between MinRating and MaxRating.
func (l *Lifecycle) UpdateRating(ctx context.Context, userID, candidateID uuid.UUID, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{Field: "rating", Message: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
	}
	ok, err := l.store.UpdateCandidateRating(ctx, userID, candidateID, rating)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: candidateID}
	}
	return nil
}

// Delete removes a candidate and decrements the owning job's applicant
// count. The owning job is the job the deleted row referenced. ownerJobID is
// only used when the row has no job, and is rejected when it names a
// different job than the row. It returns false when no candidate matched.
//
// A failed decrement is logged as a CounterDriftWarning and does not fail
// the delete; the row is already gone.
func (l *Lifecycle) Delete(ctx context.Context, userID, candidateID uuid.UUID, ownerJobID *uuid.UUID) (bool, error) {
	if ownerJobID != nil {
		c, err := l.store.GetCandidate(ctx, userID, candidateID)
		if err != nil {
			return false, err
		}
		if c == nil {
			return false, nil
		}
		if c.JobID != nil && *c.JobID != *ownerJobID {
			return false, &ValidationError{Field: "job_id", Message: "does not match the candidate's job"}
		}
	}

	rowJobID, found, err := l.store.DeleteCandidate(ctx, userID, candidateID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	jobID := rowJobID
	if jobID == nil {
		jobID = ownerJobID
	}
	if jobID == nil {
		return true, nil
	}

	if err := l.store.DecrementApplicants(ctx, userID, *jobID); err != nil {
		warning := &CounterDriftWarning{CandidateID: candidateID, JobID: *jobID, Cause: err}
		l.logger.Warn("Applicant counter drift",
			zap.String("candidate_id", candidateID.String()),
			zap.String("job_id", jobID.String()),
			zap.Error(warning))
	}
	return true, nil
}

// ReconcileApplicantCounts recomputes every job's applicant count from its
// candidates and returns how many jobs were corrected.
func (l *Lifecycle) ReconcileApplicantCounts(ctx context.Context) (int64, error) {
	n, err := l.store.ReconcileApplicantCounts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Info("Reconciled applicant counts", zap.Int64("jobs", n))
	}
	return n, nil
}
