// Package resolver works out which job a candidate's submission belongs to.
//
// A reference (typically the resume URL stored on a candidate) is reduced to
// a submission id, then resolved through an ordered chain:
//
//  1. the submission's own job_id (a direct reference),
//  2. the job application that points at the submission, preferring its
//     denormalized job name over a job lookup,
//  3. otherwise unresolved.
//
// Resolution never fails. Lookup errors are logged and the result degrades to
// unresolved.
package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"go.uber.org/zap"
)

// Kind tags how a Resolution was reached.
type Kind string

const (
	KindDirect         Kind = "direct"
	KindViaApplication Kind = "via_application"
	KindUnresolved     Kind = "unresolved"
)

// Resolution is the outcome of resolving a submission reference.
type Resolution struct {
	Kind         Kind       `json:"kind"`
	SubmissionID *uuid.UUID `json:"submission_id,omitempty"`
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	JobTitle     string     `json:"job_title,omitempty"`
	// Denormalized is true when JobTitle came from the application's job_name
	// rather than the job row.
	Denormalized bool `json:"denormalized,omitempty"`
}

// Resolved reports whether a job was found.
func (r Resolution) Resolved() bool {
	return r.Kind == KindDirect || r.Kind == KindViaApplication
}

// Unresolved is the empty result.
var Unresolved = Resolution{Kind: KindUnresolved}

// Resolver resolves submission references for a user.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, reference string) Resolution
}

// Store is the read access the resolver needs.
type Store interface {
	GetSubmission(ctx context.Context, userID, submissionID uuid.UUID) (*db.Submission, error)
	GetJobApplicationBySubmission(ctx context.Context, userID, submissionID uuid.UUID) (*db.JobApplication, error)
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*db.Job, error)
}

// SubmissionResolver is the Store-backed Resolver.
type SubmissionResolver struct {
	store  Store
	logger *zap.Logger
}

// New creates a SubmissionResolver.
func New(store Store, logger *zap.Logger) *SubmissionResolver {
	return &SubmissionResolver{
		store:  store,
		logger: logging.OrNop(logger).Named("resolver"),
	}
}

// Resolve runs the fallback chain for reference.
func (r *SubmissionResolver) Resolve(ctx context.Context, userID uuid.UUID, reference string) Resolution {
	submissionID, ok := ExtractSubmissionID(reference)
	if !ok {
		return Unresolved
	}
	log := r.logger.With(zap.String("submission_id", submissionID.String()))

	if res, ok := r.direct(ctx, log, userID, submissionID); ok {
		return res
	}
	if res, ok := r.viaApplication(ctx, log, userID, submissionID); ok {
		return res
	}
	return Resolution{Kind: KindUnresolved, SubmissionID: &submissionID}
}

func (r *SubmissionResolver) direct(ctx context.Context, log *zap.Logger, userID, submissionID uuid.UUID) (Resolution, bool) {
	sub, err := r.store.GetSubmission(ctx, userID, submissionID)
	if err != nil {
		log.Debug("submission lookup failed", zap.Error(err))
		return Resolution{}, false
	}
	if sub == nil || sub.JobID == nil {
		return Resolution{}, false
	}

	// A direct reference whose job cannot be read falls through to the
	// application lookup.
	job, err := r.store.GetJob(ctx, userID, *sub.JobID)
	if err != nil {
		log.Debug("job lookup failed", zap.String("job_id", sub.JobID.String()), zap.Error(err))
		return Resolution{}, false
	}
	if job == nil {
		return Resolution{}, false
	}

	jobID := job.ID
	return Resolution{
		Kind:         KindDirect,
		SubmissionID: &submissionID,
		JobID:        &jobID,
		JobTitle:     job.Title,
	}, true
}

func (r *SubmissionResolver) viaApplication(ctx context.Context, log *zap.Logger, userID, submissionID uuid.UUID) (Resolution, bool) {
	app, err := r.store.GetJobApplicationBySubmission(ctx, userID, submissionID)
	if err != nil {
		log.Debug("application lookup failed", zap.Error(err))
		return Resolution{}, false
	}
	// orphaned applications (job deleted) resolve to nothing
	if app == nil || app.JobID == nil {
		return Resolution{}, false
	}

	jobID := *app.JobID
	if app.JobName != nil && strings.TrimSpace(*app.JobName) != "" {
		return Resolution{
			Kind:         KindViaApplication,
			SubmissionID: &submissionID,
			JobID:        &jobID,
			JobTitle:     *app.JobName,
			Denormalized: true,
		}, true
	}

	job, err := r.store.GetJob(ctx, userID, jobID)
	if err != nil {
		log.Debug("job lookup failed", zap.String("job_id", jobID.String()), zap.Error(err))
		return Resolution{}, false
	}
	if job == nil {
		return Resolution{}, false
	}
	return Resolution{
		Kind:         KindViaApplication,
		SubmissionID: &submissionID,
		JobID:        &jobID,
		JobTitle:     job.Title,
	}, true
}

// Reference is the canonical submission reference stored as a candidate's
// resume_url. ExtractSubmissionID recovers id from it.
func Reference(id uuid.UUID) string {
	return "/submissions/" + id.String() + "/file"
}

var uuidSegment = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ExtractSubmissionID returns the first path segment of reference shaped like
// a canonical UUID. reference may be an absolute URL or a bare path; query
// and fragment are ignored.
func ExtractSubmissionID(reference string) (uuid.UUID, bool) {
	path := strings.TrimSpace(reference)
	if path == "" {
		return uuid.Nil, false
	}
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	for _, segment := range strings.Split(path, "/") {
		if !uuidSegment.MatchString(segment) {
			continue
		}
		id, err := uuid.Parse(segment)
		if err != nil {
			continue
		}
		return id, true
	}
	return uuid.Nil, false
}
