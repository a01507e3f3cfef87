package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const jobColumns = `id, user_id, title, status, applicants, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var j Job
	if err := row.Scan(&j.ID, &j.UserID, &j.Title, &j.Status, &j.Applicants, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a job posting with zero applicants.
func (db *DB) CreateJob(ctx context.Context, userID uuid.UUID, title, status string) (*Job, error) {
	if status == "" {
		status = JobStatusActive
	}
	job, err := scanJob(db.q.QueryRow(ctx,
		`INSERT INTO jobs (user_id, title, status)
		 VALUES ($1, $2, $3)
		 RETURNING `+jobColumns,
		userID, title, status,
	))
	if err != nil {
		return nil, persistErr("create job", err)
	}
	return job, nil
}

// GetJob retrieves a job owned by userID. Returns nil if not found.
func (db *DB) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*Job, error) {
	job, err := scanJob(db.q.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`,
		jobID, userID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// UpdateJob changes a job's title and status. The applicants counter is
// deliberately not writable here.
func (db *DB) UpdateJob(ctx context.Context, userID, jobID uuid.UUID, title, status string) error {
	tag, err := db.q.Exec(ctx,
		`UPDATE jobs SET title = $3, status = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		jobID, userID, title, status,
	)
	if err != nil {
		return persistErr("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	return nil
}

// IncrementApplicants atomically adds one to a job's applicant count.
func (db *DB) IncrementApplicants(ctx context.Context, jobID uuid.UUID) error {
	tag, err := db.q.Exec(ctx,
		`UPDATE jobs SET applicants = applicants + 1, updated_at = NOW() WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return persistErr("increment applicants", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	return nil
}

// DecrementApplicants atomically subtracts one from a job's applicant count,
// never going below zero. The job must belong to userID.
func (db *DB) DecrementApplicants(ctx context.Context, userID, jobID uuid.UUID) error {
	tag, err := db.q.Exec(ctx,
		`UPDATE jobs SET applicants = GREATEST(applicants - 1, 0), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		jobID, userID,
	)
	if err != nil {
		return persistErr("decrement applicants", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	return nil
}

// ReconcileApplicantCounts recomputes every job's applicant count from its
// candidate rows and returns how many jobs had drifted.
func (db *DB) ReconcileApplicantCounts(ctx context.Context) (int64, error) {
	tag, err := db.q.Exec(ctx,
		`UPDATE jobs j SET applicants = c.n, updated_at = NOW()
		 FROM (
		     SELECT jobs.id AS job_id, COUNT(candidates.id)::int AS n
		     FROM jobs LEFT JOIN candidates ON candidates.job_id = jobs.id
		     GROUP BY jobs.id
		 ) c
		 WHERE j.id = c.job_id AND j.applicants <> c.n`,
	)
	if err != nil {
		return 0, persistErr("reconcile applicant counts", err)
	}
	return tag.RowsAffected(), nil
}
