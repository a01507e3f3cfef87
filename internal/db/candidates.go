package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const candidateColumns = `id, user_id, job_id, name, email, phone, status, rating, resume_url, created_at, updated_at`

func scanCandidate(row interface{ Scan(...any) error }) (*Candidate, error) {
	var c Candidate
	err := row.Scan(&c.ID, &c.UserID, &c.JobID, &c.Name, &c.Email, &c.Phone,
		&c.Status, &c.Rating, &c.ResumeURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CandidateCreateInput holds the columns written when a candidate is created.
type CandidateCreateInput struct {
	UserID    uuid.UUID
	JobID     *uuid.UUID
	Name      string
	Email     string
	Phone     string
	Status    CandidateStatus
	Rating    int
	ResumeURL *string
}

// CreateCandidate inserts a candidate row. It does not touch job counters.
func (db *DB) CreateCandidate(ctx context.Context, in *CandidateCreateInput) (*Candidate, error) {
	c, err := scanCandidate(db.q.QueryRow(ctx,
		`INSERT INTO candidates (user_id, job_id, name, email, phone, status, rating, resume_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+candidateColumns,
		in.UserID, in.JobID, in.Name, in.Email, in.Phone, in.Status, in.Rating, in.ResumeURL,
	))
	if err != nil {
		return nil, persistErr("create candidate", err)
	}
	return c, nil
}

// GetCandidate retrieves a candidate by ID. Returns nil if not found.
func (db *DB) GetCandidate(ctx context.Context, userID, candidateID uuid.UUID) (*Candidate, error) {
	c, err := scanCandidate(db.q.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1 AND user_id = $2`,
		candidateID, userID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// ListCandidatesByJob retrieves a job's candidates, newest first.
func (db *DB) ListCandidatesByJob(ctx context.Context, userID, jobID uuid.UUID) ([]Candidate, error) {
	rows, err := db.q.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE user_id = $1 AND job_id = $2
		 ORDER BY created_at DESC`,
		userID, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// UpdateCandidateStatus sets a candidate's status. Returns false if no row matched.
func (db *DB) UpdateCandidateStatus(ctx context.Context, userID, candidateID uuid.UUID, status CandidateStatus) (bool, error) {
	tag, err := db.q.Exec(ctx,
		`UPDATE candidates SET status = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		candidateID, userID, status,
	)
	if err != nil {
		return false, persistErr("update candidate status", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateCandidateRating sets a candidate's rating. Returns false if no row matched.
func (db *DB) UpdateCandidateRating(ctx context.Context, userID, candidateID uuid.UUID, rating int) (bool, error) {
	tag, err := db.q.Exec(ctx,
		`UPDATE candidates SET rating = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		candidateID, userID, rating,
	)
	if err != nil {
		return false, persistErr("update candidate rating", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCandidate removes a candidate and returns the job it belonged to.
// found is false when no row matched.
func (db *DB) DeleteCandidate(ctx context.Context, userID, candidateID uuid.UUID) (jobID *uuid.UUID, found bool, err error) {
	err = db.q.QueryRow(ctx,
		`DELETE FROM candidates WHERE id = $1 AND user_id = $2 RETURNING job_id`,
		candidateID, userID,
	).Scan(&jobID)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, persistErr("delete candidate", err)
	}
	return jobID, true, nil
}
