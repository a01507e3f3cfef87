package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SubmissionCreateInput holds the columns written for a new CV upload. ID is
// assigned by the caller so references to the upload can be built before the
// row exists.
type SubmissionCreateInput struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	JobID     *uuid.UUID
	FileName  string
	FileURL   string
	MimeType  string
	SizeBytes int64
}

// CreateSubmission records an uploaded CV.
func (db *DB) CreateSubmission(ctx context.Context, in *SubmissionCreateInput) (*Submission, error) {
	var s Submission
	err := db.q.QueryRow(ctx,
		`INSERT INTO cv_links (id, user_id, job_id, file_name, file_url, mime_type, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, user_id, job_id, file_name, file_url, mime_type, size_bytes, status, created_at`,
		in.ID, in.UserID, in.JobID, in.FileName, in.FileURL, in.MimeType, in.SizeBytes,
	).Scan(&s.ID, &s.UserID, &s.JobID, &s.FileName, &s.FileURL, &s.MimeType, &s.SizeBytes, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, persistErr("create submission", err)
	}
	return &s, nil
}

// GetSubmission retrieves a CV upload by ID. Returns nil if not found.
func (db *DB) GetSubmission(ctx context.Context, userID, submissionID uuid.UUID) (*Submission, error) {
	var s Submission
	err := db.q.QueryRow(ctx,
		`SELECT id, user_id, job_id, file_name, file_url, mime_type, size_bytes, status, created_at
		 FROM cv_links WHERE id = $1 AND user_id = $2`,
		submissionID, userID,
	).Scan(&s.ID, &s.UserID, &s.JobID, &s.FileName, &s.FileURL, &s.MimeType, &s.SizeBytes, &s.Status, &s.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

// JobApplicationCreateInput holds the columns written for a new application.
type JobApplicationCreateInput struct {
	UserID       uuid.UUID
	JobID        *uuid.UUID
	SubmissionID *uuid.UUID
	JobName      *string
}

// CreateJobApplication records an application against a job.
func (db *DB) CreateJobApplication(ctx context.Context, in *JobApplicationCreateInput) (*JobApplication, error) {
	var a JobApplication
	err := db.q.QueryRow(ctx,
		`INSERT INTO job_applications (user_id, job_id, cv_link_id, job_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, job_id, cv_link_id, job_name, created_at`,
		in.UserID, in.JobID, in.SubmissionID, in.JobName,
	).Scan(&a.ID, &a.UserID, &a.JobID, &a.SubmissionID, &a.JobName, &a.CreatedAt)
	if err != nil {
		return nil, persistErr("create job application", err)
	}
	return &a, nil
}

// GetJobApplicationBySubmission retrieves the most recent application that
// references a CV upload. Returns nil if not found.
func (db *DB) GetJobApplicationBySubmission(ctx context.Context, userID, submissionID uuid.UUID) (*JobApplication, error) {
	var a JobApplication
	err := db.q.QueryRow(ctx,
		`SELECT id, user_id, job_id, cv_link_id, job_name, created_at
		 FROM job_applications
		 WHERE cv_link_id = $1 AND user_id = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		submissionID, userID,
	).Scan(&a.ID, &a.UserID, &a.JobID, &a.SubmissionID, &a.JobName, &a.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job application: %w", err)
	}
	return &a, nil
}
