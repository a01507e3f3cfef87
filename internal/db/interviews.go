package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const interviewColumns = `id, user_id, candidate_id, candidate_name, candidate_email, job_name,
	interview_date, interview_time, notes, email_sent, created_at`

func scanInterview(row interface{ Scan(...any) error }) (*Interview, error) {
	var iv Interview
	err := row.Scan(&iv.ID, &iv.UserID, &iv.CandidateID, &iv.CandidateName, &iv.CandidateEmail,
		&iv.JobName, &iv.Date, &iv.Time, &iv.Notes, &iv.EmailSent, &iv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

// InterviewCreateInput holds the columns written when an interview is booked.
type InterviewCreateInput struct {
	UserID         uuid.UUID
	CandidateID    uuid.UUID
	CandidateName  string
	CandidateEmail string
	JobName        string
	Date           time.Time
	Time           string
	Notes          string
}

// CreateInterview inserts an interview with email_sent = false.
func (db *DB) CreateInterview(ctx context.Context, in *InterviewCreateInput) (*Interview, error) {
	iv, err := scanInterview(db.q.QueryRow(ctx,
		`INSERT INTO interviews (user_id, candidate_id, candidate_name, candidate_email, job_name,
		                         interview_date, interview_time, notes, email_sent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		 RETURNING `+interviewColumns,
		in.UserID, in.CandidateID, in.CandidateName, in.CandidateEmail, in.JobName,
		in.Date, in.Time, in.Notes,
	))
	if err != nil {
		return nil, persistErr("create interview", err)
	}
	return iv, nil
}

// ListInterviewsByCandidate retrieves a candidate's interviews, soonest first.
func (db *DB) ListInterviewsByCandidate(ctx context.Context, userID, candidateID uuid.UUID) ([]Interview, error) {
	rows, err := db.q.Query(ctx,
		`SELECT `+interviewColumns+` FROM interviews
		 WHERE user_id = $1 AND candidate_id = $2
		 ORDER BY interview_date ASC, interview_time ASC`,
		userID, candidateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	defer rows.Close()

	var interviews []Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interview: %w", err)
		}
		interviews = append(interviews, *iv)
	}
	return interviews, rows.Err()
}

// MarkInterviewEmailSent flips email_sent. Returns false if no row matched.
func (db *DB) MarkInterviewEmailSent(ctx context.Context, userID, interviewID uuid.UUID) (bool, error) {
	tag, err := db.q.Exec(ctx,
		`UPDATE interviews SET email_sent = TRUE WHERE id = $1 AND user_id = $2`,
		interviewID, userID,
	)
	if err != nil {
		return false, persistErr("mark interview email sent", err)
	}
	return tag.RowsAffected() > 0, nil
}
