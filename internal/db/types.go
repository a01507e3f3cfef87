package db

import (
	"time"

	"github.com/google/uuid"
)

// JobStatusActive is the status of a job that accepts applications.
const JobStatusActive = "Active"

// Job is a job posting owned by a recruiter.
type Job struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Applicants int       `json:"applicants"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CandidateStatus is a stage in the candidate lifecycle.
type CandidateStatus string

// Candidate statuses. Transitions between them are unrestricted.
const (
	StatusNew        CandidateStatus = "New"
	StatusScreening  CandidateStatus = "Screening"
	StatusInterview  CandidateStatus = "Interview"
	StatusAssessment CandidateStatus = "Assessment"
	StatusOffer      CandidateStatus = "Offer"
	StatusHired      CandidateStatus = "Hired"
	StatusRejected   CandidateStatus = "Rejected"
)

// CandidateStatuses lists every valid status in pipeline order.
var CandidateStatuses = []CandidateStatus{
	StatusNew, StatusScreening, StatusInterview, StatusAssessment,
	StatusOffer, StatusHired, StatusRejected,
}

// Valid reports whether s is a known status.
func (s CandidateStatus) Valid() bool {
	for _, known := range CandidateStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Candidate is a person who applied to a job.
type Candidate struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	JobID     *uuid.UUID      `json:"job_id,omitempty"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone,omitempty"`
	Status    CandidateStatus `json:"status"`
	Rating    int             `json:"rating"`
	ResumeURL *string         `json:"resume_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Submission is an uploaded CV (the cv_links table).
type Submission struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	JobID     *uuid.UUID `json:"job_id,omitempty"`
	FileName  string     `json:"file_name"`
	FileURL   string     `json:"file_url"`
	MimeType  string     `json:"mime_type,omitempty"`
	SizeBytes int64      `json:"size_bytes"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// JobApplication links a submission (or a standalone intake) to a job.
type JobApplication struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	SubmissionID *uuid.UUID `json:"cv_link_id,omitempty"`
	JobName      *string    `json:"job_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Interview is a scheduled meeting with a candidate.
type Interview struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	CandidateID    uuid.UUID `json:"candidate_id"`
	CandidateName  string    `json:"candidate_name"`
	CandidateEmail string    `json:"candidate_email"`
	JobName        string    `json:"job_name"`
	Date           time.Time `json:"date"`
	Time           string    `json:"time"`
	Notes          string    `json:"notes,omitempty"`
	EmailSent      bool      `json:"email_sent"`
	CreatedAt      time.Time `json:"created_at"`
}

// IntegrationToken is a stored LinkedIn credential. One row per user.
type IntegrationToken struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	AccountID   string    `json:"linkedin_id"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContentTheme is the topic context used to draft posts.
type ContentTheme struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tone        string    `json:"tone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContentStatus is the publishing state of a ContentItem.
type ContentStatus string

// Content statuses. Published is terminal.
const (
	ContentDraft     ContentStatus = "draft"
	ContentReviewing ContentStatus = "reviewing"
	ContentPublished ContentStatus = "published"
)

// ContentItem is an AI-drafted LinkedIn post.
type ContentItem struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	ThemeID           *uuid.UUID    `json:"theme_id,omitempty"`
	Content           string        `json:"content"`
	Status            ContentStatus `json:"status"`
	RegenerationCount int           `json:"regeneration_count"`
	MaxRegenerations  int           `json:"max_regenerations"`
	ExternalPostID    *string       `json:"external_post_id,omitempty"`
	PublishedAt       *time.Time    `json:"published_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
