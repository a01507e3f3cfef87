package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/candidates"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/intake"
)

// UpdateStatusRequest is the body of PATCH /candidates/{id}/status.
type UpdateStatusRequest struct {
	Status db.CandidateStatus `json:"status" validate:"required"`
}

// UpdateRatingRequest is the body of PATCH /candidates/{id}/rating.
type UpdateRatingRequest struct {
	Rating *int `json:"rating" validate:"required"`
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var in intake.Input
	if err := s.decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.svc.Intake.Submit(r.Context(), s.userID(r), jobID, &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, result)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views, err := s.svc.Candidates.ListByJob(r.Context(), s.userID(r), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []candidates.View{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"candidates": views})
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.svc.Candidates.Get(r.Context(), s.userID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if view == nil {
		s.writeError(w, r, &candidates.NotFoundError{ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleUpdateCandidateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req UpdateStatusRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "status", Message: "is required"})
		return
	}

	if err := s.svc.Candidates.UpdateStatus(r.Context(), s.userID(r), id, req.Status); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateCandidateRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req UpdateRatingRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "rating", Message: "is required"})
		return
	}

	if err := s.svc.Candidates.UpdateRating(r.Context(), s.userID(r), id, *req.Rating); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteCandidate deletes a candidate and decrements its job's
// applicant count. The optional job_id query parameter must match the
// candidate's job; it is only used when the candidate has none.
func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var owner *uuid.UUID
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		jobID, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, &ErrValidation{Field: "job_id", Message: "must be a UUID"})
			return
		}
		owner = &jobID
	}

	deleted, err := s.svc.Candidates.Delete(r.Context(), s.userID(r), id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !deleted {
		s.writeError(w, r, &candidates.NotFoundError{ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResolveSubmission always answers 200; an unknown reference resolves
// to kind "unresolved".
func (s *Server) handleResolveSubmission(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		s.writeError(w, r, &ErrValidation{Field: "ref", Message: "is required"})
		return
	}
	s.jsonResponse(w, http.StatusOK, s.svc.Resolver.Resolve(r.Context(), s.userID(r), ref))
}

// handleSubmissionFile redirects a candidate's resume_url to the uploaded file.
func (s *Server) handleSubmissionFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	notFound := &intake.NotFoundError{Resource: "submission", ID: id}
	if s.svc.Submissions == nil {
		s.writeError(w, r, notFound)
		return
	}
	sub, err := s.svc.Submissions.GetSubmission(r.Context(), s.userID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sub == nil {
		s.writeError(w, r, notFound)
		return
	}
	http.Redirect(w, r, sub.FileURL, http.StatusFound)
}
