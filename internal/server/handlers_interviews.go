package server

import (
	"net/http"

	"github.com/jonathan/recruit-engine/internal/candidates"
	"github.com/jonathan/recruit-engine/internal/interviews"
)

// handleScheduleInterview books an interview for the candidate in the path.
// Missing name, email or job name are snapshotted from the candidate record.
func (s *Server) handleScheduleInterview(w http.ResponseWriter, r *http.Request) {
	candidateID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req interviews.Request
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.CandidateID = candidateID

	userID := s.userID(r)
	if req.CandidateName == "" || req.CandidateEmail == "" || req.JobName == "" {
		view, err := s.svc.Candidates.Get(r.Context(), userID, candidateID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if view == nil {
			s.writeError(w, r, &candidates.NotFoundError{ID: candidateID})
			return
		}
		if req.CandidateName == "" {
			req.CandidateName = view.Name
		}
		if req.CandidateEmail == "" {
			req.CandidateEmail = view.Email
		}
		if req.JobName == "" {
			req.JobName = view.Application.JobTitle
		}
	}

	iv, err := s.svc.Interviews.Schedule(r.Context(), userID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, iv)
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	candidateID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	list, err := s.svc.Interviews.ListForCandidate(r.Context(), s.userID(r), candidateID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"interviews": list})
}

func (s *Server) handleMarkInterviewEmailSent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Interviews.MarkEmailSent(r.Context(), s.userID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
