package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/content"
	"github.com/jonathan/recruit-engine/internal/db"
)

// GenerateRequest is the body of POST /content.
type GenerateRequest struct {
	ThemeID uuid.UUID `json:"theme_id"`
	Seed    string    `json:"seed"`
}

// ContentResponse is a post with the version a later publish must name.
type ContentResponse struct {
	*db.ContentItem
	Version                string `json:"version"`
	RegenerationsRemaining int    `json:"regenerations_remaining"`
}

func newContentResponse(item *db.ContentItem) ContentResponse {
	remaining := item.MaxRegenerations - item.RegenerationCount
	if remaining < 0 || item.Status == db.ContentPublished {
		remaining = 0
	}
	return ContentResponse{
		ContentItem:            item,
		Version:                content.Version(item.Content),
		RegenerationsRemaining: remaining,
	}
}

func (s *Server) handleCreateTheme(w http.ResponseWriter, r *http.Request) {
	var in content.ThemeInput
	if err := s.decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	theme, err := s.svc.Content.CreateTheme(r.Context(), s.userID(r), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, theme)
}

func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.svc.Content.Generate(r.Context(), s.userID(r), req.ThemeID, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, newContentResponse(item))
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	s.contentAction(w, r, s.svc.Content.Get)
}

func (s *Server) handleRegenerateContent(w http.ResponseWriter, r *http.Request) {
	s.contentAction(w, r, s.svc.Content.Regenerate)
}

func (s *Server) handleReviewContent(w http.ResponseWriter, r *http.Request) {
	s.contentAction(w, r, s.svc.Content.MarkReviewing)
}

type contentFunc func(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error)

func (s *Server) contentAction(w http.ResponseWriter, r *http.Request, fn contentFunc) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := fn(r.Context(), s.userID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newContentResponse(item))
}

func (s *Server) handlePublishContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req content.PublishRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.svc.Content.Publish(r.Context(), s.userID(r), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"external_post_id": result.ExternalPostID,
		"item":             newContentResponse(result.Item),
	})
}
