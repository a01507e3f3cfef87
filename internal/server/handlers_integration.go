package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jonathan/recruit-engine/internal/integration"
	"go.uber.org/zap"
)

const (
	stateCookieName = "linkedin_oauth_state"
	stateCookiePath = "/integrations/linkedin/callback"
)

// ConnectResponse tells the client where to send the browser.
type ConnectResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Integrations.ConnectionState(r.Context(), s.userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

// handleIntegrationConnect starts the OAuth flow. The state travels to the
// callback in an HttpOnly cookie signed together with the user ID, so the
// callback needs no bearer token.
func (s *Server) handleIntegrationConnect(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	redirect, err := s.svc.Integrations.BeginConnect(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.jwtService.GenerateStateToken(userID, redirect.State, redirect.ExpiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    token,
		Path:     stateCookiePath,
		Expires:  redirect.ExpiresAt,
		MaxAge:   int(time.Until(redirect.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	s.jsonResponse(w, http.StatusOK, ConnectResponse{URL: redirect.URL, ExpiresAt: redirect.ExpiresAt})
}

func (s *Server) handleIntegrationCallback(w http.ResponseWriter, r *http.Request) {
	// The state is single use whatever the outcome.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	q := r.URL.Query()
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid_state", "OAuth state cookie is missing or expired")
		return
	}
	userID, err := s.jwtService.ValidateStateToken(cookie.Value, q.Get("state"))
	if err != nil {
		s.logger.Info("Rejected LinkedIn callback", zap.Error(err))
		s.errorResponse(w, http.StatusBadRequest, "invalid_state", "OAuth state does not match")
		return
	}

	if denied := q.Get("error"); denied != "" {
		s.writeError(w, r, &integration.ValidationError{
			Field:   "code",
			Message: "authorization was not granted: " + denied + " " + q.Get("error_description"),
		})
		return
	}

	if err := s.svc.Integrations.CompleteConnect(r.Context(), userID, q.Get("code")); err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.cfg.ConnectedRedirectURL != "" {
		target, err := url.Parse(s.cfg.ConnectedRedirectURL)
		if err == nil {
			values := target.Query()
			values.Set("linkedin", "connected")
			target.RawQuery = values.Encode()
			http.Redirect(w, r, target.String(), http.StatusSeeOther)
			return
		}
	}

	state, err := s.svc.Integrations.ConnectionState(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleIntegrationDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Integrations.Disconnect(r.Context(), s.userID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
