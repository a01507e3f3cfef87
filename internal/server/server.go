package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/candidates"
	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/jonathan/recruit-engine/internal/content"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/intake"
	"github.com/jonathan/recruit-engine/internal/integration"
	"github.com/jonathan/recruit-engine/internal/interviews"
	"github.com/jonathan/recruit-engine/internal/logging"
	"github.com/jonathan/recruit-engine/internal/resolver"
	"github.com/jonathan/recruit-engine/internal/server/middleware"
	"github.com/jonathan/recruit-engine/internal/server/ratelimit"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// IntegrationService is the LinkedIn connection lifecycle.
type IntegrationService interface {
	ConnectionState(ctx context.Context, userID uuid.UUID) (integration.ConnectionState, error)
	BeginConnect(ctx context.Context, userID uuid.UUID) (*integration.AuthorizationRedirect, error)
	CompleteConnect(ctx context.Context, userID uuid.UUID, code string) error
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

// CandidateService is the candidate lifecycle.
type CandidateService interface {
	Get(ctx context.Context, userID, candidateID uuid.UUID) (*candidates.View, error)
	ListByJob(ctx context.Context, userID, jobID uuid.UUID) ([]candidates.View, error)
	UpdateStatus(ctx context.Context, userID, candidateID uuid.UUID, status db.CandidateStatus) error
	UpdateRating(ctx context.Context, userID, candidateID uuid.UUID, rating int) error
	Delete(ctx context.Context, userID, candidateID uuid.UUID, ownerJobID *uuid.UUID) (bool, error)
}

// IntakeService records applications.
type IntakeService interface {
	Submit(ctx context.Context, userID, jobID uuid.UUID, in *intake.Input) (*intake.Result, error)
}

// InterviewService books interviews.
type InterviewService interface {
	Schedule(ctx context.Context, userID uuid.UUID, req *interviews.Request) (*db.Interview, error)
	ListForCandidate(ctx context.Context, userID, candidateID uuid.UUID) ([]db.Interview, error)
	MarkEmailSent(ctx context.Context, userID, interviewID uuid.UUID) error
}

// ContentService drafts and publishes posts.
type ContentService interface {
	CreateTheme(ctx context.Context, userID uuid.UUID, in *content.ThemeInput) (*db.ContentTheme, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error)
	Generate(ctx context.Context, userID, themeID uuid.UUID, seed string) (*db.ContentItem, error)
	Regenerate(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error)
	MarkReviewing(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error)
	Publish(ctx context.Context, userID, id uuid.UUID, req content.PublishRequest) (*content.PublishResult, error)
}

// SubmissionReader reads uploaded CVs.
type SubmissionReader interface {
	GetSubmission(ctx context.Context, userID, submissionID uuid.UUID) (*db.Submission, error)
}

// Services are the domain components the API exposes.
type Services struct {
	Integrations IntegrationService
	Candidates   CandidateService
	Intake       IntakeService
	Interviews   InterviewService
	Content      ContentService
	Resolver     resolver.Resolver
	// Submissions backs the CV download redirect. Optional.
	Submissions SubmissionReader
	// Ping reports store health for /health. Optional.
	Ping func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         *config.ServerConfig
	svc         Services
	jwtService  *JWTService
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
	logger      *zap.Logger
}

// New creates a new server instance. limiter may be nil to disable rate limiting.
func New(cfg *config.ServerConfig, svc Services, jwtService *JWTService, limiter *ratelimit.Limiter, logger *zap.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		svc:         svc,
		jwtService:  jwtService,
		rateLimiter: limiter,
		validate:    validator.New(),
		logger:      logging.OrNop(logger).Named("http"),
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second, // generation waits on the model
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler builds the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// LinkedIn integration; the callback authenticates with the signed state cookie
	mux.Handle("GET /integrations/linkedin", protected(s.handleIntegrationStatus))
	mux.Handle("POST /integrations/linkedin/connect", protected(s.handleIntegrationConnect))
	mux.HandleFunc("GET /integrations/linkedin/callback", s.handleIntegrationCallback)
	mux.Handle("DELETE /integrations/linkedin", protected(s.handleIntegrationDisconnect))

	// Intake and candidates
	mux.Handle("POST /jobs/{id}/applications", protected(s.handleSubmitApplication))
	mux.Handle("GET /jobs/{id}/candidates", protected(s.handleListCandidates))
	mux.Handle("GET /candidates/{id}", protected(s.handleGetCandidate))
	mux.Handle("PATCH /candidates/{id}/status", protected(s.handleUpdateCandidateStatus))
	mux.Handle("PATCH /candidates/{id}/rating", protected(s.handleUpdateCandidateRating))
	mux.Handle("DELETE /candidates/{id}", protected(s.handleDeleteCandidate))
	mux.Handle("GET /submissions/resolve", protected(s.handleResolveSubmission))
	mux.Handle("GET /submissions/{id}/file", protected(s.handleSubmissionFile))

	// Interviews
	mux.Handle("POST /candidates/{id}/interviews", protected(s.handleScheduleInterview))
	mux.Handle("GET /candidates/{id}/interviews", protected(s.handleListInterviews))
	mux.Handle("POST /interviews/{id}/email-sent", protected(s.handleMarkInterviewEmailSent))

	// Content
	mux.Handle("POST /content/themes", protected(s.handleCreateTheme))
	mux.Handle("POST /content", protected(s.handleGenerateContent))
	mux.Handle("GET /content/{id}", protected(s.handleGetContent))
	mux.Handle("POST /content/{id}/regenerate", protected(s.handleRegenerateContent))
	mux.Handle("POST /content/{id}/review", protected(s.handleReviewContent))
	mux.Handle("POST /content/{id}/publish", protected(s.handlePublishContent))

	return s.withLogging(s.withRateLimit(s.withCORS(mux)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.logger.Info("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// withLogging logs one line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", clientID(r)),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("Request failed", fields...)
			return
		}
		s.logger.Info("Request completed", fields...)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ping(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, code, message string) {
	s.jsonResponse(w, status, map[string]string{"error": code, "message": message})
}

// writeError classifies err and writes it. Server-side failures are logged
// and their detail withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal server error"
	}
	s.errorResponse(w, status, ErrorCode(err), message)
}

// decode reads a JSON body into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// userID returns the authenticated user. Handlers behind the auth
// middleware always have one.
func (s *Server) userID(r *http.Request) uuid.UUID {
	id, _ := middleware.UserID(r.Context())
	return id
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: name, Message: "must be a UUID"}
	}
	return id, nil
}

// clientID identifies the caller for rate limiting: the remote IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Info("Rate limit exceeded",
		zap.String("client", clientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
