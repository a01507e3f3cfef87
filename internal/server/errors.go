// Package server provides the HTTP REST API for the recruiting engine.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/recruit-engine/internal/candidates"
	"github.com/jonathan/recruit-engine/internal/content"
	"github.com/jonathan/recruit-engine/internal/intake"
	"github.com/jonathan/recruit-engine/internal/integration"
	"github.com/jonathan/recruit-engine/internal/interviews"
)

// ErrValidation indicates request validation failure at the HTTP edge.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return "validation error: " + e.Field + " - " + e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		candidateNotFound *candidates.NotFoundError
		contentNotFound   *content.NotFoundError
		intakeNotFound    *intake.NotFoundError
		interviewNotFound *interviews.NotFoundError
		configErr         *integration.ConfigurationError
		exchangeErr       *integration.ExchangeFailedError
		limitErr          *content.RegenerationLimitError
		publishErr        *content.PublishFailedError
		generationErr     *content.GenerationError
	)

	switch {
	case errors.As(err, &candidateNotFound), errors.As(err, &contentNotFound),
		errors.As(err, &intakeNotFound), errors.As(err, &interviewNotFound):
		return http.StatusNotFound
	case isValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &configErr), errors.Is(err, content.ErrGenerationDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &exchangeErr), errors.As(err, &publishErr), errors.As(err, &generationErr):
		return http.StatusBadGateway
	case errors.Is(err, integration.ErrNotConnected):
		return http.StatusPreconditionFailed
	case errors.As(err, &limitErr), errors.Is(err, content.ErrStaleContent), errors.Is(err, content.ErrAlreadyPublished),
		errors.Is(err, content.ErrPublishInProgress):
		return http.StatusConflict
	default:
		// *interviews.SchedulingFailedError, *db.PersistenceError and anything unclassified
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a stable machine-readable code for an error.
func ErrorCode(err error) string {
	var (
		limitErr      *content.RegenerationLimitError
		configErr     *integration.ConfigurationError
		exchangeErr   *integration.ExchangeFailedError
		publishErr    *content.PublishFailedError
		generationErr *content.GenerationError
	)

	switch {
	case errors.As(err, &limitErr):
		return "regeneration_limit_exceeded"
	case errors.Is(err, integration.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, content.ErrStaleContent):
		return "stale_content"
	case errors.Is(err, content.ErrAlreadyPublished):
		return "already_published"
	case errors.Is(err, content.ErrPublishInProgress):
		return "publish_in_progress"
	case errors.As(err, &configErr), errors.Is(err, content.ErrGenerationDisabled):
		return "not_configured"
	case errors.As(err, &exchangeErr):
		return "integration_exchange_failed"
	case errors.As(err, &publishErr):
		return "publish_failed"
	case errors.As(err, &generationErr):
		return "generation_failed"
	}

	switch HTTPStatus(err) {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "validation_error"
	default:
		return "internal_error"
	}
}

func isValidation(err error) bool {
	var (
		edge      *ErrValidation
		cand      *candidates.ValidationError
		cont      *content.ValidationError
		in        *intake.ValidationError
		integ     *integration.ValidationError
		interview *interviews.ValidationError
	)
	return errors.As(err, &edge) || errors.As(err, &cand) || errors.As(err, &cont) ||
		errors.As(err, &in) || errors.As(err, &integ) || errors.As(err, &interview)
}
