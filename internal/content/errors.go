package content

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/integration"
)

var (
	// ErrNotConnected means the user has no live LinkedIn token.
	ErrNotConnected = integration.ErrNotConnected

	// ErrAlreadyPublished means the post is in its terminal state.
	ErrAlreadyPublished = errors.New("post is already published")

	// ErrStaleContent means the post changed since the caller last read it.
	ErrStaleContent = errors.New("post changed since it was last read")

	// ErrPublishInProgress means another publish of the post is in flight.
	ErrPublishInProgress = errors.New("post is being published")

	// ErrGenerationDisabled means no generator is configured.
	ErrGenerationDisabled = errors.New("content generation is not configured")
)

// NotFoundError indicates a missing post or theme.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError indicates a rejected input value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// RegenerationLimitError means the post has used all of its regenerations.
type RegenerationLimitError struct {
	ID    uuid.UUID
	Count int
	Max   int
}

func (e *RegenerationLimitError) Error() string {
	return fmt.Sprintf("post %s has been regenerated %d of %d times", e.ID, e.Count, e.Max)
}

// GenerationError reports a failed call to the generator.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate post: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// PublishFailedError reports a failed external publish. The post is left
// unchanged and the call is not retried, since a publish that succeeded
// upstream but failed to answer would otherwise be posted twice.
type PublishFailedError struct {
	ID    uuid.UUID
	Cause error
}

func (e *PublishFailedError) Error() string {
	return fmt.Sprintf("failed to publish post %s: %v", e.ID, e.Cause)
}

func (e *PublishFailedError) Unwrap() error {
	return e.Cause
}
