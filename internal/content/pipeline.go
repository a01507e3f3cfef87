// Package content drafts LinkedIn posts with a language model and publishes
// them once the user has connected LinkedIn.
//
// A post moves draft -> reviewing -> published. Published is terminal. A post
// may be regenerated at most max_regenerations times; the cap bounds model
// cost per post. Regenerate and publish are guarded by conditional updates,
// so a post changed underneath the caller is reported as stale rather than
// overwritten.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/integration"
	"github.com/jonathan/recruit-engine/internal/logging"
	"go.uber.org/zap"
)

// DefaultMaxRegenerations is the regeneration cap given to new posts.
const DefaultMaxRegenerations = 3

// MaxPostLength is LinkedIn's limit on post text.
const MaxPostLength = 3000

// Store persists themes and posts.
type Store interface {
	CreateContentTheme(ctx context.Context, userID uuid.UUID, name, description, tone string) (*db.ContentTheme, error)
	GetContentTheme(ctx context.Context, userID, themeID uuid.UUID) (*db.ContentTheme, error)
	CreateContentItem(ctx context.Context, userID uuid.UUID, themeID *uuid.UUID, content string, maxRegenerations int) (*db.ContentItem, error)
	GetContentItem(ctx context.Context, userID, itemID uuid.UUID) (*db.ContentItem, error)
	ReplaceRegeneratedContent(ctx context.Context, userID, itemID uuid.UUID, seenCount int, content string) (*db.ContentItem, error)
	MarkContentReviewing(ctx context.Context, userID, itemID uuid.UUID) (*db.ContentItem, error)
	ClaimContentForPublish(ctx context.Context, userID, itemID, claim uuid.UUID, content string) (*db.ContentItem, error)
	ReleaseContentClaim(ctx context.Context, userID, itemID, claim uuid.UUID) error
	MarkContentPublished(ctx context.Context, userID, itemID, claim uuid.UUID, finalContent, externalPostID string, publishedAt time.Time) (*db.ContentItem, error)
}

// Credentials yields the user's live LinkedIn credential.
type Credentials interface {
	Credential(ctx context.Context, userID uuid.UUID) (*integration.Credential, error)
}

// Publisher posts text to LinkedIn and returns the external post id.
type Publisher interface {
	PublishPost(ctx context.Context, accessToken, accountID, text string) (string, error)
}

// ThemeInput describes a new theme.
type ThemeInput struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Tone        string `json:"tone" validate:"max=100"`
}

// PublishRequest is the final text and the version of the stored post it was
// edited from. An empty BaseVersion means FinalContent is unedited and must
// equal the stored content.
type PublishRequest struct {
	FinalContent string `json:"final_content"`
	BaseVersion  string `json:"base_version"`
}

// PublishResult is the outcome of a successful publish.
type PublishResult struct {
	ExternalPostID string          `json:"external_post_id"`
	Item           *db.ContentItem `json:"item"`
}

// Pipeline implements generation, regeneration, review and publish.
type Pipeline struct {
	store            Store
	generator        Generator
	credentials      Credentials
	publisher        Publisher
	maxRegenerations int
	validate         *validator.Validate
	logger           *zap.Logger
	now              func() time.Time
}

// Options configures a Pipeline.
type Options struct {
	// Generator may be nil, which disables Generate and Regenerate.
	Generator        Generator
	Credentials      Credentials
	Publisher        Publisher
	MaxRegenerations int
	Logger           *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(store Store, opts Options) *Pipeline {
	maxRegen := opts.MaxRegenerations
	if maxRegen <= 0 {
		maxRegen = DefaultMaxRegenerations
	}
	return &Pipeline{
		store:            store,
		generator:        opts.Generator,
		credentials:      opts.Credentials,
		publisher:        opts.Publisher,
		maxRegenerations: maxRegen,
		validate:         validator.New(),
		logger:           logging.OrNop(opts.Logger).Named("content"),
		now:              time.Now,
	}
}

// CreateTheme stores a theme used as generation context.
func (p *Pipeline) CreateTheme(ctx context.Context, userID uuid.UUID, in *ThemeInput) (*db.ContentTheme, error) {
	if err := p.validate.Struct(in); err != nil {
		return nil, &ValidationError{Field: "theme", Message: err.Error()}
	}
	return p.store.CreateContentTheme(ctx, userID, strings.TrimSpace(in.Name), in.Description, in.Tone)
}

// Get returns a post.
func (p *Pipeline) Get(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error) {
	item, err := p.store.GetContentItem(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &NotFoundError{Resource: "post", ID: id}
	}
	return item, nil
}

// Generate drafts a new post for a theme. seed may be HTML or plain text.
func (p *Pipeline) Generate(ctx context.Context, userID, themeID uuid.UUID, seed string) (*db.ContentItem, error) {
	if p.generator == nil {
		return nil, ErrGenerationDisabled
	}
	if themeID == uuid.Nil {
		return nil, &ValidationError{Field: "theme_id", Message: "is required"}
	}

	theme, err := p.store.GetContentTheme(ctx, userID, themeID)
	if err != nil {
		return nil, err
	}
	if theme == nil {
		return nil, &NotFoundError{Resource: "theme", ID: themeID}
	}

	text, err := p.generate(ctx, GenerateRequest{Theme: theme, Seed: PlainText(seed)})
	if err != nil {
		return nil, err
	}

	item, err := p.store.CreateContentItem(ctx, userID, &theme.ID, text, p.maxRegenerations)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Post drafted", zap.String("post_id", item.ID.String()), zap.String("theme_id", themeID.String()))
	return item, nil
}

// Regenerate replaces a post's content with a fresh draft and counts the
// attempt. A post at its cap fails with *RegenerationLimitError without
// calling the generator.
func (p *Pipeline) Regenerate(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error) {
	item, err := p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status == db.ContentPublished {
		return nil, ErrAlreadyPublished
	}
	if item.RegenerationCount >= item.MaxRegenerations {
		return nil, &RegenerationLimitError{ID: id, Count: item.RegenerationCount, Max: item.MaxRegenerations}
	}
	if p.generator == nil {
		return nil, ErrGenerationDisabled
	}

	var theme *db.ContentTheme
	if item.ThemeID != nil {
		// a deleted theme only loses context, it does not block regeneration
		theme, err = p.store.GetContentTheme(ctx, userID, *item.ThemeID)
		if err != nil {
			return nil, err
		}
	}

	text, err := p.generate(ctx, GenerateRequest{Theme: theme, Previous: item.Content})
	if err != nil {
		return nil, err
	}

	updated, err := p.store.ReplaceRegeneratedContent(ctx, userID, id, item.RegenerationCount, text)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrStaleContent
	}

	p.logger.Info("Post regenerated",
		zap.String("post_id", id.String()),
		zap.Int("regeneration_count", updated.RegenerationCount),
		zap.Int("max_regenerations", updated.MaxRegenerations))
	return updated, nil
}

func (p *Pipeline) generate(ctx context.Context, req GenerateRequest) (string, error) {
	text, err := p.generator.Generate(ctx, req)
	if err != nil {
		return "", &GenerationError{Cause: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &GenerationError{Cause: errors.New("generator returned no text")}
	}
	return text, nil
}

// MarkReviewing moves a draft to reviewing. A post already in review is
// returned unchanged.
func (p *Pipeline) MarkReviewing(ctx context.Context, userID, id uuid.UUID) (*db.ContentItem, error) {
	item, err := p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	switch item.Status {
	case db.ContentPublished:
		return nil, ErrAlreadyPublished
	case db.ContentReviewing:
		return item, nil
	}

	updated, err := p.store.MarkContentReviewing(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		return updated, nil
	}

	// lost a race; report whatever state won
	item, err = p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status == db.ContentPublished {
		return nil, ErrAlreadyPublished
	}
	return item, nil
}

// Publish posts FinalContent to LinkedIn and marks the post published.
//
// Nothing is sent to LinkedIn unless the user is connected and the caller
// edited the current version of the post. The post is claimed before the
// LinkedIn call, so of several concurrent publishes only one reaches
// LinkedIn. A LinkedIn failure releases the claim, leaves the post as it was
// and is not retried.
func (p *Pipeline) Publish(ctx context.Context, userID, id uuid.UUID, req PublishRequest) (*PublishResult, error) {
	final := strings.TrimSpace(req.FinalContent)
	if final == "" {
		return nil, &ValidationError{Field: "final_content", Message: "is required"}
	}
	if len([]rune(final)) > MaxPostLength {
		return nil, &ValidationError{Field: "final_content", Message: fmt.Sprintf("must be at most %d characters", MaxPostLength)}
	}

	item, err := p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status == db.ContentPublished {
		return nil, ErrAlreadyPublished
	}

	if p.credentials == nil {
		return nil, ErrNotConnected
	}
	cred, err := p.credentials.Credential(ctx, userID)
	if err != nil {
		return nil, err
	}

	base := req.BaseVersion
	if base == "" {
		base = Version(final)
	}
	if base != Version(item.Content) {
		return nil, ErrStaleContent
	}

	claim := uuid.New()
	claimed, err := p.store.ClaimContentForPublish(ctx, userID, id, claim, item.Content)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, p.claimLost(ctx, userID, id, item.Content)
	}

	postID, err := p.publisher.PublishPost(ctx, cred.AccessToken, cred.AccountID, final)
	if err != nil {
		p.logger.Warn("LinkedIn publish failed", zap.String("post_id", id.String()), zap.Error(err))
		if relErr := p.store.ReleaseContentClaim(context.WithoutCancel(ctx), userID, id, claim); relErr != nil {
			p.logger.Error("Publish claim could not be released",
				zap.String("post_id", id.String()),
				zap.Error(relErr))
		}
		return nil, &PublishFailedError{ID: id, Cause: err}
	}

	updated, err := p.store.MarkContentPublished(context.WithoutCancel(ctx), userID, id, claim, final, postID, p.now().UTC())
	if err != nil {
		// The post is live on LinkedIn; only our record is missing.
		p.logger.Error("Published post could not be recorded",
			zap.String("post_id", id.String()),
			zap.String("external_post_id", postID),
			zap.Error(err))
		return nil, err
	}
	if updated == nil {
		p.logger.Warn("Post was published concurrently",
			zap.String("post_id", id.String()),
			zap.String("external_post_id", postID))
		return nil, ErrAlreadyPublished
	}

	p.logger.Info("Post published", zap.String("post_id", id.String()), zap.String("external_post_id", postID))
	return &PublishResult{ExternalPostID: postID, Item: updated}, nil
}

// claimLost explains why a publish claim was refused.
func (p *Pipeline) claimLost(ctx context.Context, userID, id uuid.UUID, seenContent string) error {
	item, err := p.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	switch {
	case item.Status == db.ContentPublished:
		return ErrAlreadyPublished
	case item.Content != seenContent:
		return ErrStaleContent
	default:
		return ErrPublishInProgress
	}
}
