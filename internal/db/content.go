package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateContentTheme inserts a theme used as generation context.
func (db *DB) CreateContentTheme(ctx context.Context, userID uuid.UUID, name, description, tone string) (*ContentTheme, error) {
	var t ContentTheme
	err := db.q.QueryRow(ctx,
		`INSERT INTO content_themes (user_id, name, description, tone)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, name, description, tone, created_at`,
		userID, name, description, tone,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Tone, &t.CreatedAt)
	if err != nil {
		return nil, persistErr("create content theme", err)
	}
	return &t, nil
}

// GetContentTheme retrieves a theme. Returns nil if not found.
func (db *DB) GetContentTheme(ctx context.Context, userID, themeID uuid.UUID) (*ContentTheme, error) {
	var t ContentTheme
	err := db.q.QueryRow(ctx,
		`SELECT id, user_id, name, description, tone, created_at
		 FROM content_themes WHERE id = $1 AND user_id = $2`,
		themeID, userID,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Tone, &t.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get content theme: %w", err)
	}
	return &t, nil
}

// PublishClaimTTL is how long a publish claim blocks other publishers and
// regeneration. A claim older than this is treated as abandoned.
const PublishClaimTTL = 2 * time.Minute

const contentColumns = `id, user_id, theme_id, content, status, regeneration_count, max_regenerations,
	external_post_id, published_at, created_at, updated_at`

func scanContentItem(row interface{ Scan(...any) error }) (*ContentItem, error) {
	var c ContentItem
	err := row.Scan(&c.ID, &c.UserID, &c.ThemeID, &c.Content, &c.Status, &c.RegenerationCount,
		&c.MaxRegenerations, &c.ExternalPostID, &c.PublishedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateContentItem inserts a draft with a zero regeneration count.
func (db *DB) CreateContentItem(ctx context.Context, userID uuid.UUID, themeID *uuid.UUID, content string, maxRegenerations int) (*ContentItem, error) {
	item, err := scanContentItem(db.q.QueryRow(ctx,
		`INSERT INTO automated_posts (user_id, theme_id, content, status, regeneration_count, max_regenerations)
		 VALUES ($1, $2, $3, 'draft', 0, $4)
		 RETURNING `+contentColumns,
		userID, themeID, content, maxRegenerations,
	))
	if err != nil {
		return nil, persistErr("create content item", err)
	}
	return item, nil
}

// GetContentItem retrieves a post. Returns nil if not found.
func (db *DB) GetContentItem(ctx context.Context, userID, itemID uuid.UUID) (*ContentItem, error) {
	item, err := scanContentItem(db.q.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM automated_posts WHERE id = $1 AND user_id = $2`,
		itemID, userID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// ReplaceRegeneratedContent swaps in new content and bumps the regeneration
// counter, but only if the counter still equals seenCount, the cap has not
// been reached, the post is unpublished and no publish is in flight. Returns
// nil if the guard failed.
func (db *DB) ReplaceRegeneratedContent(ctx context.Context, userID, itemID uuid.UUID, seenCount int, content string) (*ContentItem, error) {
	item, err := scanContentItem(db.q.QueryRow(ctx,
		`UPDATE automated_posts
		 SET content = $4, regeneration_count = regeneration_count + 1, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		   AND regeneration_count = $3
		   AND regeneration_count < max_regenerations
		   AND status <> 'published'
		   AND (publish_claim IS NULL OR publish_claimed_at < NOW() - make_interval(secs => $5))
		 RETURNING `+contentColumns,
		itemID, userID, seenCount, content, PublishClaimTTL.Seconds(),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, persistErr("replace regenerated content", err)
	}
	return item, nil
}

// MarkContentReviewing moves a draft to reviewing. Returns nil if the post is
// missing or not a draft.
func (db *DB) MarkContentReviewing(ctx context.Context, userID, itemID uuid.UUID) (*ContentItem, error) {
	item, err := scanContentItem(db.q.QueryRow(ctx,
		`UPDATE automated_posts SET status = 'reviewing', updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND status = 'draft'
		 RETURNING `+contentColumns,
		itemID, userID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, persistErr("mark content reviewing", err)
	}
	return item, nil
}

// ClaimContentForPublish marks an unpublished post as being published under
// claim, provided its content still equals content and no live claim is held.
// Returns nil if the guard failed.
func (db *DB) ClaimContentForPublish(ctx context.Context, userID, itemID, claim uuid.UUID, content string) (*ContentItem, error) {
	item, err := scanContentItem(db.q.QueryRow(ctx,
		`UPDATE automated_posts
		 SET publish_claim = $3, publish_claimed_at = NOW()
		 WHERE id = $1 AND user_id = $2
		   AND status <> 'published'
		   AND content = $4
		   AND (publish_claim IS NULL OR publish_claimed_at < NOW() - make_interval(secs => $5))
		 RETURNING `+contentColumns,
		itemID, userID, claim, content, PublishClaimTTL.Seconds(),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, persistErr("claim content for publish", err)
	}
	return item, nil
}

// ReleaseContentClaim drops claim if it is still held. The post is otherwise
// unchanged.
func (db *DB) ReleaseContentClaim(ctx context.Context, userID, itemID, claim uuid.UUID) error {
	_, err := db.q.Exec(ctx,
		`UPDATE automated_posts SET publish_claim = NULL, publish_claimed_at = NULL
		 WHERE id = $1 AND user_id = $2 AND publish_claim = $3`,
		itemID, userID, claim,
	)
	if err != nil {
		return persistErr("release content claim", err)
	}
	return nil
}

// MarkContentPublished records a successful external publish made under
// claim and releases the claim. Returns nil if the post was already published
// or the claim is no longer held.
func (db *DB) MarkContentPublished(ctx context.Context, userID, itemID, claim uuid.UUID, finalContent, externalPostID string, publishedAt time.Time) (*ContentItem, error) {
	item, err := scanContentItem(db.q.QueryRow(ctx,
		`UPDATE automated_posts
		 SET status = 'published', content = $4, external_post_id = $5, published_at = $6,
		     publish_claim = NULL, publish_claimed_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND publish_claim = $3 AND status <> 'published'
		 RETURNING `+contentColumns,
		itemID, userID, claim, finalContent, externalPostID, publishedAt,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, persistErr("mark content published", err)
	}
	return item, nil
}
