package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetIntegrationToken retrieves the user's LinkedIn token row, expired or not.
// Returns nil if the user never connected.
func (db *DB) GetIntegrationToken(ctx context.Context, userID uuid.UUID) (*IntegrationToken, error) {
	var t IntegrationToken
	err := db.q.QueryRow(ctx,
		`SELECT id, user_id, linkedin_id, access_token, expires_at, created_at, updated_at
		 FROM linkedin_tokens WHERE user_id = $1`,
		userID,
	).Scan(&t.ID, &t.UserID, &t.AccountID, &t.AccessToken, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get integration token: %w", err)
	}
	return &t, nil
}

// UpsertIntegrationToken inserts or replaces the user's token row.
func (db *DB) UpsertIntegrationToken(ctx context.Context, userID uuid.UUID, accountID, accessToken string, expiresAt time.Time) (*IntegrationToken, error) {
	var t IntegrationToken
	err := db.q.QueryRow(ctx,
		`INSERT INTO linkedin_tokens (user_id, linkedin_id, access_token, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     linkedin_id = EXCLUDED.linkedin_id,
		     access_token = EXCLUDED.access_token,
		     expires_at = EXCLUDED.expires_at,
		     updated_at = NOW()
		 RETURNING id, user_id, linkedin_id, access_token, expires_at, created_at, updated_at`,
		userID, accountID, accessToken, expiresAt,
	).Scan(&t.ID, &t.UserID, &t.AccountID, &t.AccessToken, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, persistErr("upsert integration token", err)
	}
	return &t, nil
}

// DeleteIntegrationToken removes the user's token row. A missing row is not an error.
func (db *DB) DeleteIntegrationToken(ctx context.Context, userID uuid.UUID) error {
	if _, err := db.q.Exec(ctx, `DELETE FROM linkedin_tokens WHERE user_id = $1`, userID); err != nil {
		return persistErr("delete integration token", err)
	}
	return nil
}
