// Package integration owns the lifecycle of a user's LinkedIn connection:
// starting the OAuth flow, completing it, reporting whether the stored token
// is still live, and disconnecting.
//
// Expired tokens are never purged. Every read compares expires_at with the
// current time, so a token past its expiry is indistinguishable from no token.
package integration

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// stateBytes is the entropy of the anti-forgery state value.
const stateBytes = 32

// Store persists integration tokens.
type Store interface {
	GetIntegrationToken(ctx context.Context, userID uuid.UUID) (*db.IntegrationToken, error)
	UpsertIntegrationToken(ctx context.Context, userID uuid.UUID, accountID, accessToken string, expiresAt time.Time) (*db.IntegrationToken, error)
	DeleteIntegrationToken(ctx context.Context, userID uuid.UUID) error
}

// Provider is the OAuth provider. Implementations must bound every network call.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchAccountID(ctx context.Context, accessToken string) (string, error)
}

// ConnectionState is the derived connection status of a user.
type ConnectionState struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// AuthorizationRedirect describes where to send the user to grant access.
// State must be kept by the client for the lifetime of the flow and compared
// on return.
type AuthorizationRedirect struct {
	URL       string    `json:"url"`
	State     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Credential is a live bearer token for calling LinkedIn on the user's behalf.
type Credential struct {
	AccessToken string
	AccountID   string
	ExpiresAt   time.Time
}

// Manager implements the connect/verify/expire/disconnect lifecycle.
type Manager struct {
	store    Store
	provider Provider
	cfg      *config.LinkedInConfig
	stateTTL time.Duration
	cipher   *TokenCipher
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a Manager. cfg may be incomplete; operations that need
// the OAuth client then fail with *ConfigurationError.
func NewManager(store Store, provider Provider, cfg *config.LinkedInConfig, stateTTL time.Duration, logger *zap.Logger) *Manager {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &Manager{
		store:    store,
		provider: provider,
		cfg:      cfg,
		stateTTL: stateTTL,
		logger:   logging.OrNop(logger).Named("integration"),
		now:      time.Now,
	}
}

// WithCipher stores access tokens encrypted with c. Tokens written without a
// cipher remain readable.
func (m *Manager) WithCipher(c *TokenCipher) *Manager {
	m.cipher = c
	return m
}

// ConnectionState reports whether the user holds a token that expires strictly
// after now and can be used. A user without a token row is simply
// disconnected, and so is one whose token no longer decrypts.
func (m *Manager) ConnectionState(ctx context.Context, userID uuid.UUID) (ConnectionState, error) {
	tok, err := m.store.GetIntegrationToken(ctx, userID)
	if err != nil {
		return ConnectionState{}, fmt.Errorf("failed to read integration token: %w", err)
	}
	if tok == nil {
		return ConnectionState{}, nil
	}
	expiresAt := tok.ExpiresAt
	_, openErr := m.openToken(userID, tok.AccessToken)
	return ConnectionState{
		Connected: openErr == nil && expiresAt.After(m.now()),
		ExpiresAt: &expiresAt,
	}, nil
}

// Credential returns the user's live token, or ErrNotConnected.
func (m *Manager) Credential(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	tok, err := m.store.GetIntegrationToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read integration token: %w", err)
	}
	if tok == nil || !tok.ExpiresAt.After(m.now()) {
		return nil, ErrNotConnected
	}
	accessToken, err := m.openToken(userID, tok.AccessToken)
	if err != nil {
		return nil, ErrNotConnected
	}
	return &Credential{
		AccessToken: accessToken,
		AccountID:   tok.AccountID,
		ExpiresAt:   tok.ExpiresAt,
	}, nil
}

func (m *Manager) openToken(userID uuid.UUID, stored string) (string, error) {
	if m.cipher == nil {
		return stored, nil
	}
	token, err := m.cipher.Open(userID, stored)
	if err != nil {
		// A rotated key strands the token; the user has to reconnect.
		m.logger.Warn("Stored LinkedIn token could not be decrypted",
			zap.String("user_id", userID.String()), zap.Error(err))
		return "", err
	}
	return token, nil
}

// BeginConnect creates a fresh anti-forgery state and the provider
// authorization URL that embeds it.
func (m *Manager) BeginConnect(_ context.Context, userID uuid.UUID) (*AuthorizationRedirect, error) {
	if err := m.checkConfig(); err != nil {
		return nil, err
	}

	state, err := NewState()
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Starting LinkedIn connect", zap.String("user_id", userID.String()))
	return &AuthorizationRedirect{
		URL:       m.provider.AuthCodeURL(state),
		State:     state,
		ExpiresAt: m.now().Add(m.stateTTL),
	}, nil
}

// CompleteConnect exchanges the authorization code, looks up the LinkedIn
// member id and stores the token. The upsert is the last step, so a failure
// anywhere before it leaves no token behind.
func (m *Manager) CompleteConnect(ctx context.Context, userID uuid.UUID, code string) error {
	if err := m.checkConfig(); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return &ValidationError{Field: "code", Message: "authorization code is required"}
	}

	tok, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return exchangeFailed(StepExchange, err)
	}
	if tok.AccessToken == "" {
		return &ExchangeFailedError{Step: StepExchange, Err: errors.New("response has no access_token")}
	}
	if tok.Expiry.IsZero() {
		return &ExchangeFailedError{Step: StepExchange, Err: errors.New("response has no expires_in")}
	}

	accountID, err := m.provider.FetchAccountID(ctx, tok.AccessToken)
	if err != nil {
		return exchangeFailed(StepProfile, err)
	}

	stored := tok.AccessToken
	if m.cipher != nil {
		if stored, err = m.cipher.Seal(userID, stored); err != nil {
			return &ExchangeFailedError{Step: StepStore, Err: err}
		}
	}
	if _, err := m.store.UpsertIntegrationToken(ctx, userID, accountID, stored, tok.Expiry); err != nil {
		return &ExchangeFailedError{Step: StepStore, Err: err}
	}

	m.logger.Info("LinkedIn account connected",
		zap.String("user_id", userID.String()),
		zap.Time("expires_at", tok.Expiry))
	return nil
}

// Disconnect removes the user's token. Disconnecting twice is not an error.
func (m *Manager) Disconnect(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.DeleteIntegrationToken(ctx, userID); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	m.logger.Info("LinkedIn account disconnected", zap.String("user_id", userID.String()))
	return nil
}

func (m *Manager) checkConfig() error {
	if missing := m.cfg.Missing(); len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	if err := m.cfg.Validate(); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}
	return nil
}

// NewState returns a URL-safe random anti-forgery value.
func NewState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// upstreamError is implemented by provider errors that carry the HTTP response.
type upstreamError interface {
	UpstreamStatus() int
	UpstreamBody() string
}

func exchangeFailed(step string, err error) error {
	failed := &ExchangeFailedError{Step: step, Err: err}

	var retrieve *oauth2.RetrieveError
	var upstream upstreamError
	switch {
	case errors.As(err, &retrieve):
		if retrieve.Response != nil {
			failed.StatusCode = retrieve.Response.StatusCode
		}
		failed.Body = string(retrieve.Body)
	case errors.As(err, &upstream):
		failed.StatusCode = upstream.UpstreamStatus()
		failed.Body = upstream.UpstreamBody()
	}
	return failed
}
