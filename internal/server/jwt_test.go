package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T) *JWTService {
	return NewJWTService(&config.JWTConfig{
		Secret:          testSecret,
		ExpirationHours: 24,
		Issuer:          "recruit-engine",
		StateTTL:        10 * time.Minute,
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := setupTestJWTService(t)
	userID := uuid.New()

	token, err := service.GenerateToken(userID)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "recruit-engine", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTService_ValidateToken_Rejects(t *testing.T) {
	service := setupTestJWTService(t)
	userID := uuid.New()

	expired := setupTestJWTService(t)
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expiredToken, err := expired.GenerateToken(userID)
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: "another-secret-that-is-long-enough", ExpirationHours: 1, Issuer: "recruit-engine"})
	forged, err := other.GenerateToken(userID)
	require.NoError(t, err)

	foreignIssuer := NewJWTService(&config.JWTConfig{Secret: testSecret, ExpirationHours: 1, Issuer: "someone-else"})
	foreignToken, err := foreignIssuer.GenerateToken(userID)
	require.NoError(t, err)

	stateToken, err := service.GenerateStateToken(userID, "abc", time.Now().Add(time.Minute))
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: userID})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{name: "empty", token: "", wantMsg: "empty"},
		{name: "garbage", token: "not.a.jwt", wantMsg: "malformed"},
		{name: "expired", token: expiredToken, wantMsg: "expired"},
		{name: "wrong secret", token: forged, wantMsg: "signature"},
		{name: "wrong issuer", token: foreignToken},
		{name: "state token as bearer", token: stateToken},
		{name: "alg none", token: noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestJWTService_StateToken(t *testing.T) {
	service := setupTestJWTService(t)
	userID := uuid.New()

	token, err := service.GenerateStateToken(userID, "state-123", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	got, err := service.ValidateStateToken(token, "state-123")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = service.ValidateStateToken(token, "state-124")
	assert.ErrorContains(t, err, "mismatch")

	_, err = service.ValidateStateToken(token, "")
	assert.Error(t, err)

	bearer, err := service.GenerateToken(userID)
	require.NoError(t, err)
	_, err = service.ValidateStateToken(bearer, "state-123")
	assert.Error(t, err, "bearer tokens are not state tokens")
}

func TestJWTService_StateTokenExpires(t *testing.T) {
	service := setupTestJWTService(t)
	token, err := service.GenerateStateToken(uuid.New(), "s", time.Now().Add(time.Minute))
	require.NoError(t, err)

	service.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = service.ValidateStateToken(token, "s")
	assert.ErrorContains(t, err, "expired")
}
