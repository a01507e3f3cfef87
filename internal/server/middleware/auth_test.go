package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTokenValidator struct {
	validTokens map[string]uuid.UUID
}

func (v *testTokenValidator) ValidateToken(tokenString string) (UserIDGetter, error) {
	userID, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return testClaims(userID), nil
}

type testClaims uuid.UUID

func (c testClaims) GetUserID() uuid.UUID { return uuid.UUID(c) }

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	validator := &testTokenValidator{validTokens: map[string]uuid.UUID{
		"good":     userID,
		"nil-user": uuid.Nil,
	}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK},
		{name: "extra whitespace", header: "Bearer    good ", wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "too many parts", header: "Bearer good extra", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer forged", wantStatus: http.StatusUnauthorized},
		{name: "token without user", header: "Bearer nil-user", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := UserID(r.Context())
				require.True(t, ok)
				got = id
			})

			req := httptest.NewRequest(http.MethodGet, "/candidates/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(validator)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, userID, got)
				return
			}
			assert.False(t, called)
			assert.JSONEq(t, `{"error":"unauthorized","message":"missing or invalid bearer token"}`, rec.Body.String())
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestUserID(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	_, ok = UserID(WithUserID(context.Background(), uuid.Nil))
	assert.False(t, ok)

	id := uuid.New()
	got, ok := UserID(WithUserID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
