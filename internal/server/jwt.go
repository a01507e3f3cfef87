package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/jonathan/recruit-engine/internal/server/middleware"
)

// Audiences separate API bearer tokens from OAuth state tokens so one can
// never be replayed as the other.
const (
	audienceAPI   = "api"
	audienceState = "linkedin-oauth-state"
)

// Claims represents JWT claims with user ID.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// GetUserID returns the user ID from the claims.
// This implements the middleware.UserIDGetter interface.
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

// StateClaims binds an OAuth state value to the user who started the flow.
type StateClaims struct {
	UserID uuid.UUID `json:"user_id"`
	State  string    `json:"state"`
	jwt.RegisteredClaims
}

// AsTokenValidator returns a TokenValidator adapter for this JWTService.
// This allows the JWTService to be used with middleware without creating import cycles.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return &jwtServiceValidator{service: s}
}

type jwtServiceValidator struct {
	service *JWTService
}

func (v *jwtServiceValidator) ValidateToken(tokenString string) (middleware.UserIDGetter, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// JWTService provides JWT token generation and validation functionality.
type JWTService struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given configuration.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		config: cfg,
		now:    time.Now,
	}
}

// GenerateToken generates an API bearer token for the given user ID.
func (s *JWTService) GenerateToken(userID uuid.UUID) (string, error) {
	now := s.now()
	expiresAt := now.Add(time.Duration(s.config.ExpirationHours) * time.Hour)

	claims := &Claims{
		UserID:           userID,
		RegisteredClaims: s.registered(audienceAPI, now, expiresAt),
	}
	return s.sign(claims)
}

// ValidateToken validates an API bearer token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, claims, audienceAPI); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}

// GenerateStateToken signs state for userID, valid until expiresAt.
func (s *JWTService) GenerateStateToken(userID uuid.UUID, state string, expiresAt time.Time) (string, error) {
	claims := &StateClaims{
		UserID:           userID,
		State:            state,
		RegisteredClaims: s.registered(audienceState, s.now(), expiresAt),
	}
	return s.sign(claims)
}

// ValidateStateToken checks the signed state cookie against the state the
// provider echoed back and returns the user who started the flow.
func (s *JWTService) ValidateStateToken(tokenString, returnedState string) (uuid.UUID, error) {
	claims := &StateClaims{}
	if err := s.parse(tokenString, claims, audienceState); err != nil {
		return uuid.Nil, err
	}
	if returnedState == "" || subtle.ConstantTimeCompare([]byte(claims.State), []byte(returnedState)) != 1 {
		return uuid.Nil, errors.New("oauth state mismatch")
	}
	return claims.UserID, nil
}

func (s *JWTService) registered(audience string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func (s *JWTService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, audience string) error {
	if tokenString == "" {
		return fmt.Errorf("token string is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return fmt.Errorf("invalid token signature: %w", err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return fmt.Errorf("token expired: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return fmt.Errorf("malformed token: %w", err)
		}
		return fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return fmt.Errorf("token is not valid")
	}
	return nil
}
