package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess = "access"
	issuer          = "danceflow"
)

// Claims carried by a session token
type Claims struct {
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Sessions issues, verifies and revokes HS256 session tokens. Every issued
// token id is tracked in a TokenStore so logout takes effect immediately.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	store  TokenStore
	now    func() time.Time
}

// NewSessions creates a session issuer signing with secret
func NewSessions(secret string, ttl time.Duration, store TokenStore) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

// TTL returns the lifetime of issued tokens
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for id and whitelists it
func (s *Sessions) Issue(ctx context.Context, id *Identity) (string, time.Time, error) {
	if id == nil || id.Subject == "" {
		return "", time.Time{}, errors.New("issuing session: identity has no subject")
	}
	tokenID, err := generateTokenID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issuing session: %w", err)
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		Role:      id.Role,
		Email:     id.Email,
		Name:      id.Name,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   id.Subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	if err := s.store.Allow(ctx, tokenID, s.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("issuing session: %w", err)
	}
	return signed, expires, nil
}

// Verify parses a token and checks it against the token store. Invalid or
// revoked tokens yield ErrInvalidToken; store failures are returned as is.
func (s *Sessions) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	valid, err := s.store.IsValid(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking session token: %w", err)
	}
	if !valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates token for the rest of its lifetime. Already invalid
// tokens are ignored.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.store.Revoke(ctx, claims.ID, ttl)
}

func (s *Sessions) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.TokenType != tokenTypeAccess || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateTokenID creates a cryptographically secure random token id
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
