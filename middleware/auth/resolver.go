package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// SessionResolver resolves identities from session tokens carried in the
// session cookie or an Authorization bearer header. The stored user record
// wins over token claims, so role changes and deleted accounts apply at once.
type SessionResolver struct {
	sessions *Sessions
	users    UserLookup
}

// NewSessionResolver creates a resolver. A nil users lookup trusts the token claims.
func NewSessionResolver(sessions *Sessions, users UserLookup) *SessionResolver {
	return &SessionResolver{sessions: sessions, users: users}
}

// Resolve returns the caller identity or nil for anonymous requests. A
// session cookie that fails verification does not shadow a valid bearer token.
func (s *SessionResolver) Resolve(r *http.Request) (*Identity, error) {
	var claims *Claims
	for _, token := range tokensFromRequest(r) {
		c, err := s.sessions.Verify(r.Context(), token)
		if errors.Is(err, ErrInvalidToken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		claims = c
		break
	}
	if claims == nil {
		return nil, nil
	}

	id := &Identity{
		Subject: claims.Subject,
		Role:    claims.Role,
		Email:   claims.Email,
		Name:    claims.Name,
	}
	if s.users == nil {
		return id, nil
	}

	current, err := s.users.LookupUser(r.Context(), claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("looking up session user: %w", err)
	}
	return current, nil
}

// TokenFromRequest extracts the session token from the cookie, falling back
// to an Authorization bearer header
func TokenFromRequest(r *http.Request) string {
	if tokens := tokensFromRequest(r); len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// tokensFromRequest lists the cookie token, then the bearer token
func tokensFromRequest(r *http.Request) []string {
	var tokens []string
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
