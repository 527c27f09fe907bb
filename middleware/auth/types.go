package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken is returned when a session token fails verification
	ErrInvalidToken = errors.New("invalid session token")
	// ErrInvalidCredentials is returned when an email/password pair does not match
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Resolver establishes the caller identity of a request. A request without
// valid credentials resolves to a nil identity and a nil error; errors are
// reserved for infrastructure failures.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(r *http.Request) (*Identity, error)

func (f ResolverFunc) Resolve(r *http.Request) (*Identity, error) {
	return f(r)
}

// TokenStore tracks issued session tokens by token id
type TokenStore interface {
	// Allow whitelists a token id for ttl
	Allow(ctx context.Context, tokenID string, ttl time.Duration) error

	// Revoke invalidates a token id for the rest of its lifetime
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsValid reports whether the token id is whitelisted and not revoked
	IsValid(ctx context.Context, tokenID string) (bool, error)
}

// UserLookup loads the current state of a user account. It returns a nil
// identity when the user no longer exists.
type UserLookup interface {
	LookupUser(ctx context.Context, subject string) (*Identity, error)
}

// UserLookupFunc adapts a function to the UserLookup interface
type UserLookupFunc func(ctx context.Context, subject string) (*Identity, error)

func (f UserLookupFunc) LookupUser(ctx context.Context, subject string) (*Identity, error) {
	return f(ctx, subject)
}

// AuthenticatorFunc validates an email and password and returns the matching
// identity, or ErrInvalidCredentials
type AuthenticatorFunc func(ctx context.Context, email, password string) (*Identity, error)
