package auth

import "context"

// Context key for storing the caller identity in request context
type contextKey string

const identityKey contextKey = "identity"

// GetIdentity retrieves the caller identity from the request context.
// Returns nil when the request is anonymous.
func GetIdentity(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// WithIdentity adds the caller identity to the request context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IsAuthenticated checks if the request context carries an identity
func IsAuthenticated(ctx context.Context) bool {
	return GetIdentity(ctx) != nil
}

// RequireIdentity returns the identity or panics if the request is anonymous.
// This should only be used in handlers where authentication is guaranteed.
func RequireIdentity(ctx context.Context) *Identity {
	id := GetIdentity(ctx)
	if id == nil {
		panic("authentication required but no identity found in context")
	}
	return id
}
