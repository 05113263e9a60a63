// Package auth carries the verified principal identity through request
// contexts and issues/verifies the bearer tokens that identity arrives in.
// Everything below this package treats the principal as an opaque string id.
package auth

import "context"

type contextKey struct{}

// WithPrincipal returns a context carrying the verified principal id.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, contextKey{}, principalID)
}

// FromContext returns the principal id and whether one is present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// PrincipalID returns the principal id, or "" when unauthenticated.
func PrincipalID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id
}
