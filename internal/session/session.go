// Package session carries the authenticated caller through request contexts.
package session

import (
	"context"

	"github.com/anonto42/minglr/backend/internal/apperrors"
)

type ctxKey struct{}

// Principal is the signed-in user a request acts on behalf of.
type Principal struct {
	UserID string
	Name   string
	Avatar string
	Email  string
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, false
	}
	return p, true
}

// Require is FromContext that reports a missing principal as ErrUnauthenticated.
func Require(ctx context.Context) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return Principal{}, apperrors.ErrUnauthenticated
	}
	return p, nil
}
