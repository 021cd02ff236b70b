// Package identity extracts the caller's verified identity from trusted
// gateway headers and exposes it to the rest of the request pipeline.
//
// Token verification happens upstream: the edge gateway authenticates the
// caller and forwards identity as X-Atrium-* headers. This package trusts
// those headers, builds Claims, and stores them on the request context.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/contextkeys"
)

// ErrUnauthenticated indicates the request carried no usable identity.
var ErrUnauthenticated = errors.New("authentication required")

// Claims is the verified identity of a request principal.
type Claims struct {
	// SubjectID is the platform-wide user ID.
	SubjectID uuid.UUID `json:"subject_id"`

	// Email is the principal's email address.
	Email string `json:"email,omitempty"`

	// IsGod marks platform operators. God-mode principals bypass tenant
	// membership checks everywhere.
	IsGod bool `json:"is_god"`
}

// FromContext retrieves claims stored by the middleware. Returns
// ErrUnauthenticated when the request had no identity.
func FromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(contextkeys.ClaimsKey).(*Claims)
	if !ok || claims == nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// NewContext returns a context carrying the given claims.
func NewContext(ctx context.Context, claims *Claims) context.Context {
	return contextkeys.WithClaims(ctx, claims)
}
