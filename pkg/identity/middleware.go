package identity

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/contextkeys"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/observability"
)

// Trusted gateway headers. The gateway strips these from inbound traffic
// before setting them, so their presence is authoritative.
const (
	HeaderSubject = "X-Atrium-Subject"
	HeaderEmail   = "X-Atrium-Email"
	HeaderGod     = "X-Atrium-God"
)

// Middleware extracts identity claims from trusted gateway headers.
type Middleware struct {
	logger *observability.Logger

	// optional allows unauthenticated requests through without claims.
	// Protected routes still reject them at the authorization stage.
	optional bool
}

// NewMiddleware creates identity extraction middleware.
func NewMiddleware(logger *observability.Logger, optional bool) *Middleware {
	return &Middleware{logger: logger, optional: optional}
}

// Handler wraps an HTTP handler with identity extraction.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := r.Header.Get(HeaderSubject)
		if subject == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		subjectID, err := uuid.Parse(subject)
		if err != nil {
			m.logger.WithField("subject", subject).Warn("malformed subject header")
			httputil.WriteUnauthorized(w, "invalid identity")
			return
		}

		claims := &Claims{
			SubjectID: subjectID,
			Email:     r.Header.Get(HeaderEmail),
			IsGod:     r.Header.Get(HeaderGod) == "true",
		}

		ctx := NewContext(r.Context(), claims)
		ctx = contextkeys.WithUserID(ctx, subjectID.String())
		ctx = observability.WithUserID(ctx, subjectID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
