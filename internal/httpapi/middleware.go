package httpapi

import (
	"context"
	"net/http"

	"github.com/blueberrycongee/agentgate/internal/admission"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
)

// APIKeyHeader carries the caller's identity, per spec §6.
const APIKeyHeader = "X-API-Key"

type identityKey struct{}

// identityFromContext extracts the admission.Identity a successful
// requireAPIKey pass attached to the request context.
func identityFromContext(ctx context.Context) (admission.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(admission.Identity)
	return id, ok
}

// requireAPIKey validates the X-API-Key header against the configured
// admission set and, on success, stamps the request context with the
// resulting quota identity and applies the rate limiter keyed on it
// (spec §4.J, §4.C run back to back on every admitted request).
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get(APIKeyHeader)
		identity, gerr := s.admission.Admit(apiKey)
		if gerr != nil {
			s.writeError(w, r, gerr)
			return
		}

		// Per-key overrides (identity.RatePerSecond/RateCapacity) are applied
		// once at startup from the admission key list, not per request — see
		// cmd/server/main.go. The registry already knows this key's quota.
		if !s.limits.Allow(identity.QuotaIdentity) {
			s.writeError(w, r, gwerrors.RateLimited(s.limits.RetryAfter(identity.QuotaIdentity)))
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
