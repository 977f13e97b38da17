package middleware

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/graphevents/internal/auth"
	"github.com/rs/zerolog"
)

const claimsKey contextKey = "claims"

// RequireRole demands a bearer JWT carrying one of roles. A nil manager
// leaves the route open, matching deployments that run without a secret.
func RequireRole(manager *auth.JWTManager, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if manager == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := manager.Validate(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !auth.HasRole(claims.Role, roles...) {
				zerolog.Ctx(r.Context()).Warn().
					Str("subject", claims.Subject).
					Str("role", claims.Role).
					Msg("write rejected: insufficient role")
				writeAuthError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="graphevents"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
}
