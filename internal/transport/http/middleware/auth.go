package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linkpulse/linkpulse/internal/constants"
	"github.com/linkpulse/linkpulse/pkg/httputils"
)

type contextKey string

const ownerIDKey contextKey = "ownerId"

// Claims carried by the access token. The subject identifies the link owner.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Bearer token and stores the owner id in the
// request context. Tokens must be signed with HS256 and the shared secret.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
				return
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !parsed.Valid || claims.Subject == "" {
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ownerIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerIDFromContext returns the authenticated owner id, if any.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerIDKey).(string)
	return ownerID, ok && ownerID != ""
}

// WithOwnerID injects an owner id into the context. Intended for tests.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}
