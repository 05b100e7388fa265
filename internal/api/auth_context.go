package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/auth"
	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	userKey     ctxKey = "user"
	claimsKey   ctxKey = "claims"
	clientIPKey ctxKey = "clientIP"
)

// authMiddleware validates Bearer tokens and stores the user and claims in
// context. Requests without a valid token continue anonymously; handlers use
// RequireUser to reject them.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey, getClientIP(r))

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if ok && authService != nil {
				if user, claims, err := authService.VerifyAccessToken(ctx, token); err == nil {
					ctx = context.WithValue(ctx, userKey, user)
					ctx = context.WithValue(ctx, claimsKey, claims)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireUser returns the authenticated user or a 401 error.
func RequireUser(ctx context.Context) (*domain.User, error) {
	user, ok := ctx.Value(userKey).(*domain.User)
	if !ok || user == nil {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return user, nil
}

// RequireAdmin returns the authenticated user if they are an admin.
func RequireAdmin(ctx context.Context) (*domain.User, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Admin access required")
	}
	return user, nil
}

// currentSessionID returns the auth session behind the request's token.
func currentSessionID(ctx context.Context) string {
	if claims, ok := ctx.Value(claimsKey).(*auth.AccessClaims); ok && claims != nil {
		return claims.SessionID
	}
	return ""
}

// clientIP returns the caller address recorded by authMiddleware.
func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
