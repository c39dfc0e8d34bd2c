package authenticate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"vidtube/internal/http_server/cookies"
	resp "vidtube/internal/lib/api/response"
	sl "vidtube/internal/lib/logger"

	"github.com/go-chi/render"
)

type ctxKey string

const (
	userIDKey      ctxKey = "userID"
	accessTokenKey ctxKey = "accessToken"
)

type TokenParser interface {
	ParseAccessToken(token string) (string, error)
}

type BlacklistChecker interface {
	IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

// New builds the access-token middleware: it takes the token from the
// accessToken cookie or the Authorization header, verifies it, rejects tokens
// revoked by logout, and attaches the resolved user id to the request context.
func New(log *slog.Logger, parser TokenParser, blacklist BlacklistChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authenticate"

			log := log.With(slog.String("op", op))

			token := tokenFromRequest(r)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Unauthorized request"))

				return
			}

			userID, err := parser.ParseAccessToken(token)
			if err != nil {
				log.Warn("invalid access token", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Invalid access token"))

				return
			}

			if blacklist != nil {
				revoked, err := blacklist.IsAccessTokenBlacklisted(r.Context(), token)
				if err != nil {
					log.Error("failed to check token blacklist", sl.Err(err))

					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))

					return
				}
				if revoked {
					log.Warn("revoked access token presented", slog.String("uid", userID))

					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Invalid access token"))

					return
				}
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, accessTokenKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id placed by the middleware, or ""
// for unauthenticated requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// AccessToken returns the raw access token the request authenticated with.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey).(string)
	return token
}

func tokenFromRequest(r *http.Request) string {
	if token := cookies.AccessToken(r); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}

	return ""
}
