package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidtube/internal/auth"
	"vidtube/internal/http_server/cookies"
	resp "vidtube/internal/lib/api/response"
	jwtlib "vidtube/internal/lib/jwt"
	sl "vidtube/internal/lib/logger"
	"vidtube/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	RefreshToken string `json:"refreshToken"`
}

type Data struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
}

func New(
	log *slog.Logger,
	refresher TokenRefresher,
	cookieHelper *cookies.Helper,
	accessTTL, refreshTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// Cookie first, JSON body as fallback.
		incoming := cookies.RefreshToken(r)
		if incoming == "" {
			var req Request
			if err := render.DecodeJSON(r.Body, &req); err == nil {
				incoming = req.RefreshToken
			}
		}

		if incoming == "" {
			log.Warn("no refresh token supplied")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Refresh token is required"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		accessToken, newRefreshToken, err := refresher.Refresh(ctx, incoming)
		if err != nil {
			switch {
			case errors.Is(err, jwtlib.ErrInvalidToken):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Invalid refresh token"))
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error(http.StatusNotFound, "Invalid refresh token"))
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Invalid refresh token"))
			default:
				log.Error("failed to refresh tokens", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
			}

			return
		}

		log.Info("Tokens refreshed successfully")

		cookieHelper.SetAuthCookies(w, accessToken, newRefreshToken, accessTTL, refreshTTL)

		render.JSON(w, r, resp.OK(http.StatusOK, Data{
			AccessToken:  accessToken,
			RefreshToken: newRefreshToken,
		}, "Access token refreshed successfully"))
	}
}
