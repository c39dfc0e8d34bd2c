package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vidtube/internal/http_server/cookies"
	"vidtube/internal/http_server/middleware/authenticate"
	resp "vidtube/internal/lib/api/response"
	sl "vidtube/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type UserLogouter interface {
	Logout(ctx context.Context, userID, accessToken string) error
}

// New handles logout for an already authenticated request: the middleware has
// attached the user id, so the handler just clears server and client state.
func New(
	log *slog.Logger,
	logouter UserLogouter,
	cookieHelper *cookies.Helper,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := authenticate.UserID(r.Context())
		if userID == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error(http.StatusUnauthorized, "Unauthorized request"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := logouter.Logout(ctx, userID, authenticate.AccessToken(r.Context())); err != nil {
			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))

			return
		}

		log.Info("user logged out successfully")

		cookieHelper.ClearAuthCookies(w)

		render.JSON(w, r, resp.OK(http.StatusOK, struct{}{}, "User Logged Out Successfully"))
	}
}
