package currentuser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidtube/internal/http_server/middleware/authenticate"
	resp "vidtube/internal/lib/api/response"
	sl "vidtube/internal/lib/logger"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type UserProvider interface {
	CurrentUser(ctx context.Context, userID string) (models.PublicUser, error)
}

func New(
	log *slog.Logger,
	provider UserProvider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.currentuser.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := provider.CurrentUser(ctx, authenticate.UserID(r.Context()))
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error(http.StatusNotFound, "User not found"))

				return
			}

			log.Error("failed to load current user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))

			return
		}

		render.JSON(w, r, resp.OK(http.StatusOK, user, "Current User Fetched Successfully"))
	}
}
