package image

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidtube/internal/auth"
	"vidtube/internal/http_server/middleware/authenticate"
	resp "vidtube/internal/lib/api/response"
	sl "vidtube/internal/lib/logger"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const maxUploadMemory = 32 << 20

// Updater swaps one image on the account; avatar and cover image endpoints
// differ only in which store column they write.
type Updater func(ctx context.Context, userID string, f *auth.File) (models.PublicUser, error)

// New serves a single-file multipart upload for the given form field.
func New(
	log *slog.Logger,
	field string,
	update Updater,
	successMessage string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.image.New"

		log = log.With(
			slog.String("op", op),
			slog.String("field", field),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			log.Error("Failed to parse multipart form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(http.StatusBadRequest, "Failed to decode request"))

			return
		}

		file, header, err := r.FormFile(field)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(http.StatusBadRequest, "Image file is required"))

			return
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		user, err := update(ctx, authenticate.UserID(r.Context()), &auth.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      file,
		})
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrValidation):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(http.StatusBadRequest, "Image file is required"))
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error(http.StatusNotFound, "User not found"))
			case errors.Is(err, auth.ErrUploadFailed):
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Failed to upload image"))
			default:
				log.Error("failed to update image", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
			}

			return
		}

		log.Info("image updated successfully")

		render.JSON(w, r, resp.OK(http.StatusOK, user, successMessage))
	}
}
