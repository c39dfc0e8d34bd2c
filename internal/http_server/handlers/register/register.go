package register

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"vidtube/internal/auth"
	resp "vidtube/internal/lib/api/response"
	sl "vidtube/internal/lib/logger"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

// register accepts a multipart form: text fields fullname, email, username,
// password plus files avatar (required) and coverImage (optional).

const maxUploadMemory = 32 << 20

type UserRegistrar interface {
	Register(ctx context.Context, in auth.RegisterInput) (models.PublicUser, error)
}

func New(
	log *slog.Logger,
	registrar UserRegistrar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			log.Error("Failed to parse multipart form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(http.StatusBadRequest, "Failed to decode request"))

			return
		}

		in := auth.RegisterInput{
			FullName: r.FormValue("fullname"),
			Email:    r.FormValue("email"),
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}

		avatar, avatarFile, err := formFile(r, "avatar")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(http.StatusBadRequest, "Avatar file is required"))

			return
		}
		defer avatarFile.Close()
		in.Avatar = avatar

		cover, coverFile, err := formFile(r, "coverImage")
		if err == nil {
			defer coverFile.Close()
			in.Cover = cover
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		user, err := registrar.Register(ctx, in)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrValidation):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(http.StatusBadRequest, "All fields are required"))
			case errors.Is(err, storage.ErrUserExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error(http.StatusConflict, "User already exists"))
			case errors.Is(err, auth.ErrUploadFailed):
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Failed to upload image"))
			default:
				log.Error("failed to register user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
			}

			return
		}

		log.Info("User registered", slog.String("id", user.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OK(http.StatusCreated, user, "User Registered Successfully"))
	}
}

func formFile(r *http.Request, field string) (*auth.File, multipart.File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}

	return &auth.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}, file, nil
}
