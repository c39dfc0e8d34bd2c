package account

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
	"github.com/go-playground/validator/v10"
)

type Request struct {
	FullName string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

type AccountUpdater interface {
	UpdateAccount(ctx context.Context, userID, fullName, email string) (models.PublicUser, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	updater AccountUpdater,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.account.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(http.StatusBadRequest, "Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := updater.UpdateAccount(ctx, authenticate.UserID(r.Context()), req.FullName, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrValidation):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(http.StatusBadRequest, "All fields are required"))
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error(http.StatusNotFound, "User not found"))
			case errors.Is(err, storage.ErrUserExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error(http.StatusConflict, "Email already in use"))
			default:
				log.Error("failed to update account details", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
			}

			return
		}

		log.Info("account details updated successfully")

		render.JSON(w, r, resp.OK(http.StatusOK, user, "Account Details Updated Successfully"))
	}
}
