package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	jwtlib "vidtube/internal/lib/jwt"
	sl "vidtube/internal/lib/logger"
	"vidtube/internal/media"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUploadFailed       = errors.New("upload failed")
)

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

type UserStore interface {
	SaveUser(ctx context.Context, u models.User) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID string, passHash []byte) error
	UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID, coverURL string) (models.User, error)
}

type MediaHost interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (media.Asset, error)
	Delete(ctx context.Context, key string) error
}

type TokenBlacklist interface {
	BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error
}

type Notifier interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// File is an uploaded file handed over by the HTTP layer. Optional uploads
// are passed as a nil *File.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type Auth struct {
	log       *slog.Logger
	users     UserStore
	media     MediaHost
	blacklist TokenBlacklist
	notifier  Notifier
	tokens    jwtlib.Tokens
}

func New(
	log *slog.Logger,
	users UserStore,
	mediaHost MediaHost,
	blacklist TokenBlacklist,
	notifier Notifier,
	tokens jwtlib.Tokens,
) *Auth {
	return &Auth{
		log:       log,
		users:     users,
		media:     mediaHost,
		blacklist: blacklist,
		notifier:  notifier,
		tokens:    tokens,
	}
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
	Avatar   *File
	Cover    *File
}

// Register creates a new account. Uniqueness is checked before any upload, and
// uploaded media is deleted again if the record cannot be created afterwards.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Password = strings.TrimSpace(in.Password)

	if in.FullName == "" || in.Email == "" || in.Username == "" || in.Password == "" {
		return models.PublicUser{}, fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if in.Avatar == nil {
		return models.PublicUser{}, fmt.Errorf("%w: avatar file is required", ErrValidation)
	}

	_, err := a.users.UserByUsernameOrEmail(ctx, in.Username, in.Email)
	if err == nil {
		log.Warn("user already exists", slog.String("username", in.Username))
		return models.PublicUser{}, storage.ErrUserExists
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to check existing user", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	avatar, err := a.media.Upload(ctx, avatarFolder, in.Avatar.Name, in.Avatar.Reader, in.Avatar.Size, in.Avatar.ContentType)
	if err != nil {
		log.Error("failed to upload avatar", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%w: avatar", ErrUploadFailed)
	}

	var cover media.Asset
	if in.Cover != nil {
		cover, err = a.media.Upload(ctx, coverFolder, in.Cover.Name, in.Cover.Reader, in.Cover.Size, in.Cover.ContentType)
		if err != nil {
			log.Error("failed to upload cover image", sl.Err(err))
			return models.PublicUser{}, fmt.Errorf("%w: cover image", ErrUploadFailed)
		}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.SaveUser(ctx, models.User{
		ID:        uuid.NewString(),
		Username:  in.Username,
		Email:     in.Email,
		FullName:  in.FullName,
		PassHash:  passHash,
		AvatarURL: avatar.URL,
		CoverURL:  cover.URL,
	})
	if err != nil {
		a.cleanupAssets(ctx, log, avatar, cover)

		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists", slog.String("username", in.Username))
			return models.PublicUser{}, storage.ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	if a.notifier != nil {
		msg := models.Message{Email: user.Email, Username: user.Username, Purpose: "welcome"}
		if err := a.notifier.SendMessage(ctx, msg); err != nil {
			log.Warn("failed to publish welcome message", sl.Err(err))
		}
	}

	log.Info("user registered", slog.String("uid", user.ID))

	return user.Public(), nil
}

// cleanupAssets removes media uploaded during a registration whose record
// could not be created. Delete errors are only logged: the asset may already
// be gone and the caller has a more important failure to surface.
func (a *Auth) cleanupAssets(ctx context.Context, log *slog.Logger, assets ...media.Asset) {
	for _, asset := range assets {
		if asset.Key == "" {
			continue
		}
		if err := a.media.Delete(ctx, asset.Key); err != nil {
			log.Warn("failed to delete uploaded asset", slog.String("key", asset.Key), sl.Err(err))
		}
	}
}

// Login authenticates by username or email plus password and issues a fresh
// token pair, replacing any refresh token stored for the user.
func (a *Auth) Login(ctx context.Context, username, email, password string) (models.PublicUser, string, string, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.TrimSpace(email)

	if (username == "" && email == "") || password == "" {
		return models.PublicUser{}, "", "", fmt.Errorf("%w: username or email and password are required", ErrValidation)
	}

	user, err := a.users.UserByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.PublicUser{}, "", "", storage.ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return models.PublicUser{}, "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return models.PublicUser{}, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := a.issueTokens(ctx, log, user.ID)
	if err != nil {
		return models.PublicUser{}, "", "", err
	}

	log.Info("user logged in", slog.String("uid", user.ID))

	return user.Public(), accessToken, refreshToken, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// must equal the one stored on the user record; rotation is a compare-and-swap
// so a replayed old token always loses.
func (a *Auth) Refresh(ctx context.Context, incoming string) (string, string, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if incoming == "" {
		return "", "", ErrInvalidCredentials
	}

	userID, err := a.tokens.ParseRefreshToken(incoming)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))
		return "", "", jwtlib.ErrInvalidToken
	}

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", slog.String("uid", userID))
			return "", "", storage.ErrUserNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshToken != incoming {
		log.Warn("stale refresh token presented", slog.String("uid", userID))
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := a.tokens.NewAccessToken(user.ID)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	newRefresh, err := a.tokens.NewRefreshToken(user.ID)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	err = a.users.RotateRefreshToken(ctx, user.ID, incoming, newRefresh)
	if err != nil {
		if errors.Is(err, storage.ErrTokenMismatch) {
			log.Warn("lost refresh rotation race", slog.String("uid", userID))
			return "", "", ErrInvalidCredentials
		}

		log.Error("failed to rotate refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens refreshed", slog.String("uid", user.ID))

	return accessToken, newRefresh, nil
}

// Logout clears the stored refresh token and denylists the presented access
// token for the rest of its lifetime.
func (a *Auth) Logout(ctx context.Context, userID, accessToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if err := a.users.ClearRefreshToken(ctx, userID); err != nil {
		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if a.blacklist != nil && accessToken != "" {
		if err := a.blacklist.BlacklistAccessToken(ctx, accessToken, a.tokens.AccessTTL); err != nil {
			log.Warn("failed to blacklist access token", sl.Err(err))
		}
	}

	log.Info("user logged out", slog.String("uid", userID))

	return nil
}

func (a *Auth) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	const op = "auth.CurrentUser"

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.PublicUser{}, storage.ErrUserNotFound
		}

		a.log.With(slog.String("op", op)).Error("failed to load user", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

func (a *Auth) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	log := a.log.With(slog.String("op", op))

	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: old and new passwords are required", ErrValidation)
	}

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(oldPassword)); err != nil {
		log.Info("invalid old password")
		return ErrInvalidCredentials
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.users.UpdatePassword(ctx, userID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.String("uid", userID))

	return nil
}

func (a *Auth) UpdateAccount(ctx context.Context, userID, fullName, email string) (models.PublicUser, error) {
	const op = "auth.UpdateAccount"

	log := a.log.With(slog.String("op", op))

	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	if fullName == "" || email == "" {
		return models.PublicUser{}, fmt.Errorf("%w: fullname and email are required", ErrValidation)
	}

	user, err := a.users.UpdateAccountDetails(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			return models.PublicUser{}, storage.ErrUserNotFound
		case errors.Is(err, storage.ErrUserExists):
			return models.PublicUser{}, storage.ErrUserExists
		}

		log.Error("failed to update account details", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account details updated", slog.String("uid", userID))

	return user.Public(), nil
}

func (a *Auth) UpdateAvatar(ctx context.Context, userID string, f *File) (models.PublicUser, error) {
	return a.updateImage(ctx, "auth.UpdateAvatar", avatarFolder, userID, f, a.users.UpdateAvatar)
}

func (a *Auth) UpdateCoverImage(ctx context.Context, userID string, f *File) (models.PublicUser, error) {
	return a.updateImage(ctx, "auth.UpdateCoverImage", coverFolder, userID, f, a.users.UpdateCoverImage)
}

func (a *Auth) updateImage(
	ctx context.Context,
	op, folder, userID string,
	f *File,
	persist func(ctx context.Context, userID, url string) (models.User, error),
) (models.PublicUser, error) {
	log := a.log.With(slog.String("op", op))

	if f == nil {
		return models.PublicUser{}, fmt.Errorf("%w: file is required", ErrValidation)
	}

	asset, err := a.media.Upload(ctx, folder, f.Name, f.Reader, f.Size, f.ContentType)
	if err != nil {
		log.Error("failed to upload image", sl.Err(err))
		return models.PublicUser{}, ErrUploadFailed
	}

	user, err := persist(ctx, userID, asset.URL)
	if err != nil {
		a.cleanupAssets(ctx, log, asset)

		if errors.Is(err, storage.ErrUserNotFound) {
			return models.PublicUser{}, storage.ErrUserNotFound
		}

		log.Error("failed to persist image url", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("image updated", slog.String("uid", userID))

	return user.Public(), nil
}

func (a *Auth) issueTokens(ctx context.Context, log *slog.Logger, userID string) (string, string, error) {
	const op = "auth.issueTokens"

	accessToken, err := a.tokens.NewAccessToken(userID)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := a.tokens.NewRefreshToken(userID)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.users.SetRefreshToken(ctx, userID, refreshToken); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, refreshToken, nil
}
