package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidtube/internal/config"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at;
	`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.FullName, u.PassHash, u.AvatarURL, u.CoverURL,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := userSelect + `WHERE id = $1;`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// UserByUsernameOrEmail matches either column, so login works with whichever
// identifier the client sent.
func (r *PostgresRepo) UserByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	query := userSelect + `WHERE username = $1 OR email = $2;`

	return r.scanUser(r.pool.QueryRow(ctx, query, username, email))
}

func (r *PostgresRepo) SetRefreshToken(ctx context.Context, userID, token string) error {
	const op = "storage.postgres.SetRefreshToken"

	query := `UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, token, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// RotateRefreshToken replaces the stored refresh token only if the old value
// still matches, making rotation a compare-and-swap: two concurrent refreshes
// with the same token cannot both win.
func (r *PostgresRepo) RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error {
	const op = "storage.postgres.RotateRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = $1, updated_at = now()
		WHERE id = $2 AND refresh_token = $3
	`

	tag, err := r.pool.Exec(ctx, query, newToken, userID, oldToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrTokenMismatch
	}

	return nil
}

func (r *PostgresRepo) ClearRefreshToken(ctx context.Context, userID string) error {
	const op = "storage.postgres.ClearRefreshToken"

	query := `UPDATE users SET refresh_token = '', updated_at = now() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID string, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, passHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (models.User, error) {
	const op = "storage.postgres.UpdateAccountDetails"

	query := `
		UPDATE users
		SET full_name = $1, email = $2, updated_at = now()
		WHERE id = $3
		RETURNING id, username, email, full_name, password_hash, avatar_url, cover_url, refresh_token, created_at, updated_at;
	`

	u, err := r.scanUser(r.pool.QueryRow(ctx, query, fullName, email, userID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UpdateAvatar(ctx context.Context, userID, avatarURL string) (models.User, error) {
	return r.updateImage(ctx, "avatar_url", userID, avatarURL)
}

func (r *PostgresRepo) UpdateCoverImage(ctx context.Context, userID, coverURL string) (models.User, error) {
	return r.updateImage(ctx, "cover_url", userID, coverURL)
}

func (r *PostgresRepo) updateImage(ctx context.Context, column, userID, url string) (models.User, error) {
	const op = "storage.postgres.updateImage"

	query := fmt.Sprintf(`
		UPDATE users
		SET %s = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, username, email, full_name, password_hash, avatar_url, cover_url, refresh_token, created_at, updated_at;
	`, column)

	u, err := r.scanUser(r.pool.QueryRow(ctx, query, url, userID))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, err
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) SaveVideo(ctx context.Context, v models.Video) (models.Video, error) {
	const op = "storage.postgres.SaveVideo"

	query := `
		INSERT INTO videos (id, owner_id, video_file, thumbnail, title, description, duration, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING views, created_at, updated_at;
	`

	err := r.pool.QueryRow(ctx, query,
		v.ID, v.OwnerID, v.VideoFile, v.Thumbnail, v.Title, v.Description, v.Duration, v.IsPublished,
	).Scan(&v.Views, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return models.Video{}, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (r *PostgresRepo) VideoByID(ctx context.Context, id string) (models.Video, error) {
	query := `
		SELECT id, owner_id, video_file, thumbnail, title, description, duration, views, is_published, created_at, updated_at
		FROM videos
		WHERE id = $1;
	`

	var v models.Video
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.OwnerID,
		&v.VideoFile,
		&v.Thumbnail,
		&v.Title,
		&v.Description,
		&v.Duration,
		&v.Views,
		&v.IsPublished,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, storage.ErrVideoNotFound
	}
	if err != nil {
		return models.Video{}, err
	}

	return v, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

const userSelect = `
	SELECT id, username, email, full_name, password_hash, avatar_url, cover_url, refresh_token, created_at, updated_at
	FROM users
	`

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PassHash,
		&u.AvatarURL,
		&u.CoverURL,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	return u, nil
}

// DSN builds the connection string; the migration runner needs it too.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
