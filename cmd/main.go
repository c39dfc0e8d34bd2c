package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidtube/internal/auth"
	"vidtube/internal/config"
	"vidtube/internal/http_server/cookies"
	"vidtube/internal/http_server/handlers/account"
	"vidtube/internal/http_server/handlers/currentuser"
	"vidtube/internal/http_server/handlers/image"
	"vidtube/internal/http_server/handlers/login"
	"vidtube/internal/http_server/handlers/logout"
	"vidtube/internal/http_server/handlers/password"
	"vidtube/internal/http_server/handlers/refresh"
	"vidtube/internal/http_server/handlers/register"
	"vidtube/internal/http_server/middleware/authenticate"
	jwtlib "vidtube/internal/lib/jwt"
	"vidtube/internal/media"
	rateLimit "vidtube/internal/middleware/ratelimit"
	"vidtube/internal/rabbitmq"
	"vidtube/internal/storage/postgres"
	"vidtube/internal/storage/redis"
	"vidtube/migrations"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting vidtube", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	if err := runMigrations(cfg); err != nil {
		log.Error("failed to run migrations", slog.String("err", err.Error()))
		os.Exit(1)
	}

	blacklist, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer blacklist.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	mediaHost, err := media.New(ctx, cfg.Media)
	if err != nil {
		log.Error("failed to create media client", slog.String("err", err.Error()))
		os.Exit(1)
	}

	tokens := jwtlib.Tokens{
		AccessSecret:  []byte(cfg.Tokens.AccessTokenSecret),
		RefreshSecret: []byte(cfg.Tokens.RefreshTokenSecret),
		AccessTTL:     cfg.Tokens.AccessTokenTTL,
		RefreshTTL:    cfg.Tokens.RefreshTokenTTL,
	}

	authService := auth.New(log, storage, mediaHost, blacklist, msgBroker, tokens)

	router := setupRouter(log, cfg, authService, tokens, blacklist)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("addr", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	tokens jwtlib.Tokens,
	blacklist *redis.RedisRepo,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	validate := validator.New()
	cookieHelper := cookies.NewHelper(cfg.Env == envProd)

	accessTTL := cfg.Tokens.AccessTokenTTL
	refreshTTL := cfg.Tokens.RefreshTokenTTL

	r.Route("/api/v1/users", func(r chi.Router) {
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, authService),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, authService, cookieHelper, accessTTL, refreshTTL),
		)
		r.With(rateLimit.Refresh()).Post("/refresh-token",
			refresh.New(log, authService, cookieHelper, accessTTL, refreshTTL),
		)

		r.Group(func(r chi.Router) {
			r.Use(authenticate.New(log, tokens, blacklist))

			r.With(rateLimit.Logout()).Post("/logout",
				logout.New(log, authService, cookieHelper),
			)
			r.With(rateLimit.Account()).Post("/change-password",
				password.New(log, validate, authService),
			)
			r.With(rateLimit.Account()).Patch("/update-account",
				account.New(log, validate, authService),
			)
			r.With(rateLimit.Account()).Patch("/avatar",
				image.New(log, "avatar", authService.UpdateAvatar, "Avatar Updated Successfully"),
			)
			r.With(rateLimit.Account()).Patch("/cover-image",
				image.New(log, "coverImage", authService.UpdateCoverImage, "Cover Image Updated Successfully"),
			)
			r.Get("/current-user",
				currentuser.New(log, authService),
			)
		})
	})

	return r
}

func runMigrations(cfg *config.Config) error {
	db, err := sql.Open("pgx", postgres.DSN(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	return migrations.Migrate(db)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
