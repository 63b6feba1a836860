//	@title			SD Music API
//	@version		1.0
//	@description	Backend for a music streaming app: songs, playlists, listening history and accounts.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/sdmusic/service/internal/auth"
	"github.com/sdmusic/service/internal/cache"
	"github.com/sdmusic/service/internal/config"
	"github.com/sdmusic/service/internal/db"
	"github.com/sdmusic/service/internal/history"
	"github.com/sdmusic/service/internal/logging"
	appMiddleware "github.com/sdmusic/service/internal/middleware"
	"github.com/sdmusic/service/internal/playlist"
	"github.com/sdmusic/service/internal/song"
	"github.com/sdmusic/service/internal/storage"
	"github.com/sdmusic/service/internal/token"
	"github.com/sdmusic/service/internal/user"

	_ "github.com/sdmusic/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		fatal(logger, "database connection failed", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		fatal(logger, "database migration failed", err)
	}

	// Song metadata store: postgres by default, mongo when configured.
	var songStore song.Store
	switch cfg.SongStore {
	case config.SongStoreMongo:
		mdb, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			fatal(logger, "mongo connection failed", err)
		}
		defer func() { _ = mdb.Client().Disconnect(context.Background()) }()

		mongoStore := song.NewMongoStore(mdb)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			fatal(logger, "mongo index creation failed", err)
		}
		songStore = mongoStore
	default:
		songStore = song.NewPostgresStore(pool)
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "sdmusic:", cfg.CacheTTL)
		if err != nil {
			fatal(logger, "redis connection failed", err)
		}
		defer rc.Close()
		songStore = song.NewCachedStore(songStore, rc, logging.WithComponent(logger, "song-cache"))
		logger.Info("song read cache enabled", "ttl", cfg.CacheTTL)
	}

	objects, err := storage.NewMinioStorage(ctx, storage.MinioConfig{
		Endpoint:   cfg.StorageEndpoint,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		PublicBase: cfg.StoragePublicBase,
		UseSSL:     cfg.StorageUseSSL,
	})
	if err != nil {
		fatal(logger, "object storage init failed", err)
	}

	tokens := token.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	adminPassword, err := auth.NewPasswordAuthorizer(cfg.AdminPassword)
	if err != nil {
		fatal(logger, "admin password setup failed", err)
	}
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is empty; song deletion requires an admin token")
	}

	// Wire dependencies: repository → service → handler
	songSvc := song.NewService(song.Config{
		Store:       songStore,
		Objects:     objects,
		Authorizer:  auth.Any(adminPassword, auth.NewTokenAuthorizer(tokens)),
		Logger:      logger,
		AudioFolder: cfg.AudioFolder,
		ImageFolder: cfg.ImageFolder,
	})
	songHandler := song.NewHandler(songSvc, cfg.MaxUploadBytes(), logger)

	userSvc := user.NewService(user.NewRepository(pool))
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(userSvc, auth.NewRepository(pool), tokens, logger, cfg.IsProduction())
	authHandler := auth.NewHandler(authSvc)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			fatal(logger, "admin bootstrap failed", err)
		}
	}

	playlistSvc := playlist.NewService(playlist.NewRepository(pool), songSvc)
	playlistHandler := playlist.NewHandler(playlistSvc, logger)

	historySvc := history.NewService(history.NewRepository(pool), songSvc)
	historyHandler := history.NewHandler(historySvc, logger)

	requireAuth := appMiddleware.RequireAuth(tokens)
	limiter := appMiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/verify-reset-token", authHandler.VerifyResetToken)
			r.Post("/reset-password/{token}", authHandler.ResetPassword)
		})

		r.Route("/songs", func(r chi.Router) {
			r.With(limiter.Handler).Post("/upload", songHandler.Upload)
			r.Get("/", songHandler.List)
			r.Get("/home", songHandler.Home)
			r.Get("/{songId}", songHandler.Get)
			r.Put("/{songId}", songHandler.Update)
			r.Delete("/{songId}", songHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userHandler.GetMe)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", playlistHandler.List)
			r.With(requireAuth).Post("/", playlistHandler.Create)
			r.Get("/{playlistId}/songs", playlistHandler.Songs)
		})

		r.Route("/history", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", historyHandler.Record)
			r.Get("/{userId}", historyHandler.List)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv, "song_store", cfg.SongStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		fatal(logger, "server error", err)
	}
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
