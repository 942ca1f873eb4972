package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	httpapi "github.com/immxrtalbeast/huddle/internal/api/http"
	"github.com/immxrtalbeast/huddle/internal/auth"
	"github.com/immxrtalbeast/huddle/internal/config"
	"github.com/immxrtalbeast/huddle/internal/relay"
	"github.com/immxrtalbeast/huddle/internal/repository"
	"github.com/immxrtalbeast/huddle/internal/repository/model"
	"github.com/immxrtalbeast/huddle/internal/service"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
	"github.com/immxrtalbeast/huddle/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	stores, err := openStores(cfg.Database)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}
	log.Info("storage ready", slog.String("driver", cfg.Database.Driver))

	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	userService := service.NewUserService(stores.users, tokens, hasher, log)
	roomService := service.NewRoomService(stores.rooms, stores.users, log)
	messageService := service.NewMessageService(stores.messages, stores.rooms, log)
	uploadService := service.NewUploadService(cfg.Uploads.Dir, cfg.Uploads.MaxSize, log)

	chatRelay := relay.New(stores.users, stores.messages, log)
	origins := httpapi.NewOriginPolicy(cfg.HTTP.AllowedOrigins, log)

	router := httpapi.SetupRouter(httpapi.RouterDeps{
		Origins:    origins,
		Auth:       httpapi.AuthMiddleware(tokens),
		UploadsDir: cfg.Uploads.Dir,
		Users:      httpapi.NewUserController(userService, log),
		Rooms:      httpapi.NewRoomController(roomService, messageService, log),
		Uploads:    httpapi.NewUploadController(uploadService, cfg.Uploads.MaxSize, cfg.Uploads.PublicBaseURL, log),
		RTC:        httpapi.NewRTCController(cfg.WebRTC.ICEServers()),
		Socket:     httpapi.NewSocketController(chatRelay, cfg.Relay, origins, log),
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("http server stopped", sl.Err(err))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// users still connected are stored offline before the database closes
	chatRelay.Shutdown(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}

	if stores.close != nil {
		if err := stores.close(); err != nil {
			log.Error("failed to close database", sl.Err(err))
		}
	}
	log.Info("application stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

type storage struct {
	users    repository.UserRepository
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	close    func() error
}

func openStores(cfg config.DatabaseConfig) (*storage, error) {
	if cfg.Driver == "memory" {
		users := repository.NewInMemoryUserRepository()
		return &storage{
			users:    users,
			rooms:    repository.NewInMemoryRoomRepository(users),
			messages: repository.NewInMemoryMessageRepository(users),
		}, nil
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	return &storage{
		users:    repository.NewGormUserRepository(db),
		rooms:    repository.NewGormRoomRepository(db),
		messages: repository.NewGormMessageRepository(db),
		close:    sqlDB.Close,
	}, nil
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
