package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hd-notes/notes-api/internal/application/otp"
	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
	"github.com/hd-notes/notes-api/internal/infrastructure/logging"
	"github.com/hd-notes/notes-api/internal/infrastructure/mailer"
	"github.com/hd-notes/notes-api/internal/infrastructure/postgres"
	transporthttp "github.com/hd-notes/notes-api/internal/transport/http"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := jwtinfra.NewProvider(cfg.JWT)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	deps.Tokens = tokens

	m, err := mailer.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	sender, err := mailer.NewCodeSender(m, cfg.OTP.TTL)
	if err != nil {
		return fmt.Errorf("code sender: %w", err)
	}
	deps.Dispatcher = sender
	deps.Log = logger

	go otp.NewSweeper(deps.CodeRepo, cfg.OTP.SweepInterval, logger).Run(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.Store.Driver),
			zap.String("mail", cfg.Mail.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStores builds the user, code and note repositories for cfg.Store.Driver.
// The returned func releases the underlying connection.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*transporthttp.Deps, func(), error) {
	switch cfg.Store.Driver {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.Dynamo, logger)
		return &transporthttp.Deps{
			UserRepo: dynamo.NewUserRepo(client, cfg.Dynamo.Users),
			CodeRepo: dynamo.NewCodeRepo(client, cfg.Dynamo.Codes),
			NoteRepo: dynamo.NewNoteRepo(client, cfg.Dynamo.Notes),
		}, func() {}, nil
	default:
		db, err := postgres.Open(cfg.Store.Driver, cfg.Database.DSN, cfg.Database.AutoMigrate)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if err := postgres.Close(db); err != nil {
				logger.Warn("close database", zap.Error(err))
			}
		}
		return &transporthttp.Deps{
			UserRepo: postgres.NewUserRepo(db),
			CodeRepo: postgres.NewCodeRepo(db),
			NoteRepo: postgres.NewNoteRepo(db),
		}, closeDB, nil
	}
}
