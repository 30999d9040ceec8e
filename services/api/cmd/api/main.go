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
	"time"

	"golang.org/x/sync/errgroup"

	"arview/internal/keepalive"
	"arview/internal/util"
	"arview/pkg/queue"
	"arview/pkg/storage"
	"arview/pkg/store"
	"arview/services/api/internal/app"
	"arview/services/api/internal/config"
	"arview/services/api/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	objects, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword, "arview:revoked")
	defer revoker.Close()
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.TokenTTL(), revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	cleanup, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.CleanupStream,
		Group:    "asset-cleanup",
	})
	if err != nil {
		return fmt.Errorf("init cleanup queue: %w", err)
	}
	defer cleanup.Close()

	appCore, err := app.New(app.Config{
		Store:          db,
		Sessions:       sessions,
		Objects:        objects,
		Cleanup:        cleanup,
		FrontendURL:    cfg.FrontendURL,
		PublicAssetURL: cfg.PublicAssetURL,
		PresignExpiry:  cfg.PresignTTL(),
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		TokenName:                  cfg.JWTTokenName,
		SecureCookies:              cfg.IsProduction(),
		CORSOrigins:                cfg.CORSOrigins,
		TrustedProxies:             cfg.TrustedProxies,
		ScanRateLimitPerMinute:     cfg.ScanRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	defer httpServer.Close()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server listening", "addr", addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("api server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return cleanup.Run(gctx, cfg.CleanupConcurrency, appCore.CleanupHandler())
	})
	if cfg.KeepAliveURL != "" {
		pinger := keepalive.New(cfg.KeepAliveURL, cfg.KeepAlivePeriod(), nil)
		g.Go(func() error {
			return pinger.Run(gctx)
		})
	}
	return g.Wait()
}
