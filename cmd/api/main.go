package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-api/internal/config"
	"storefront-api/internal/db"
	"storefront-api/internal/gateway"
	"storefront-api/internal/httpserver"
	"storefront-api/internal/provider"
	cartmirrorrepo "storefront-api/internal/repository/cartmirror"
	sessioncacherepo "storefront-api/internal/repository/sessioncache"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	if cfg.Mode != config.ModeDevelopment && cfg.BaseURL() == "" {
		logger.Fatalf("no provider base URL configured: set API_BASE_URL (or SITE_URL / PAGE_ORIGIN)")
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	gw := gateway.New(cfg, logger)
	providerClient := provider.New(gw, os.Getenv("PROVIDER_API_KEY"), logger)
	mirrorRepo := cartmirrorrepo.NewPostgres(dbpool, logger)
	cacheRepo := sessioncacherepo.NewPostgres(dbpool)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Auth:         providerClient,
		Catalog:      providerClient,
		CartMirror:   mirrorRepo,
		SessionCache: cacheRepo,
	}, cfg.AllowedOrigins)
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
