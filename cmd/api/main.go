package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpx "github.com/splax/crate/internal/http"
	"github.com/splax/crate/internal/service/auth"
	"github.com/splax/crate/internal/service/item"
	"github.com/splax/crate/pkg/config"
	"github.com/splax/crate/pkg/crypto"
	"github.com/splax/crate/pkg/logger"
	"github.com/splax/crate/pkg/token"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails. Everything it opens
// is released before it returns.
func run(ctx context.Context, cfg config.APIConfig, log *slog.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer store.Close()

	codec := token.New(cfg.SignKey, cfg.TokenTTL)
	authSvc := auth.New(store, crypto.NewHasher(cfg.HashRounds), codec, log)
	itemSvc := item.New(store, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, itemSvc, httpx.Options{
		Limiter: limiter,
		Health:  store.Ping,
		DocsDir: cfg.DocsDir,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting",
			"addr", cfg.Addr(),
			"url", cfg.APIURL,
			"env", cfg.Environment,
			"store", cfg.StoreDriver,
			"token_ttl", cfg.TokenTTL.String(),
		)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("api server stopped")
		return nil
	case err := <-errorCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
