// Glow Notes server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glownotes/glownotes/internal/board"
	"github.com/glownotes/glownotes/internal/config"
	"github.com/glownotes/glownotes/internal/obs"
	"github.com/glownotes/glownotes/internal/ratelimit"
	"github.com/glownotes/glownotes/internal/store"
	"github.com/glownotes/glownotes/internal/web"
)

func main() {
	obs.Init()
	log := obs.Pkg("main")

	backend, addr := config.ParseFlags()
	cfg, err := config.LoadConfig(backend, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("open store failed", "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error("store close failed", "err", err)
		}
	}()

	notices := web.NewNoticeHub()
	b := board.New(st, notices)
	go func() {
		if err := b.Run(ctx); err != nil {
			log.Error("board subscription loop exited", "err", err)
			stop()
		}
	}()

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	web.NewHandler(b, notices).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = ratelimit.RateLimitMiddleware(limiter, ratelimit.ClientKeyFromRequest)(handler)
	handler = obs.AccessLogMiddleware("http", handler)
	handler = obs.RequestContextMiddleware(handler)

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the event stream holds its response open.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}
}

// openStore builds the storage backend selected by configuration.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return store.OpenMongo(ctx, store.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			Timeout:    cfg.MongoTimeout,
		})
	case config.BackendSQLite:
		return store.OpenSQLite(ctx, cfg.DatabasePath)
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
