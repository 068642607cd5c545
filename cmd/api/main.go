package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"

	"bankcore/pkg/auth"
	"bankcore/pkg/config"
	"bankcore/pkg/store"
)

func setupLogger(level string) *slog.Logger {
	logLevel, err := charmlog.ParseLevel(level)
	if err != nil {
		logLevel = charmlog.InfoLevel
	}
	handler := charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		ReportTimestamp: true,
		Level:           logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// withTimeout bounds every request so no operation can block
// indefinitely on a locked transaction.
func withTimeout(budget time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), budget)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		charmlog.Fatal("failed to load config", "error", err)
	}
	logger := setupLogger(cfg.LogLevel)

	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()
	logger.Info("database connection established", "path", cfg.DBPath)

	tokens := auth.New(cfg.JWTSecret, cfg.TokenExpiry)
	server := NewServer(sqliteStore, tokens, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodically mature investments whose term has elapsed.
	go func() {
		ticker := time.NewTicker(cfg.MatureEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := server.ledger.MatureDueInvestments(ctx)
				if err != nil {
					logger.Error("maturity sweep failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("maturity sweep complete", "matured", n)
				}
			}
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: withTimeout(cfg.RequestBudget, server.Router()),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
