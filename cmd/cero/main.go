package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"cero/internal/config"
	"cero/internal/database"
	"cero/internal/logging"
	"cero/internal/server"
)

func main() {
	flags := pflag.NewFlagSet("cero", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Cero\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [config.yaml [secrets.yaml]]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Configuration and secrets files are optional; built-in defaults\n")
		fmt.Fprintf(os.Stderr, "and CERO_* environment variables apply otherwise.\n\n")
		flags.PrintDefaults()
	}
	help := flags.BoolP("help", "h", false, "print usage and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *help {
		flags.Usage()
		os.Exit(0)
	}

	var configPath, secretsPath string
	if args := flags.Args(); len(args) > 0 {
		configPath = args[0]
		if len(args) > 1 {
			secretsPath = args[1]
		}
	}

	cfg, err := config.Load(configPath, secretsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database initialized", "path", cfg.DatabasePath)

	srv := server.New(db, cfg, logger)

	if err := srv.EnsureBootstrapAdmin(); err != nil {
		logger.Error("bootstrap admin", "error", err)
		os.Exit(1)
	}

	// Startup sweep; validation enforces the windows itself, so this is
	// housekeeping only.
	if n, err := srv.SessionManager().Sweep(time.Now().UTC()); err != nil {
		logger.Error("startup session sweep", "error", err)
	} else if n > 0 {
		logger.Info("cleaned up expired sessions", "count", n)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionManager().Sweep(time.Now().UTC()); err != nil {
					logger.Error("session sweep", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
