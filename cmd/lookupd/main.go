package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bunburya/eu-finreg-data/internal/config"
	"github.com/bunburya/eu-finreg-data/internal/gleif"
	"github.com/bunburya/eu-finreg-data/internal/logging"
	"github.com/bunburya/eu-finreg-data/internal/lookup"
	"github.com/bunburya/eu-finreg-data/internal/server"
	"github.com/bunburya/eu-finreg-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/firds.example.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	noEnrich := flag.Bool("no-enrich", false, "ignore enrich=true instead of calling GLEIF")
	flag.Parse()

	if err := run(*configPath, *envPath, *noEnrich); err != nil {
		slog.Error("lookupd failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string, noEnrich bool) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, cfg.Instance.ID, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting lookupd",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	store, err := lookup.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open lookup store: %w", err)
	}
	defer store.Close()

	var enricher server.Enricher
	if !noEnrich {
		enricher = gleif.NewClient(
			cfg.GLEIF.BaseURL,
			gleif.WithLogger(logger),
			gleif.WithTimeout(cfg.GLEIF.Timeout),
			gleif.WithRateLimit(cfg.GLEIF.RequestsPerSecond),
		)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(store, enricher, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting lookup server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("lookup server: %w", err)
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "err", err)
	}

	logger.Info("lookupd stopped")
	return nil
}
