package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bunburya/eu-finreg-data/internal/api"
	"github.com/bunburya/eu-finreg-data/internal/config"
	"github.com/bunburya/eu-finreg-data/internal/ingest"
	"github.com/bunburya/eu-finreg-data/internal/logging"
	"github.com/bunburya/eu-finreg-data/internal/lookup"
	"github.com/bunburya/eu-finreg-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/firds.example.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	from := flag.String("from", "", "first publication date (YYYY-MM-DD), overrides ingest.from")
	to := flag.String("to", "", "last publication date (YYYY-MM-DD), overrides ingest.to")
	table := flag.String("table", "", "only run the source writing to this table")
	flag.Parse()

	if err := run(*configPath, *envPath, *from, *to, *table); err != nil {
		slog.Error("ingester failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath, envPath, from, to, table string) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}
	if from != "" {
		cfg.Ingest.From = from
	}
	if to != "" {
		cfg.Ingest.To = to
	}

	logger, err := logging.New(cfg.Log, cfg.Instance.ID, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting ingester",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	jobs, err := ingest.JobsFromConfig(cfg.Ingest)
	if err != nil {
		return err
	}
	if table != "" {
		jobs = selectTable(jobs, table)
	}
	if len(jobs) == 0 {
		return errors.New("no ingest sources to run")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
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

	client := api.NewClient(
		cfg.API.SearchURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
	)

	ingestCfg, err := ingest.NewConfig(cfg)
	if err != nil {
		return err
	}

	summaries, err := ingest.New(ingestCfg, client, store, logger).RunAll(ctx, jobs)
	for _, s := range summaries {
		totals := s.Totals()
		logger.Info("run summary",
			"run_id", s.RunID,
			"table", s.Table,
			"window", s.Window.String(),
			"listed", s.Listed,
			"ingested", len(s.Files),
			"failed", len(s.Failures),
			"inserted", totals.Inserted,
			"conflicts", totals.Conflicts,
			"duration", s.Duration,
		)
		for _, f := range s.Failures {
			logger.Warn("failed file", "run_id", s.RunID, "file", f.FileName, "err", f.Err)
		}
	}
	return err
}

func selectTable(jobs []ingest.Job, table string) []ingest.Job {
	var out []ingest.Job
	for _, j := range jobs {
		if j.Table == table {
			out = append(out, j)
		}
	}
	return out
}
