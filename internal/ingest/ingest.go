package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bunburya/eu-finreg-data/internal/api"
	"github.com/bunburya/eu-finreg-data/internal/config"
	"github.com/bunburya/eu-finreg-data/internal/lookup"
	"github.com/bunburya/eu-finreg-data/internal/model"
	"github.com/bunburya/eu-finreg-data/internal/refdata"
)

// Config holds ingester settings.
type Config struct {
	DataDir         string         // Extracted files land here
	PageSize        int            // Search rows per request
	PageConcurrency int            // Search pages fetched in parallel
	Workers         int            // Files processed in parallel
	Lookback        time.Duration  // Window length when no start date is given
	Policy          refdata.Policy // Handling of incomplete records
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:         config.DefaultDataDir,
		PageSize:        config.DefaultPageSize,
		PageConcurrency: config.DefaultPageConcurrency,
		Workers:         config.DefaultWorkers,
		Lookback:        config.DefaultLookback,
		Policy:          refdata.PolicyStrict,
	}
}

// NewConfig builds ingester settings from a loaded configuration.
func NewConfig(c *config.Config) (Config, error) {
	policy, err := refdata.ParsePolicy(c.Ingest.IncompleteRecords)
	if err != nil {
		return Config{}, fmt.Errorf("ingest.incomplete_records: %w", err)
	}
	return Config{
		DataDir:         c.Ingest.DataDir,
		PageSize:        c.API.PageSize,
		PageConcurrency: c.API.PageConcurrency,
		Workers:         c.Ingest.Workers,
		Lookback:        c.Ingest.Lookback,
		Policy:          policy,
	}, nil
}

// Job selects the files to ingest and the table they go to.
type Job struct {
	Table  string
	Filter model.TypeFilter
	From   time.Time // Zero means unset
	To     time.Time // Zero means unset
}

// JobsFromConfig builds one job per configured source.
func JobsFromConfig(c config.IngestConfig) ([]Job, error) {
	from, to, err := c.Window()
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(c.Sources))
	for i, src := range c.Sources {
		if err := lookup.ValidateTableName(src.Table); err != nil {
			return nil, fmt.Errorf("ingest.sources[%d]: %w", i, err)
		}
		filter, err := model.ParseTypeFilter(src.Types)
		if err != nil {
			return nil, fmt.Errorf("ingest.sources[%d]: %w", i, err)
		}
		jobs = append(jobs, Job{Table: src.Table, Filter: filter, From: from, To: to})
	}
	return jobs, nil
}

// FileResult is the outcome of one successfully ingested file.
type FileResult struct {
	FileName string
	Path     string // Extracted document
	Records  int    // Records parsed
	Skipped  int    // Incomplete records dropped under PolicySkipIncomplete
	Stats    lookup.AppendStats
	Duration time.Duration
}

// Failure records a file that could not be ingested.
type Failure struct {
	FileName string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.FileName, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Summary reports a finished run.
type Summary struct {
	RunID    string
	Table    string
	Window   model.TimeWindow
	Listed   int
	Files    []FileResult // In manifest order
	Failures []Failure    // In manifest order
	Duration time.Duration
}

// Totals sums the append stats of all ingested files.
func (s *Summary) Totals() lookup.AppendStats {
	var total lookup.AppendStats
	for _, f := range s.Files {
		total.Add(f.Stats)
	}
	return total
}

// Ingester runs jobs against a search client and a lookup store.
type Ingester struct {
	cfg    Config
	client *api.Client
	store  lookup.Store
	logger *slog.Logger

	now func() time.Time
}

// New creates a new Ingester.
func New(cfg Config, client *api.Client, store lookup.Store, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Ingester{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Run ingests every file matching job. A listing failure aborts the run
// before any download. Per-file failures are collected in the summary and
// joined into the returned error; the summary is non-nil whenever listing
// succeeded.
func (in *Ingester) Run(ctx context.Context, job Job) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := in.logger.With("run_id", runID, "table", job.Table)

	if err := lookup.ValidateTableName(job.Table); err != nil {
		return nil, err
	}

	window, err := model.ResolveWindow(job.From, job.To, in.now(), in.cfg.Lookback)
	if err != nil {
		return nil, err
	}

	logger.Info("ingest started",
		"window", window.String(),
		"days", window.Days(),
		"filter", job.Filter.String(),
		"workers", in.cfg.Workers,
	)

	entries, err := in.client.ListFiles(ctx, api.SearchQuery{
		Window:      window,
		Filter:      job.Filter,
		PageSize:    in.cfg.PageSize,
		Concurrency: in.cfg.PageConcurrency,
	})
	if err != nil {
		logger.Error("listing failed", "err", err)
		return nil, err
	}

	summary := &Summary{
		RunID:  runID,
		Table:  job.Table,
		Window: window,
		Listed: len(entries),
	}

	results := make([]*FileResult, len(entries))
	failures := make([]error, len(entries))

	// Workers write only their own slot.
	var g errgroup.Group
	g.SetLimit(in.cfg.Workers)

	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := in.ingestFile(ctx, job.Table, entry)
			if err != nil {
				logger.Warn("file failed", "file", entry.FileName, "err", err)
				failures[i] = err
				return nil
			}
			logger.Info("file ingested",
				"file", entry.FileName,
				"records", res.Records,
				"inserted", res.Stats.Inserted,
				"conflicts", res.Stats.Conflicts,
				"skipped", res.Skipped,
				"duration", res.Duration,
			)
			results[i] = res
			return nil
		})
	}
	g.Wait()

	var errs []error
	for i, entry := range entries {
		switch {
		case results[i] != nil:
			summary.Files = append(summary.Files, *results[i])
		case failures[i] != nil:
			f := Failure{FileName: entry.FileName, Err: failures[i]}
			summary.Failures = append(summary.Failures, f)
			errs = append(errs, f)
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	summary.Duration = time.Since(start)

	totals := summary.Totals()
	logger.Info("ingest finished",
		"listed", summary.Listed,
		"ingested", len(summary.Files),
		"failed", len(summary.Failures),
		"inserted", totals.Inserted,
		"conflicts", totals.Conflicts,
		"duration", summary.Duration,
	)

	return summary, errors.Join(errs...)
}

// ingestFile fetches, parses and stores one file.
func (in *Ingester) ingestFile(ctx context.Context, table string, entry model.ManifestEntry) (*FileResult, error) {
	start := time.Now()

	path, err := in.client.FetchArchive(ctx, entry.DownloadURL, in.cfg.DataDir)
	if err != nil {
		return nil, err
	}

	parsed, err := refdata.ParseFile(ctx, path, in.cfg.Policy)
	if err != nil {
		return nil, err
	}

	stats, err := in.store.Append(ctx, table, parsed.Records)
	if err != nil {
		return nil, err
	}

	return &FileResult{
		FileName: entry.FileName,
		Path:     path,
		Records:  len(parsed.Records),
		Skipped:  parsed.Skipped,
		Stats:    stats,
		Duration: time.Since(start),
	}, nil
}

// RunAll runs jobs in order. Every job runs even if an earlier one failed,
// unless ctx is cancelled.
func (in *Ingester) RunAll(ctx context.Context, jobs []Job) ([]*Summary, error) {
	var (
		summaries []*Summary
		errs      []error
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary, err := in.Run(ctx, job)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", job.Table, err))
		}
	}
	return summaries, errors.Join(errs...)
}
