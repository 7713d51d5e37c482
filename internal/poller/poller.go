package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/Leganyst/platform-tracker/internal/departure"
	"github.com/Leganyst/platform-tracker/internal/metrics"
	"github.com/Leganyst/platform-tracker/internal/service"
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]departure.RawUpdate, error)
}

type Ingester interface {
	IngestAll(ctx context.Context, raws []departure.RawUpdate) (service.IngestSummary, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

type Config struct {
	PollSchedule  string
	SweepSchedule string
	Location      *time.Location
	// Upper bound on one poll or sweep.
	JobTimeout time.Duration
	// Poll once as soon as Run starts instead of waiting for the first tick.
	PollOnStart bool
	Clock       clockwork.Clock
}

// Poller runs the poll and retention jobs. Each job is skipped while its
// previous run is still going, so at most one poll writes at a time.
type Poller struct {
	cron     *cron.Cron
	fetcher  Fetcher
	ingester Ingester
	sweeper  Sweeper
	log      *slog.Logger
	clock    clockwork.Clock
	cfg      Config

	ctx context.Context
}

func New(cfg Config, fetcher Fetcher, ingester Ingester, sweeper Sweeper, log *slog.Logger) (*Poller, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	cl := cronLogger{log: log.With("component", "cron")}
	p := &Poller{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		fetcher:  fetcher,
		ingester: ingester,
		sweeper:  sweeper,
		log:      log,
		clock:    cfg.Clock,
		cfg:      cfg,
		ctx:      context.Background(),
	}

	if fetcher != nil && ingester != nil && cfg.PollSchedule != "" {
		if _, err := p.cron.AddFunc(cfg.PollSchedule, p.pollJob); err != nil {
			return nil, fmt.Errorf("poll schedule %q: %w", cfg.PollSchedule, err)
		}
	}
	if sweeper != nil && cfg.SweepSchedule != "" {
		if _, err := p.cron.AddFunc(cfg.SweepSchedule, p.sweepJob); err != nil {
			return nil, fmt.Errorf("sweep schedule %q: %w", cfg.SweepSchedule, err)
		}
	}
	return p, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (p *Poller) Run(ctx context.Context) error {
	p.ctx = ctx
	p.log.Info("scheduler starting",
		"poll_schedule", p.cfg.PollSchedule,
		"sweep_schedule", p.cfg.SweepSchedule,
		"jobs", len(p.cron.Entries()),
	)

	if p.cfg.PollOnStart && p.fetcher != nil && p.ingester != nil {
		p.pollJob()
	}

	p.cron.Start()
	<-ctx.Done()

	p.log.Info("scheduler stopping")
	<-p.cron.Stop().Done()
	return nil
}

// PollOnce fetches the feed and ingests it. Upstream failures ingest nothing.
func (p *Poller) PollOnce(ctx context.Context) (service.IngestSummary, error) {
	runID := uuid.New()
	log := p.log.With("run_id", runID.String())
	start := p.clock.Now()

	updates, err := p.fetcher.Fetch(ctx)
	if err != nil {
		metrics.PollsTotal.WithLabelValues(metrics.ResultError).Inc()
		log.Warn("upstream unavailable", "error", err)
		return service.IngestSummary{}, err
	}

	sum, err := p.ingester.IngestAll(ctx, updates)
	metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		metrics.PollsTotal.WithLabelValues(metrics.ResultError).Inc()
		log.Error("poll finished with errors", "error", err,
			"received", sum.Received, "appended", sum.Appended, "failed", sum.Failed)
		return sum, err
	}

	metrics.PollsTotal.WithLabelValues(metrics.ResultOK).Inc()
	log.Info("poll finished",
		"received", sum.Received,
		"appended", sum.Appended,
		"unchanged", sum.Unchanged,
		"failed", sum.Failed,
	)
	return sum, nil
}

func (p *Poller) pollJob() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
	defer cancel()
	_, _ = p.PollOnce(ctx)
}

func (p *Poller) sweepJob() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
	defer cancel()
	if _, err := p.sweeper.Sweep(ctx); err != nil {
		p.log.Error("retention sweep failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
