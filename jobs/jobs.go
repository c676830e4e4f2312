// Package jobs runs the bot's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultPokemonSpec = "@daily"
	DefaultSweepSpec   = "@hourly"
	DefaultMaxAge      = 72 * time.Hour

	jobTimeout = 2 * time.Minute
)

// Refresher reloads a remote list, returning how many entries it now holds.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Sweeper removes leftover downloads older than maxAge.
type Sweeper interface {
	SweepStale(maxAge time.Duration) (int, error)
}

// Options configures the scheduler. A nil Pokemon or Downloads skips the
// matching job; empty specs use the defaults.
type Options struct {
	Pokemon     Refresher
	Downloads   Sweeper
	PokemonSpec string
	SweepSpec   string
	MaxAge      time.Duration
	Logger      *slog.Logger
}

type Scheduler struct {
	cron      *cron.Cron
	pokemon   Refresher
	downloads Sweeper
	maxAge    time.Duration
	logger    *slog.Logger
	ctx       context.Context
}

func New(opts Options) (*Scheduler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "jobs")
	cl := cronLogger{logger}

	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		pokemon:   opts.Pokemon,
		downloads: opts.Downloads,
		maxAge:    opts.MaxAge,
		logger:    logger,
		ctx:       context.Background(),
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultMaxAge
	}

	if s.pokemon != nil {
		spec := opts.PokemonSpec
		if spec == "" {
			spec = DefaultPokemonSpec
		}
		if _, err := s.cron.AddFunc(spec, s.refreshPokemon); err != nil {
			return nil, err
		}
	}
	if s.downloads != nil {
		spec := opts.SweepSpec
		if spec == "" {
			spec = DefaultSweepSpec
		}
		if _, err := s.cron.AddFunc(spec, s.sweepDownloads); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the schedule in the background. Jobs derive their context from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}

func (s *Scheduler) refreshPokemon() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()
	n, err := s.pokemon.Refresh(ctx)
	if err != nil {
		s.logger.Warn("pokemon list refresh failed, keeping previous list", "error", err)
		return
	}
	s.logger.Info("pokemon list refreshed", "names", n)
}

func (s *Scheduler) sweepDownloads() {
	n, err := s.downloads.SweepStale(s.maxAge)
	if err != nil {
		s.logger.Error("download sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("removed stale downloads", "count", n)
	}
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
