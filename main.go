package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/tomasmach/fishie/bot"
	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/commands"
	"github.com/tomasmach/fishie/config"
	"github.com/tomasmach/fishie/jobs"
	"github.com/tomasmach/fishie/logstore"
	"github.com/tomasmach/fishie/media"
	"github.com/tomasmach/fishie/metrics"
	"github.com/tomasmach/fishie/pokemon"
	"github.com/tomasmach/fishie/reporter"
	"github.com/tomasmach/fishie/store"
	"github.com/tomasmach/fishie/web"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var testing bool
	flag.BoolVar(&testing, "testing", false, "Use the testing token, database and prefix")
	flag.BoolVar(&testing, "t", false, "Shorthand for -testing")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	setupLogger(os.Stderr, *logLevel, *logFormat, nil)

	if err := config.LoadEnv(".env"); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}

	// Config path: --config flag > FISHIE_CONFIG env > default
	cfgPath := config.Resolve()
	if *configPath != "" {
		cfgPath = *configPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	slog.Info("config loaded", "path", cfgPath, "testing", testing)

	logs, err := logstore.Open(cfg.Databases.LogsPath)
	if err != nil {
		slog.Error("failed to open log store", "error", err, "path", cfg.Databases.LogsPath)
		os.Exit(1)
	}
	defer logs.Close()
	setupLogger(os.Stderr, *logLevel, *logFormat, logs)

	if err := run(cfg, logs, testing); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func run(cfg *config.Config, logs *logstore.Store, testing bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	logger := slog.Default()

	token, err := cfg.Token(testing)
	if err != nil {
		return err
	}
	dsn, err := cfg.DSN(testing)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connected")

	settings := cache.New()
	if err := cache.Populate(ctx, settings, db, logger); err != nil {
		return err
	}
	metrics.TrackCacheEntries(settings.Len)

	session, err := bot.NewSession(token)
	if err != nil {
		return err
	}

	rep, err := reporter.New(session, cfg.Webhooks.ErrorLogs, logger.With("component", "reporter"))
	if err != nil {
		return err
	}

	downloads := media.New(media.Options{
		ProxyURL:     cfg.Downloads.ProxyURL,
		Dir:          cfg.Downloads.Dir,
		Cookies:      cfg.Downloads.Cookies,
		YTDLP:        cfg.Downloads.YTDLP,
		MaxFileSize:  cfg.Downloads.MaxFileSize,
		Logger:       logger.With("component", "media"),
		LitterboxURL: cfg.APIs.Litterbox,
	})

	names := pokemon.New(&http.Client{Timeout: pokemon.DefaultTimeout}, cfg.APIs.PokemonCSV)
	if n, err := names.Refresh(ctx); err != nil {
		slog.Warn("failed to load pokemon list, hints will go unanswered until the next refresh", "error", err)
	} else {
		slog.Info("pokemon list loaded", "names", n)
	}

	handler := commands.New(commands.Options{
		Session:  session,
		State:    session.State,
		Store:    db,
		Cache:    settings,
		Media:    downloads,
		Config:   cfg,
		Reporter: rep,
		Logger:   logger.With("component", "commands"),
		Testing:  testing,
		Started:  time.Now(),
	})

	b := bot.New(bot.Options{
		Gateway:  session,
		Store:    db,
		Cache:    settings,
		Commands: handler,
		Images:   downloads,
		Pokemon:  names,
		Config:   cfg,
		Reporter: rep,
		Logger:   logger.With("component", "bot"),
	})

	scheduler, err := jobs.New(jobs.Options{
		Pokemon:   names,
		Downloads: downloads,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	srv := web.New(cfg.Web.Addr, web.Options{
		Store:  db,
		Logs:   logs,
		Cache:  settings,
		Logger: logger.With("component", "web"),
	})

	if err := b.Start(ctx); err != nil {
		return err
	}
	slog.Info("bot started")
	scheduler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("web server listening", "addr", cfg.Web.Addr)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.Stop(); err != nil {
			slog.Warn("failed to close gateway", "error", err)
		}
		scheduler.Stop(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// setupLogger installs the default logger. With a log store every record is
// also kept for the operator log endpoint.
func setupLogger(w io.Writer, level, format string, logs *logstore.Store) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})
	} else {
		h = tint.NewHandler(w, &tint.Options{Level: l, TimeFormat: time.DateTime})
	}
	if logs != nil {
		h = logstore.NewHandler(h, logs)
	}
	slog.SetDefault(slog.New(h))
}
