package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/revittco/anibridge/internal/analytics"
	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/api"
	"github.com/revittco/anibridge/internal/gateway"
	"github.com/revittco/anibridge/internal/provider"
	"github.com/revittco/anibridge/internal/provider/anidb"
	"github.com/revittco/anibridge/internal/resilience"
	"github.com/revittco/anibridge/internal/secrets"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

const userAgent = "anibridge/0.1.0"

func cmdServe(args []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cfg, args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	enc := buildEncryptor(cfg)
	resolveAniDBClient(ctx, cfg, secrets.NewManager(db, enc))
	if cfg.AniDBClient == "" {
		return fmt.Errorf("anidb client name not configured: set ANIBRIDGE_ANIDB_CLIENT, anidb.client in %s, or run `anibridge credential set anidb client <name>`", cfg.ConfigFile)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := resilience.NewMetrics(promReg)

	cache := anicache.New(anicache.Config{
		MaxEntries: cfg.CacheMaxEntries,
		MemoryTTL:  cfg.CacheMemoryTTL,
	}, db, logger)
	defer cache.Close()

	spacing := cfg.RequestSpacing
	if spacing <= 0 {
		spacing = 2 * time.Second // AniDB's published client policy
	}
	pacer := resilience.NewPacer(spacing)
	transport := resilience.NewHTTPTransport(30*time.Second, userAgent)
	client := resilience.NewClient("anidb", resilience.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}, pacer, metrics, logger)
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
	}, metrics)
	group := resilience.NewGroup(resilience.GroupConfig{}, cache, client, breakers, metrics, logger)

	anidbCfg := cfg.anidbConfig()
	prov, err := anidb.New(anidbCfg, db, group, transport, logger)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry()
	if err := registry.Register(prov); err != nil {
		return err
	}

	recorder := analytics.NewRecorder(db, 256, logger)
	defer recorder.Close()

	gw := gateway.NewServer(registry, cache, recorder, logger)
	sweeper := anicache.NewSweeper(cache, cfg.SweepInterval, logger)
	retention := analytics.NewRetention(db, cfg.AnalyticsRetention, 0, logger)
	titles := anidb.NewTitlesUpdater(anidbCfg, db, transport, logger)

	logger.Info("starting anibridge", "db", cfg.DBPath, "providers", []string{prov.Name()})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Gateway exit (stdin closed) stops the background loops too.
		defer cancel()
		return gw.RunStdio(gctx)
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return retention.Run(gctx) })
	g.Go(func() error { return refreshTitles(gctx, titles, logger) })

	if cfg.AdminAddr != "" {
		router := api.NewRouter(api.RouterDeps{
			Cache:    cache,
			Store:    db,
			Registry: registry,
			Metrics:  promReg,
		})
		g.Go(func() error { return runAdmin(gctx, cfg.AdminAddr, router) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applyFlags parses --flag=value overrides from the args list.
func applyFlags(cfg *Config, args []string) {
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--admin="):
			cfg.AdminAddr = strings.TrimPrefix(arg, "--admin=")
		case strings.HasPrefix(arg, "--db="):
			cfg.DBPath = strings.TrimPrefix(arg, "--db=")
		case strings.HasPrefix(arg, "--log-level="):
			cfg.LogLevel = parseLogLevel(strings.TrimPrefix(arg, "--log-level="))
		}
	}
}

// buildEncryptor loads the configured age key, auto-generating a persistent
// one next to the DB when none is configured.
func buildEncryptor(cfg *Config) *secrets.AgeEncryptor {
	if cfg.AgeKeyPath != "" {
		enc, err := secrets.NewAgeEncryptor(cfg.AgeKeyPath)
		if err == nil {
			return enc
		}
		slog.Warn("failed to load configured age key, falling back to auto key",
			"path", cfg.AgeKeyPath, "error", err)
	}

	keyPath := cfg.DBPath + ".age"
	enc, err := secrets.EnsureKeyFile(keyPath)
	if err != nil {
		slog.Warn("failed to create auto key file, falling back to ephemeral",
			"path", keyPath, "error", err)
		enc, _ = secrets.NewEphemeralEncryptor()
		return enc
	}
	return enc
}

// resolveAniDBClient fills the client registration from stored credentials
// when neither the environment nor the config file provides it.
func resolveAniDBClient(ctx context.Context, cfg *Config, sm *secrets.Manager) {
	if cfg.AniDBClient == "" {
		if v, err := sm.Get(ctx, "anidb", "client"); err == nil {
			cfg.AniDBClient = v
		}
	}
	if cfg.AniDBClientVersion == 0 {
		if v, err := sm.Get(ctx, "anidb", "clientver"); err == nil {
			if n, perr := strconv.Atoi(v); perr == nil {
				cfg.AniDBClientVersion = n
			}
		}
	}
}

// refreshTitles keeps the local title index current: one attempt at startup,
// then periodic retries. Attempts inside the download window are not errors.
func refreshTitles(ctx context.Context, updater *anidb.TitlesUpdater, logger *slog.Logger) error {
	attempt := func() {
		n, err := updater.Update(ctx, false)
		if err != nil {
			var limited *anidb.RefreshLimitedError
			switch {
			case errors.As(err, &limited):
				logger.Debug("title index is fresh", "next_allowed", limited.NextAllowed)
			case ctx.Err() != nil:
			default:
				logger.Warn("titles refresh failed", "error", err)
			}
			return
		}
		logger.Info("title index refreshed", "titles", n)
	}

	attempt()

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			attempt()
		}
	}
}

func runAdmin(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down admin server")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
