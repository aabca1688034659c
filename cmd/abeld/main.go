// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/photonlab/abel/internal/api"
	"github.com/photonlab/abel/internal/basis"
	"github.com/photonlab/abel/internal/config"
	"github.com/photonlab/abel/internal/health"
	"github.com/photonlab/abel/internal/jobs"
	abellog "github.com/photonlab/abel/internal/log"
	"github.com/photonlab/abel/internal/transform"
	"github.com/photonlab/abel/internal/version"
	"github.com/photonlab/abel/internal/watch"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the real config is loaded.
	abellog.Configure(abellog.Config{
		Level:   "info",
		Service: "abel",
		Version: version.Version,
	})
	logger := abellog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via --config, otherwise ${ABEL_DATA}/config.yaml
	// when it exists.
	effectivePath := strings.TrimSpace(*configPath)
	if effectivePath == "" {
		dataDir := strings.TrimSpace(config.ParseString("ABEL_DATA", "/var/lib/abel"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectivePath = autoPath
		}
	}

	cfg, err := config.NewLoader(effectivePath).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	abellog.SetLevel(cfg.LogLevel)

	if effectivePath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectivePath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("addr", cfg.ListenAddr).
		Msg("starting abeld")
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Basis store: %s (%s)", cfg.StoreBackend, cfg.BasisDir)
	logger.Info().Msgf("→ Default method: %s (dr=%g)", cfg.DefaultMethod, cfg.PixelSize)
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else {
		logger.Warn().Msg("→ API token: NOT configured (auth disabled). Set ABEL_API_TOKEN for security.")
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "store.open_failed").
			Str("backend", cfg.StoreBackend).
			Msg("failed to open basis store")
	}
	defer closeStore()

	reg := transform.DefaultRegistry(store)

	var history jobs.History
	if cfg.SQLitePath != "" {
		history, err = jobs.OpenHistory(cfg.SQLitePath)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "history.open_failed").
				Str("path", cfg.SQLitePath).
				Msg("failed to open job history database")
		}
		defer func() { _ = history.Close() }()
	}

	manager := jobs.NewManager(reg, jobs.Options{
		Workers: cfg.JobWorkers,
		TTL:     cfg.JobTTL,
		History: history,
	})
	defer manager.Close()

	healthM := health.NewManager(version.Version)
	healthM.RegisterChecker(health.BasisDirChecker{Dir: cfg.BasisDir})
	healthM.RegisterChecker(health.StoreChecker{Store: store})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(cfg, reg, store, manager, history, healthM).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.WatchEnabled {
		watcher, err := watch.New(cfg, reg)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "watch.setup_failed").
				Msg("failed to set up inbox watcher")
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}
	logger.Info().Msg("server exiting")
}

// buildStore opens the configured basis backend and wraps it with the
// in-memory cache.
func buildStore(cfg config.AppConfig) (basis.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.StoreDisk:
		s, err := basis.NewDiskStore(cfg.BasisDir)
		if err != nil {
			return nil, noop, err
		}
		return basis.NewMemoryCache(s, cfg.BasisMemTTL), noop, nil
	case config.StoreBadger:
		s, err := basis.OpenBadgerStore(filepath.Join(cfg.BasisDir, "badger"))
		if err != nil {
			return nil, noop, err
		}
		return basis.NewMemoryCache(s, cfg.BasisMemTTL), func() { _ = s.Close() }, nil
	case config.StoreRedis:
		s, err := basis.NewRedisStore(basis.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, abellog.WithComponent("redis"))
		if err != nil {
			return nil, noop, err
		}
		return basis.NewMemoryCache(s, cfg.BasisMemTTL), func() { _ = s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown basis store backend %q", cfg.StoreBackend)
	}
}
