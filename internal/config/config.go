// SPDX-License-Identifier: MIT

// Package config loads the abel service configuration with the precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Store backends for the basis cache.
const (
	StoreDisk   = "disk"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// AppConfig is the resolved configuration of the daemon and CLI.
type AppConfig struct {
	// Paths
	DataDir  string // root data directory
	BasisDir string // basis cache directory (disk backend)

	// Server
	ListenAddr   string
	APIToken     string // empty disables authentication
	RateLimitRPM int    // requests per minute per client IP, 0 disables

	// Logging
	LogLevel string

	// Basis store
	StoreBackend  string // disk | badger | redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BasisMemTTL   time.Duration // in-process basis cache TTL

	// Transform defaults
	DefaultMethod string
	PixelSize     float64
	MaxFrameSize  int // upper bound on basis frames the API will generate

	// Jobs
	JobWorkers int // 0 = number of CPUs
	JobTTL     time.Duration
	SQLitePath string // job history database, empty disables history

	// Inbox watcher
	WatchEnabled bool
	InboxDir     string
	OutboxDir    string
	WatchSettle  time.Duration // quiet period before a new file is picked up
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:       "/var/lib/abel",
		ListenAddr:    ":8686",
		RateLimitRPM:  120,
		LogLevel:      "info",
		StoreBackend:  StoreDisk,
		RedisAddr:     "localhost:6379",
		BasisMemTTL:   30 * time.Minute,
		DefaultMethod: "basex",
		PixelSize:     1.0,
		MaxFrameSize:  2001,
		JobTTL:        time.Hour,
		WatchSettle:   2 * time.Second,
	}
}

// mergeEnv overlays ABEL_* environment variables onto cfg.
func mergeEnv(cfg AppConfig) AppConfig {
	cfg.DataDir = ParseString("ABEL_DATA", cfg.DataDir)
	cfg.BasisDir = ParseString("ABEL_BASIS_DIR", cfg.BasisDir)
	cfg.ListenAddr = ParseString("ABEL_LISTEN", cfg.ListenAddr)
	cfg.APIToken = ParseString("ABEL_API_TOKEN", cfg.APIToken)
	cfg.RateLimitRPM = ParseInt("ABEL_RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.LogLevel = ParseString("ABEL_LOG_LEVEL", cfg.LogLevel)
	cfg.StoreBackend = ParseString("ABEL_BASIS_STORE", cfg.StoreBackend)
	cfg.RedisAddr = ParseString("ABEL_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("ABEL_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("ABEL_REDIS_DB", cfg.RedisDB)
	cfg.BasisMemTTL = ParseDuration("ABEL_BASIS_MEM_TTL", cfg.BasisMemTTL)
	cfg.DefaultMethod = ParseString("ABEL_METHOD", cfg.DefaultMethod)
	cfg.PixelSize = ParseFloat("ABEL_PIXEL_SIZE", cfg.PixelSize)
	cfg.MaxFrameSize = ParseInt("ABEL_MAX_FRAME", cfg.MaxFrameSize)
	cfg.JobWorkers = ParseInt("ABEL_JOB_WORKERS", cfg.JobWorkers)
	cfg.JobTTL = ParseDuration("ABEL_JOB_TTL", cfg.JobTTL)
	cfg.SQLitePath = ParseString("ABEL_HISTORY_DB", cfg.SQLitePath)
	cfg.WatchEnabled = ParseBool("ABEL_WATCH", cfg.WatchEnabled)
	cfg.InboxDir = ParseString("ABEL_INBOX", cfg.InboxDir)
	cfg.OutboxDir = ParseString("ABEL_OUTBOX", cfg.OutboxDir)
	cfg.WatchSettle = ParseDuration("ABEL_WATCH_SETTLE", cfg.WatchSettle)
	return cfg
}

// normalize fills derived defaults that depend on other fields.
func normalize(cfg AppConfig) AppConfig {
	if cfg.BasisDir == "" {
		cfg.BasisDir = filepath.Join(cfg.DataDir, "basis")
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg
}

// Validate reports the first invalid field.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	switch c.StoreBackend {
	case StoreDisk, StoreBadger, StoreRedis:
	default:
		return fmt.Errorf("unknown basis store backend %q (want %s, %s or %s)",
			c.StoreBackend, StoreDisk, StoreBadger, StoreRedis)
	}
	if c.StoreBackend == StoreRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis basis store requires ABEL_REDIS_ADDR")
	}
	if c.PixelSize <= 0 {
		return fmt.Errorf("pixel size must be positive, got %g", c.PixelSize)
	}
	if c.MaxFrameSize < 3 {
		return fmt.Errorf("max frame size must be at least 3, got %d", c.MaxFrameSize)
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimitRPM)
	}
	if c.JobWorkers < 0 {
		return fmt.Errorf("job workers must not be negative, got %d", c.JobWorkers)
	}
	if c.WatchEnabled {
		if strings.TrimSpace(c.InboxDir) == "" || strings.TrimSpace(c.OutboxDir) == "" {
			return fmt.Errorf("inbox watching requires ABEL_INBOX and ABEL_OUTBOX")
		}
		if c.InboxDir == c.OutboxDir {
			return fmt.Errorf("inbox and outbox must be different directories")
		}
	}
	return nil
}
