// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of the optional config file. Every field is a
// pointer so that absent keys keep their default.
type fileConfig struct {
	DataDir  *string `yaml:"dataDir"`
	BasisDir *string `yaml:"basisDir"`

	Server struct {
		Listen       *string `yaml:"listen"`
		APIToken     *string `yaml:"apiToken"`
		RateLimitRPM *int    `yaml:"rateLimitRPM"`
	} `yaml:"server"`

	LogLevel *string `yaml:"logLevel"`

	Basis struct {
		Store         *string        `yaml:"store"`
		RedisAddr     *string        `yaml:"redisAddr"`
		RedisPassword *string        `yaml:"redisPassword"`
		RedisDB       *int           `yaml:"redisDB"`
		MemTTL        *time.Duration `yaml:"memTTL"`
	} `yaml:"basis"`

	Transform struct {
		Method       *string  `yaml:"method"`
		PixelSize    *float64 `yaml:"pixelSize"`
		MaxFrameSize *int     `yaml:"maxFrameSize"`
	} `yaml:"transform"`

	Jobs struct {
		Workers   *int           `yaml:"workers"`
		TTL       *time.Duration `yaml:"ttl"`
		HistoryDB *string        `yaml:"historyDB"`
	} `yaml:"jobs"`

	Watch struct {
		Enabled *bool          `yaml:"enabled"`
		Inbox   *string        `yaml:"inbox"`
		Outbox  *string        `yaml:"outbox"`
		Settle  *time.Duration `yaml:"settle"`
	} `yaml:"watch"`
}

// Loader resolves the effective configuration from defaults, an optional
// YAML file and the environment.
type Loader struct {
	path string // optional config file path
}

// NewLoader returns a loader for the optional config file at path. An empty
// path skips the file layer.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.path != "" {
		fc, err := readFile(l.path)
		if err != nil {
			return AppConfig{}, err
		}
		cfg = mergeFile(cfg, fc)
	}

	cfg = mergeEnv(cfg)
	cfg = normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func mergeFile(cfg AppConfig, fc *fileConfig) AppConfig {
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.BasisDir, fc.BasisDir)
	setString(&cfg.ListenAddr, fc.Server.Listen)
	setString(&cfg.APIToken, fc.Server.APIToken)
	setInt(&cfg.RateLimitRPM, fc.Server.RateLimitRPM)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.StoreBackend, fc.Basis.Store)
	setString(&cfg.RedisAddr, fc.Basis.RedisAddr)
	setString(&cfg.RedisPassword, fc.Basis.RedisPassword)
	setInt(&cfg.RedisDB, fc.Basis.RedisDB)
	setDuration(&cfg.BasisMemTTL, fc.Basis.MemTTL)
	setString(&cfg.DefaultMethod, fc.Transform.Method)
	setFloat(&cfg.PixelSize, fc.Transform.PixelSize)
	setInt(&cfg.MaxFrameSize, fc.Transform.MaxFrameSize)
	setInt(&cfg.JobWorkers, fc.Jobs.Workers)
	setDuration(&cfg.JobTTL, fc.Jobs.TTL)
	setString(&cfg.SQLitePath, fc.Jobs.HistoryDB)
	setBool(&cfg.WatchEnabled, fc.Watch.Enabled)
	setString(&cfg.InboxDir, fc.Watch.Inbox)
	setString(&cfg.OutboxDir, fc.Watch.Outbox)
	setDuration(&cfg.WatchSettle, fc.Watch.Settle)
	return cfg
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}
