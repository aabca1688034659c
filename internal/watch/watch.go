// SPDX-License-Identifier: MIT

// Package watch processes a drop directory: every image file that appears
// in the inbox is transformed and the reconstruction written to the outbox.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/config"
	"github.com/photonlab/abel/internal/imaging"
	"github.com/photonlab/abel/internal/log"
	"github.com/photonlab/abel/internal/metrics"
	"github.com/photonlab/abel/internal/transform"
)

// Watcher wires an fsnotify watcher to the transform pipeline.
type Watcher struct {
	cfg config.AppConfig
	reg *transform.Registry

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New validates the directories and returns a watcher.
func New(cfg config.AppConfig, reg *transform.Registry) (*Watcher, error) {
	if err := os.MkdirAll(cfg.InboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox %s: %w", cfg.InboxDir, err)
	}
	if err := os.MkdirAll(cfg.OutboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox %s: %w", cfg.OutboxDir, err)
	}
	return &Watcher{
		cfg:     cfg,
		reg:     reg,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run watches the inbox until ctx is canceled. Files already present at
// startup are processed too.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithComponent("watch")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.cfg.InboxDir); err != nil {
		return fmt.Errorf("watch inbox %s: %w", w.cfg.InboxDir, err)
	}
	logger.Info().
		Str("inbox", w.cfg.InboxDir).
		Str("outbox", w.cfg.OutboxDir).
		Msg("watching inbox")

	// Pick up anything that arrived before the watch was established.
	entries, err := os.ReadDir(w.cfg.InboxDir)
	if err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(ctx, filepath.Join(w.cfg.InboxDir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.drainTimers()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// schedule (re)arms the settle timer for path. A file being written in
// several chunks keeps pushing its processing back until it goes quiet.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !supported(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.WatchSettle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	})
}

func (w *Watcher) drainTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".dat", ".png":
		return true
	default:
		return false
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	logger := log.WithComponent("watch")
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	img, err := readImage(path)
	if err != nil {
		w.fail(logger, base, path, err)
		return
	}

	recon, err := transform.Apply(ctx, w.reg, img, transform.Options{
		Method: w.cfg.DefaultMethod,
		DR:     w.cfg.PixelSize,
	})
	if err != nil {
		w.fail(logger, base, path, err)
		return
	}

	outPath := filepath.Join(w.cfg.OutboxDir, base+".csv")
	if err := imaging.WriteCSVFile(outPath, recon); err != nil {
		w.fail(logger, base, path, err)
		return
	}

	metrics.IncWatchEvent("processed")
	logger.Info().
		Str(log.FieldPath, path).
		Str("out", outPath).
		Msg("inbox file transformed")
}

// fail writes an .err sidecar so the producer can see why a file was not
// processed.
func (w *Watcher) fail(logger zerolog.Logger, base, path string, err error) {
	metrics.IncWatchEvent("failed")
	logger.Error().Err(err).Str(log.FieldPath, path).Msg("inbox file failed")

	sidecar := filepath.Join(w.cfg.OutboxDir, base+".err")
	if werr := os.WriteFile(sidecar, []byte(err.Error()+"\n"), 0o644); werr != nil {
		logger.Warn().Err(werr).Str(log.FieldPath, sidecar).Msg("failed to write error sidecar")
	}
}

func readImage(path string) (*mat.Dense, error) {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return imaging.ReadPNGFile(path)
	}
	return imaging.ReadCSVFile(path)
}
