// SPDX-License-Identifier: MIT

package watch

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/config"
	"github.com/photonlab/abel/internal/imaging"
	"github.com/photonlab/abel/internal/transform"
)

func watchConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.DefaultMethod = "direct"
	cfg.WatchEnabled = true
	cfg.InboxDir = filepath.Join(cfg.DataDir, "inbox")
	cfg.OutboxDir = filepath.Join(cfg.DataDir, "outbox")
	cfg.WatchSettle = 30 * time.Millisecond
	return cfg
}

func startWatcher(t *testing.T, cfg config.AppConfig) {
	t.Helper()
	w, err := New(cfg, transform.DefaultRegistry(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func testImage(n int) *mat.Dense {
	center := n / 2
	img := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			z := float64(i - center)
			x := float64(j - center)
			img.Set(i, j, math.Exp(-(x*x+z*z)/8))
		}
	}
	return img
}

func TestWatcherTransformsDrop(t *testing.T) {
	cfg := watchConfig(t)
	startWatcher(t, cfg)

	require.NoError(t, imaging.WriteCSVFile(filepath.Join(cfg.InboxDir, "shot.csv"), testImage(9)))

	outPath := filepath.Join(cfg.OutboxDir, "shot.csv")
	require.Eventually(t, func() bool {
		_, err := os.Stat(outPath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "reconstruction never appeared")

	recon, err := imaging.ReadCSVFile(outPath)
	require.NoError(t, err)
	rows, cols := recon.Dims()
	assert.Equal(t, 9, rows)
	assert.Equal(t, 9, cols)
}

func TestWatcherPicksUpExistingFiles(t *testing.T) {
	cfg := watchConfig(t)
	require.NoError(t, os.MkdirAll(cfg.InboxDir, 0o755))
	require.NoError(t, imaging.WriteCSVFile(filepath.Join(cfg.InboxDir, "backlog.csv"), testImage(9)))

	startWatcher(t, cfg)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.OutboxDir, "backlog.csv"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "pre-existing file was never processed")
}

func TestWatcherWritesErrorSidecar(t *testing.T) {
	cfg := watchConfig(t)
	startWatcher(t, cfg)

	// Even frame, so the transform must reject it.
	require.NoError(t, imaging.WriteCSVFile(filepath.Join(cfg.InboxDir, "broken.csv"), testImage(8)))

	sidecar := filepath.Join(cfg.OutboxDir, "broken.err")
	require.Eventually(t, func() bool {
		_, err := os.Stat(sidecar)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "error sidecar never appeared")

	raw, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "unsupported image geometry")

	_, err = os.Stat(filepath.Join(cfg.OutboxDir, "broken.csv"))
	assert.True(t, os.IsNotExist(err), "no reconstruction for a failed file")
}

func TestWatcherIgnoresUnsupportedExtensions(t *testing.T) {
	cfg := watchConfig(t)
	startWatcher(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.InboxDir, "notes.txt"), []byte("hello"), 0o644))

	time.Sleep(4 * cfg.WatchSettle)
	entries, err := os.ReadDir(cfg.OutboxDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSupported(t *testing.T) {
	assert.True(t, supported("a.csv"))
	assert.True(t, supported("a.CSV"))
	assert.True(t, supported("a.png"))
	assert.True(t, supported("a.dat"))
	assert.False(t, supported("a.txt"))
	assert.False(t, supported("a"))
}
