// SPDX-License-Identifier: MIT

package basis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/photonlab/abel/internal/basex"
)

const diskExt = ".bin"

// DiskStore caches basis sets as one file per set under a directory. Writes
// go through renameio: fsync before an atomic rename, so a crash never
// leaves a truncated set behind.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the cache directory if needed and returns the store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("basis: disk store directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create basis dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, key+diskExt)
}

// Load reads the set cached under key.
func (s *DiskStore) Load(ctx context.Context, key string) (*basex.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open basis file: %w", err)
	}
	defer func() { _ = f.Close() }()

	set, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(key), err)
	}
	return set, nil
}

// Save atomically writes the set under key.
func (s *DiskStore) Save(ctx context.Context, key string, set *basex.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pending, err := renameio.NewPendingFile(s.path(key))
	if err != nil {
		return fmt.Errorf("create pending basis file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := encode(pending, set); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace basis file: %w", err)
	}
	return nil
}

// List returns the keys of all cached sets in the directory.
func (s *DiskStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read basis dir: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), diskExt))
	}
	return keys, nil
}

// Delete removes the set cached under key.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove basis file: %w", err)
	}
	return nil
}
