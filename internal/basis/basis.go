// SPDX-License-Identifier: MIT

// Package basis persists BASEX basis sets. Generating a set is expensive, so
// sets are computed once, cached through a Store, and regenerated only when
// no cached copy exists.
package basis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/photonlab/abel/internal/basex"
	"github.com/photonlab/abel/internal/log"
	"github.com/photonlab/abel/internal/metrics"
)

// ErrNotFound is returned by Store.Load when no set is cached under the key.
var ErrNotFound = errors.New("basis set not found")

// Store is a persistent cache of basis sets.
type Store interface {
	// Load returns the set cached under key, or ErrNotFound.
	Load(ctx context.Context, key string) (*basex.Set, error)
	// Save persists the set under key.
	Save(ctx context.Context, key string, set *basex.Set) error
	// List returns the keys of all cached sets.
	List(ctx context.Context) ([]string, error)
	// Delete evicts the set cached under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Key returns the cache key for an (n, nbf) basis geometry.
func Key(n, nbf int) string {
	return fmt.Sprintf("basex_basis_%d_%d", n, nbf)
}

// Cached returns the basis set for (n, nbf), loading it from the store when
// cached and generating and saving it otherwise. A failed save is logged and
// does not fail the call; the freshly generated set is still usable.
func Cached(ctx context.Context, store Store, n, nbf int) (*basex.Set, error) {
	if nbf <= 0 {
		nbf = basex.DefaultNbf(n)
	}
	key := Key(n, nbf)
	logger := log.WithComponentFromContext(ctx, "basis")

	if store != nil {
		set, err := store.Load(ctx, key)
		switch {
		case err == nil:
			metrics.IncBasisCache("hit")
			logger.Debug().Str(log.FieldBasisKey, key).Msg("basis set loaded from cache")
			return set, nil
		case errors.Is(err, ErrNotFound):
			metrics.IncBasisCache("miss")
		default:
			// Corrupt or unreadable entries surface instead of being
			// regenerated over, so disk problems stay visible. Eviction via
			// Delete is the explicit way out.
			metrics.IncBasisCache("error")
			return nil, fmt.Errorf("load basis set %s: %w", key, err)
		}
	}

	logger.Info().
		Str(log.FieldBasisKey, key).
		Int("n", n).
		Int("nbf", nbf).
		Msg("generating basis set, this may take a while")

	start := time.Now()
	set, err := basex.NewSet(ctx, n, nbf)
	if err != nil {
		return nil, err
	}
	metrics.ObserveBasisGenerate(time.Since(start).Seconds())
	logger.Info().
		Str(log.FieldBasisKey, key).
		Dur("elapsed", time.Since(start)).
		Msg("basis set generated")

	if store != nil {
		if err := store.Save(ctx, key, set); err != nil {
			logger.Warn().Err(err).Str(log.FieldBasisKey, key).Msg("failed to cache basis set")
		}
	}
	return set, nil
}
