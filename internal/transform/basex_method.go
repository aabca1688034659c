// SPDX-License-Identifier: MIT

package transform

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/basex"
	"github.com/photonlab/abel/internal/basis"
)

// BasexMethod is the Gaussian basis-set expansion inverse transform. Basis
// sets are loaded through the configured store and generated on a miss.
type BasexMethod struct {
	store basis.Store
}

// NewBasexMethod returns the BASEX method backed by store. A nil store
// regenerates the basis on every call.
func NewBasexMethod(store basis.Store) *BasexMethod {
	return &BasexMethod{store: store}
}

// Name implements Method.
func (m *BasexMethod) Name() string { return "basex" }

// Supports implements Method. BASEX reconstructs only; it has no forward
// projection.
func (m *BasexMethod) Supports(d Direction) bool { return d == Inverse }

// Transform implements Method.
func (m *BasexMethod) Transform(ctx context.Context, img *mat.Dense, p Params) (*mat.Dense, error) {
	if p.Direction != Inverse {
		return nil, &DirectionError{Method: m.Name(), Direction: p.Direction}
	}
	n, _ := img.Dims()
	set, err := basis.Cached(ctx, m.store, n, p.Nbf)
	if err != nil {
		return nil, err
	}
	return basex.CoreTransform(img, set, p.DR)
}
