// SPDX-License-Identifier: MIT

package basex

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/imaging"
)

func TestGenerateBasisSetsValidation(t *testing.T) {
	tests := []struct {
		name string
		n    int
		nbf  int
	}{
		{name: "even frame", n: 100, nbf: 10},
		{name: "too small", n: 1, nbf: 0},
		{name: "nbf beyond radial extent", n: 11, nbf: 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := GenerateBasisSets(context.Background(), tc.n, tc.nbf)
			require.Error(t, err)
		})
	}
}

func TestGenerateBasisSetsEvenFrameIsGeometryError(t *testing.T) {
	_, _, err := GenerateBasisSets(context.Background(), 100, 10)
	var gerr *imaging.GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 100, gerr.Rows)
}

func TestGenerateBasisSetsFirstColumn(t *testing.T) {
	const n = 11
	m, mc, err := GenerateBasisSets(context.Background(), n, 3)
	require.NoError(t, err)

	center := n / 2
	for i := 0; i < n; i++ {
		x := float64(i - center)
		r2 := x * x
		assert.InDelta(t, 2*math.Exp(-r2), m.At(i, 0), 1e-12)
		assert.InDelta(t, math.Exp(-r2), mc.At(i, 0), 1e-12)
	}
}

func TestBasisColumnsSymmetric(t *testing.T) {
	const n = 21
	m, mc, err := GenerateBasisSets(context.Background(), n, 0)
	require.NoError(t, err)

	_, nbf := m.Dims()
	require.Equal(t, DefaultNbf(n), nbf)

	center := n / 2
	for k := 0; k < nbf; k++ {
		for l := 1; l <= center; l++ {
			assert.Equal(t, m.At(center-l, k), m.At(center+l, k))
			assert.Equal(t, mc.At(center-l, k), mc.At(center+l, k))
		}
	}
}

func TestBasisPeaksNearOwnRadius(t *testing.T) {
	const n = 41
	_, mc, err := GenerateBasisSets(context.Background(), n, 0)
	require.NoError(t, err)

	// Basis function k is a narrow Gaussian around r = k.
	center := n / 2
	for k := 1; k < DefaultNbf(n); k++ {
		best, bestVal := -1, 0.0
		for l := 0; l <= center; l++ {
			if v := mc.At(center+l, k); v > bestVal {
				best, bestVal = l, v
			}
		}
		assert.Equalf(t, k, best, "column %d", k)
	}
}

func TestCoreTransformValidation(t *testing.T) {
	set, err := NewSet(context.Background(), 11, 5)
	require.NoError(t, err)

	_, err = CoreTransform(mat.NewDense(9, 9, nil), set, 1.0)
	var gerr *imaging.GeometryError
	require.ErrorAs(t, err, &gerr)

	_, err = CoreTransform(mat.NewDense(11, 11, nil), set, 0)
	require.Error(t, err)
}

func TestCoreTransformZeroImage(t *testing.T) {
	set, err := NewSet(context.Background(), 21, 0)
	require.NoError(t, err)

	recon, err := CoreTransform(mat.NewDense(21, 21, nil), set, 1.0)
	require.NoError(t, err)

	rows, cols := recon.Dims()
	require.Equal(t, 21, rows)
	require.Equal(t, 21, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, 0, recon.At(i, j), 1e-9)
		}
	}
}

func TestCoreTransformGaussian(t *testing.T) {
	const (
		n     = 101
		sigma = 10.0
	)
	set, err := NewSet(context.Background(), n, 0)
	require.NoError(t, err)

	// Projection of the spherically symmetric Gaussian exp(-r^2/2sigma^2):
	// a 2D Gaussian scaled by sigma*sqrt(2*pi).
	center := n / 2
	img := mat.NewDense(n, n, nil)
	scale := sigma * math.Sqrt(2*math.Pi)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			z := float64(i - center)
			x := float64(j - center)
			img.Set(i, j, scale*math.Exp(-(x*x+z*z)/(2*sigma*sigma)))
		}
	}

	recon, err := CoreTransform(img, set, 1.0)
	require.NoError(t, err)

	// The center row of the reconstruction is the equatorial slice of the
	// distribution and must match the source Gaussian out to 2 sigma.
	for d := 0; float64(d) <= 2*sigma; d++ {
		want := math.Exp(-float64(d*d) / (2 * sigma * sigma))
		got := recon.At(center, center+d)
		rel := math.Abs(got-want) / want
		assert.LessOrEqualf(t, rel, 0.10, "r=%d: got %g want %g", d, got, want)
	}
}

func TestFixAxisColumnRestoresEvenProfile(t *testing.T) {
	const n = 9
	center := n / 2

	// Row-dependent even quadratic in the column offset; the axis value of
	// such a profile is recovered exactly by the two-neighbor fit.
	recon := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := float64(j - center)
			recon.Set(i, j, 3+float64(i)+0.25*x*x)
		}
	}
	want := make([]float64, n)
	for i := 0; i < n; i++ {
		want[i] = recon.At(i, center)
		recon.Set(i, center, 0.6*want[i])
	}

	fixAxisColumn(recon, center)
	for i := 0; i < n; i++ {
		assert.InDelta(t, want[i], recon.At(i, center), 1e-12)
	}
}

func TestDefaultNbf(t *testing.T) {
	assert.Equal(t, 5, DefaultNbf(11))
	assert.Equal(t, 50, DefaultNbf(101))
}
