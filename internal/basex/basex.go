// SPDX-License-Identifier: MIT

// Package basex implements the Gaussian basis-set expansion (BASEX) method
// for the inverse Abel transform, after Dribinski, Ossadtchi, Mandelshtam
// and Reisler, Rev. Sci. Instrum. 73, 2634 (2002).
package basex

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/imaging"
)

// maxBasisOffset bounds the summation window used when projecting a basis
// function, trading a negligible truncation error for a bounded inner loop.
const maxBasisOffset = 4000

// intensityScale undoes the 2/sqrt(pi) factor the stored projected basis
// carries relative to the analytic Abel integral of the radial basis, so
// reconstructed intensities match the analytical transform.
const intensityScale = 2 / math.SqrtPi

// Set holds the basis matrices for one (n, nbf) geometry. M and Mc are the
// projected and radial basis matrices; Left and Right are the precomputed
// regularized projection matrices applied around the raw image.
type Set struct {
	N    int
	Nbf  int
	M    *mat.Dense
	Mc   *mat.Dense
	Left *mat.Dense
	Right *mat.Dense
}

// DefaultNbf returns the default number of basis functions for an n pixel
// frame, one basis function per radial pixel.
func DefaultNbf(n int) int {
	return n / 2
}

// NewSet generates a complete basis set for an n by n frame, including the
// left/right projection matrices.
func NewSet(ctx context.Context, n, nbf int) (*Set, error) {
	m, mc, err := GenerateBasisSets(ctx, n, nbf)
	if err != nil {
		return nil, err
	}
	left, right, err := LeftRightMatrices(m, mc)
	if err != nil {
		return nil, err
	}
	if nbf <= 0 {
		nbf = DefaultNbf(n)
	}
	return &Set{N: n, Nbf: nbf, M: m, Mc: mc, Left: left, Right: right}, nil
}

// GenerateBasisSets builds the projected (M) and radial (Mc) basis matrices
// for an n by n frame with nbf basis functions. n must be odd so that the
// frame has a single center pixel; nbf <= 0 selects DefaultNbf(n). Columns
// are independent and generated in parallel.
func GenerateBasisSets(ctx context.Context, n, nbf int) (*mat.Dense, *mat.Dense, error) {
	if n < 3 || !imaging.IsOdd(n) {
		return nil, nil, &imaging.GeometryError{Op: "basex.generate", Rows: n, Cols: n, Reason: "basis frame size must be odd and at least 3"}
	}
	if nbf <= 0 {
		nbf = DefaultNbf(n)
	}
	if nbf > n/2 {
		return nil, nil, fmt.Errorf("basex.generate: nbf %d exceeds radial extent %d of an n=%d frame", nbf, n/2, n)
	}

	m := mat.NewDense(n, nbf, nil)
	mc := mat.NewDense(n, nbf, nil)
	center := n / 2

	for i := 0; i < n; i++ {
		x := float64(i - center)
		r2 := x * x
		m.Set(i, 0, 2*math.Exp(-r2))
		mc.Set(i, 0, math.Exp(-r2))
	}

	lg05, _ := math.Lgamma(0.5)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := 1; k < nbf; k++ {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			generateColumn(m, mc, n, center, k, lg05)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("basex.generate: %w", err)
	}
	return m, mc, nil
}

// generateColumn fills column k of both matrices. Each basis function is a
// Gaussian of the form (r/k)^(2k^2) * exp(k^2 - r^2 ... ) evaluated in log
// space through the log-gamma function to stay within float range.
func generateColumn(m, mc *mat.Dense, n, center, k int, lg05 float64) {
	k2 := float64(k * k)
	logK2 := math.Log(k2)

	lgK2Half, _ := math.Lgamma(k2 + 0.5)
	angn := math.Exp(k2 - 2*k2*math.Log(float64(k)) + lgK2Half - lg05)
	m.Set(center, k, 2*angn)

	delta := k*32 - maxBasisOffset
	if delta < maxBasisOffset {
		delta = maxBasisOffset
	}
	lgK2p1, _ := math.Lgamma(k2 + 1)

	for l := 1; l <= center; l++ {
		l2 := l * l
		logL2 := math.Log(float64(l2))

		val := math.Exp(k2 - float64(l2) + 2*k2*math.Log(float64(l)/float64(k)))
		mc.Set(center+l, k, val)
		mc.Set(center-l, k, val)

		aux := val + angn*mc.At(center+l, 0)

		pLo := l2 - delta
		if pLo < 1 {
			pLo = 1
		}
		pHi := l2 + delta
		if limit := int(k2) - 1; pHi > limit {
			pHi = limit
		}
		// Equivalent of summing log(p..k2-1) terms: expressed through
		// log-gamma identities so each term is a single Exp.
		for p := pLo; p <= pHi; p++ {
			fp := float64(p)
			lgP1, _ := math.Lgamma(fp + 1)
			lgA, _ := math.Lgamma(k2 - fp + 0.5)
			lgB, _ := math.Lgamma(k2 - fp + 1)
			aux += math.Exp(k2 - float64(l2) - k2*logK2 + fp*logL2 + lgK2p1 - lgP1 + lgA - lg05 - lgB)
		}

		aux *= 2
		m.Set(center+l, k, aux)
		m.Set(center-l, k, aux)
	}
}

// LeftRightMatrices derives the projection matrices applied around the raw
// image: left is the pseudo-inverse of the radial basis, right the Tikhonov
// regularized (q=1) pseudo-inverse of the projected basis.
func LeftRightMatrices(m, mc *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	_, nbf := m.Dims()

	var radialNormal mat.Dense
	radialNormal.Mul(mc.T(), mc)
	var radialInv mat.Dense
	if err := radialInv.Inverse(&radialNormal); err != nil {
		return nil, nil, fmt.Errorf("invert radial normal matrix: %w", err)
	}
	var left mat.Dense
	left.Mul(&radialInv, mc.T())

	var projNormal mat.Dense
	projNormal.Mul(m.T(), m)
	for i := 0; i < nbf; i++ {
		projNormal.Set(i, i, projNormal.At(i, i)+1)
	}
	var projInv mat.Dense
	if err := projInv.Inverse(&projNormal); err != nil {
		return nil, nil, fmt.Errorf("invert regularized projection matrix: %w", err)
	}
	var right mat.Dense
	right.Mul(m, &projInv)

	return &left, &right, nil
}

// CoreTransform reconstructs the center slice of the radial distribution
// from a centered n by n projection. dr is the radial pixel size.
func CoreTransform(img *mat.Dense, s *Set, dr float64) (*mat.Dense, error) {
	rows, cols := img.Dims()
	if rows != s.N || cols != s.N {
		return nil, &imaging.GeometryError{Op: "basex.transform", Rows: rows, Cols: cols,
			Reason: fmt.Sprintf("image does not match basis frame %dx%d", s.N, s.N)}
	}
	if dr <= 0 {
		return nil, fmt.Errorf("basex.transform: pixel size dr must be positive, got %g", dr)
	}

	// Ci = left * img * right, the basis coefficients of the raw image.
	var tmp, coeffs mat.Dense
	tmp.Mul(s.Left, img)
	coeffs.Mul(&tmp, s.Right)

	// recon = Mc * Ci * Mc^T, evaluated on the radial basis.
	var tmp2, recon mat.Dense
	tmp2.Mul(s.Mc, &coeffs)
	recon.Mul(&tmp2, s.Mc.T())

	recon.Scale(intensityScale/dr, &recon)
	fixAxisColumn(&recon, s.N/2)
	return &recon, nil
}

// fixAxisColumn replaces the symmetry-axis column, where the regularized
// expansion systematically undershoots between the r=0 and r=1 basis
// functions, with an even quadratic fit through the two neighboring columns
// on each side.
func fixAxisColumn(recon *mat.Dense, center int) {
	rows, cols := recon.Dims()
	if center < 2 || center+2 >= cols {
		return
	}
	for i := 0; i < rows; i++ {
		f1 := (recon.At(i, center-1) + recon.At(i, center+1)) / 2
		f2 := (recon.At(i, center-2) + recon.At(i, center+2)) / 2
		recon.Set(i, center, (4*f1-f2)/3)
	}
}
