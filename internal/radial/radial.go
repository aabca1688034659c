// SPDX-License-Identifier: MIT

// Package radial computes angular integrals of reconstructed slices, i.e.
// the speed distribution of a velocity-map image.
package radial

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/imaging"
)

// SpeedDistribution reprojects img into polar coordinates around origin and
// integrates over all angles, returning intensity per radial bin. The
// result is clipped to the inscribed radius so corner pixels, which cover
// only part of the angular range, do not bias the tail.
func SpeedDistribution(img *mat.Dense, origin imaging.Origin) []float64 {
	rows, cols := img.Dims()
	if rows == 0 || cols == 0 {
		return nil
	}

	// Inscribed radius around the origin.
	rMax := origin.Row
	for _, d := range []int{rows - 1 - origin.Row, origin.Col, cols - 1 - origin.Col} {
		if d < rMax {
			rMax = d
		}
	}
	if rMax < 1 {
		return []float64{at(img, origin.Row, origin.Col)}
	}

	nTheta := rows / 2
	if nTheta < 8 {
		nTheta = 8
	}

	speeds := make([]float64, rMax+1)
	speeds[0] = at(img, origin.Row, origin.Col)
	for ri := 1; ri <= rMax; ri++ {
		r := float64(ri)
		acc := 0.0
		for ti := 0; ti < nTheta; ti++ {
			theta := 2 * math.Pi * float64(ti) / float64(nTheta)
			x := float64(origin.Col) + r*math.Sin(theta)
			y := float64(origin.Row) + r*math.Cos(theta)
			acc += bilinear(img, y, x)
		}
		speeds[ri] = acc
	}
	return speeds
}

func at(img *mat.Dense, i, j int) float64 {
	rows, cols := img.Dims()
	if i < 0 || i >= rows || j < 0 || j >= cols {
		return 0
	}
	return img.At(i, j)
}

// bilinear samples img at fractional coordinates (row y, column x).
func bilinear(img *mat.Dense, y, x float64) float64 {
	i0 := int(math.Floor(y))
	j0 := int(math.Floor(x))
	fy := y - float64(i0)
	fx := x - float64(j0)

	v00 := at(img, i0, j0)
	v01 := at(img, i0, j0+1)
	v10 := at(img, i0+1, j0)
	v11 := at(img, i0+1, j0+1)

	return v00*(1-fy)*(1-fx) + v01*(1-fy)*fx + v10*fy*(1-fx) + v11*fy*fx
}
