// SPDX-License-Identifier: MIT

package transform

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/direct"
)

// DirectMethod maps the 1D integration transforms over the rows of a
// centered image. Each row is split at the center column and the two halves
// are transformed independently, so left/right asymmetric data stays
// asymmetric.
type DirectMethod struct{}

// Name implements Method.
func (DirectMethod) Name() string { return "direct" }

// Supports implements Method. The direct method implements both directions.
func (DirectMethod) Supports(d Direction) bool { return d == Forward || d == Inverse }

// Transform implements Method.
func (DirectMethod) Transform(ctx context.Context, img *mat.Dense, p Params) (*mat.Dense, error) {
	apply := direct.InverseTransform
	if p.Direction == Forward {
		apply = direct.ForwardTransform
	}

	n, cols := img.Dims()
	center := cols / 2
	out := mat.NewDense(n, cols, nil)

	rightIn := make([]float64, center+1)
	leftIn := make([]float64, center+1)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for k := 0; k <= center; k++ {
			rightIn[k] = img.At(i, center+k)
			leftIn[k] = img.At(i, center-k)
		}
		rightOut, err := apply(rightIn, p.DR)
		if err != nil {
			return nil, err
		}
		leftOut, err := apply(leftIn, p.DR)
		if err != nil {
			return nil, err
		}
		// Both halves contain the axis pixel; keep their mean there.
		out.Set(i, center, (rightOut[0]+leftOut[0])/2)
		for k := 1; k <= center; k++ {
			out.Set(i, center+k, rightOut[k])
			out.Set(i, center-k, leftOut[k])
		}
	}
	return out, nil
}
