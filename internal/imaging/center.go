// SPDX-License-Identifier: MIT

package imaging

import (
	"gonum.org/v1/gonum/mat"
)

// Origin is the symmetry center of an image in (column, row) order.
type Origin struct {
	Col int
	Row int
}

// Center places img so that origin lands on the center pixel of an n by n
// frame. n must be odd. Pixels outside img are zero; pixels of img outside
// the frame are cropped.
func Center(img *mat.Dense, origin Origin, n int) (*mat.Dense, error) {
	if !IsOdd(n) {
		r, c := img.Dims()
		return nil, &GeometryError{Op: "center", Rows: r, Cols: c, Reason: "frame size must be odd"}
	}
	rows, cols := img.Dims()
	out := mat.NewDense(n, n, nil)
	half := n / 2

	// Destination index of source pixel (i, j) is (i - origin.Row + half,
	// j - origin.Col + half); copy only the overlap.
	for i := 0; i < rows; i++ {
		di := i - origin.Row + half
		if di < 0 || di >= n {
			continue
		}
		for j := 0; j < cols; j++ {
			dj := j - origin.Col + half
			if dj < 0 || dj >= n {
				continue
			}
			out.Set(di, dj, img.At(i, j))
		}
	}
	return out, nil
}

// MidOrigin returns the geometric center of img, the default origin when the
// caller does not supply one.
func MidOrigin(img *mat.Dense) Origin {
	rows, cols := img.Dims()
	return Origin{Col: cols / 2, Row: rows / 2}
}
