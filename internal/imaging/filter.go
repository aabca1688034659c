// SPDX-License-Identifier: MIT

package imaging

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// reflect maps an out-of-range index into [0, n) by mirroring at the borders.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i = ((i % period) + period) % period
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// MedianFilter applies a size x size median filter, the standard prefilter
// for removing hot pixels before a transform. size < 2 returns the input
// unchanged.
func MedianFilter(img *mat.Dense, size int) *mat.Dense {
	if size < 2 {
		return img
	}
	rows, cols := img.Dims()
	out := mat.NewDense(rows, cols, nil)
	lo := -(size - 1) / 2
	hi := lo + size - 1
	window := make([]float64, 0, size*size)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			window = window[:0]
			for di := lo; di <= hi; di++ {
				for dj := lo; dj <= hi; dj++ {
					window = append(window, img.At(reflect(i+di, rows), reflect(j+dj, cols)))
				}
			}
			sort.Float64s(window)
			mid := len(window) / 2
			if len(window)%2 == 1 {
				out.Set(i, j, window[mid])
			} else {
				out.Set(i, j, (window[mid-1]+window[mid])/2)
			}
		}
	}
	return out
}

// GaussianFilter applies a separable Gaussian blur with the given sigma.
// The kernel is truncated at 4 sigma. sigma <= 0 returns the input unchanged.
func GaussianFilter(img *mat.Dense, sigma float64) *mat.Dense {
	if sigma <= 0 {
		return img
	}
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	rows, cols := img.Dims()
	tmp := mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)

	// Horizontal pass.
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * img.At(i, reflect(j+k-radius, cols))
			}
			tmp.Set(i, j, acc)
		}
	}
	// Vertical pass.
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * tmp.At(reflect(i+k-radius, rows), j)
			}
			out.Set(i, j, acc)
		}
	}
	return out
}

// Symmetrize averages the left and right halves of a centered image around
// its center column. Noise-limited data is often symmetrized before the
// inverse transform.
func Symmetrize(img *mat.Dense) *mat.Dense {
	rows, cols := img.Dims()
	out := mat.NewDense(rows, cols, nil)
	center := cols / 2
	for i := 0; i < rows; i++ {
		out.Set(i, center, img.At(i, center))
		for d := 1; d <= center; d++ {
			right := center + d
			left := center - d
			if right >= cols || left < 0 {
				break
			}
			avg := (img.At(i, right) + img.At(i, left)) / 2
			out.Set(i, right, avg)
			out.Set(i, left, avg)
		}
	}
	return out
}
