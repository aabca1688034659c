// SPDX-License-Identifier: MIT

// Package imaging provides raster utilities shared by the transform methods:
// centering, parity handling, prefilters and file I/O.
package imaging

import "fmt"

// GeometryError reports an input image whose size or parity is not supported
// by the requested operation. It is returned instead of silently producing a
// wrong reconstruction.
type GeometryError struct {
	Op     string
	Rows   int
	Cols   int
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: unsupported image geometry %dx%d: %s", e.Op, e.Rows, e.Cols, e.Reason)
}

// IsOdd reports whether n has an odd number of elements.
func IsOdd(n int) bool {
	return n%2 == 1
}

// OddFrame returns the nearest odd frame size not larger than n+1, so that a
// transform frame always has a single center pixel.
func OddFrame(n int) int {
	return 2*(n/2) + 1
}
