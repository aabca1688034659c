// SPDX-License-Identifier: MIT

package imaging

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestIsOddAndOddFrame(t *testing.T) {
	assert.True(t, IsOdd(1))
	assert.True(t, IsOdd(101))
	assert.False(t, IsOdd(0))
	assert.False(t, IsOdd(100))

	assert.Equal(t, 101, OddFrame(101))
	assert.Equal(t, 101, OddFrame(100))
	assert.Equal(t, 3, OddFrame(2))
}

func TestGeometryErrorMessage(t *testing.T) {
	err := &GeometryError{Op: "center", Rows: 100, Cols: 100, Reason: "frame size must be odd"}
	assert.Equal(t, "center: unsupported image geometry 100x100: frame size must be odd", err.Error())
}

func TestCenterRejectsEvenFrame(t *testing.T) {
	img := mat.NewDense(3, 3, nil)
	_, err := Center(img, MidOrigin(img), 4)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
}

func TestCenterPadsAndCrops(t *testing.T) {
	// 3x3 with a marker at (1, 2); origin on the marker.
	img := mat.NewDense(3, 3, nil)
	img.Set(1, 2, 7)

	out, err := Center(img, Origin{Col: 2, Row: 1}, 5)
	require.NoError(t, err)
	rows, cols := out.Dims()
	require.Equal(t, 5, rows)
	require.Equal(t, 5, cols)
	assert.Equal(t, 7.0, out.At(2, 2))

	// Cropping down to 1x1 keeps only the origin pixel.
	out, err = Center(img, Origin{Col: 2, Row: 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.At(0, 0))
}

func TestMidOrigin(t *testing.T) {
	o := MidOrigin(mat.NewDense(5, 7, nil))
	assert.Equal(t, Origin{Col: 3, Row: 2}, o)
}

func TestMedianFilterRemovesHotPixel(t *testing.T) {
	img := mat.NewDense(5, 5, nil)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			img.Set(i, j, 1)
		}
	}
	img.Set(2, 2, 1000)

	out := MedianFilter(img, 3)
	assert.Equal(t, 1.0, out.At(2, 2))
	assert.Equal(t, 1.0, out.At(0, 0))
}

func TestMedianFilterSizeOneIsIdentity(t *testing.T) {
	img := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.Same(t, img, MedianFilter(img, 1))
}

func TestGaussianFilterPreservesConstant(t *testing.T) {
	img := mat.NewDense(7, 7, nil)
	for i := 0; i < 7; i++ {
		for j := 0; j < 7; j++ {
			img.Set(i, j, 3.5)
		}
	}
	out := GaussianFilter(img, 1.5)
	for i := 0; i < 7; i++ {
		for j := 0; j < 7; j++ {
			assert.InDelta(t, 3.5, out.At(i, j), 1e-9)
		}
	}
}

func TestGaussianFilterSmoothsPeak(t *testing.T) {
	img := mat.NewDense(9, 9, nil)
	img.Set(4, 4, 1)
	out := GaussianFilter(img, 1.0)
	assert.Less(t, out.At(4, 4), 1.0)
	assert.Greater(t, out.At(4, 5), 0.0)
}

func TestSymmetrize(t *testing.T) {
	img := mat.NewDense(1, 5, []float64{1, 2, 10, 4, 5})
	out := Symmetrize(img)
	assert.Equal(t, 10.0, out.At(0, 2))
	assert.Equal(t, 3.0, out.At(0, 1))
	assert.Equal(t, 3.0, out.At(0, 3))
	assert.Equal(t, 3.0, out.At(0, 0))
	assert.Equal(t, 3.0, out.At(0, 4))
}

func TestReadCSVFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "comma", input: "1,2,3\n4,5,6\n"},
		{name: "semicolon", input: "1;2;3\n4;5;6\n"},
		{name: "whitespace", input: "1 2 3\n4 5 6\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ReadCSV(strings.NewReader(tc.input))
			require.NoError(t, err)
			rows, cols := m.Dims()
			assert.Equal(t, 2, rows)
			assert.Equal(t, 3, cols)
			assert.Equal(t, 6.0, m.At(1, 2))
		})
	}
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)

	_, err = ReadCSV(strings.NewReader("1,2\n3\n"))
	require.Error(t, err)

	_, err = ReadCSV(strings.NewReader("1,x\n"))
	require.Error(t, err)
}

func TestCSVFileRoundTrip(t *testing.T) {
	img := mat.NewDense(3, 4, []float64{
		0, 1.5, -2, 3,
		4, 5, 6.25, 7,
		8, 9, 10, 11,
	})
	path := filepath.Join(t.TempDir(), "img.csv")
	require.NoError(t, WriteCSVFile(path, img))

	got, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(img, got))
}

func TestPNGFileRoundTripShape(t *testing.T) {
	img := mat.NewDense(6, 8, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 8; j++ {
			img.Set(i, j, float64(i*8+j))
		}
	}
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, WritePNGFile(path, img))

	got, err := ReadPNGFile(path)
	require.NoError(t, err)
	rows, cols := got.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 8, cols)

	// Full-range scaling maps the smallest value to 0 and the largest to
	// 65535; the gradient must survive monotonically along a row.
	assert.Equal(t, 0.0, got.At(0, 0))
	for j := 1; j < 8; j++ {
		assert.Greater(t, got.At(0, j), got.At(0, j-1))
	}
}
