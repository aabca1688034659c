// SPDX-License-Identifier: MIT

package imaging

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"gonum.org/v1/gonum/mat"
)

// ReadCSV parses a rectangular matrix of floats from r. Fields may be
// separated by commas, semicolons or whitespace.
func ReadCSV(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var data []float64
	rows, cols := 0, 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", rows+1, err)
		}
		fields := splitRecord(record)
		if len(fields) == 0 {
			continue
		}
		if cols == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, fmt.Errorf("ragged csv: row %d has %d fields, want %d", rows+1, len(fields), cols)
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse %q: %w", rows+1, f, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	return mat.NewDense(rows, cols, data), nil
}

// splitRecord expands records whose fields still contain whitespace- or
// semicolon-separated values, so plain .dat exports parse too.
func splitRecord(record []string) []string {
	var out []string
	for _, field := range record {
		field = strings.ReplaceAll(field, ";", " ")
		for _, f := range strings.Fields(field) {
			out = append(out, f)
		}
	}
	return out
}

// ReadCSVFile reads a matrix from the file at path.
func ReadCSVFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	m, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteCSV writes img as comma-separated rows.
func WriteCSV(w io.Writer, img *mat.Dense) error {
	rows, cols := img.Dims()
	cw := csv.NewWriter(w)
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(img.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile atomically writes img to path. A partially written result is
// never visible to readers.
func WriteCSVFile(path string, img *mat.Dense) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := WriteCSV(pending, img); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

// ReadPNGFile decodes a PNG into a float matrix of raw 16-bit gray levels.
func ReadPNGFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	bounds := src.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			r, g, b, _ := src.At(bounds.Min.X+j, bounds.Min.Y+i).RGBA()
			// Luma for color inputs, identity for grayscale.
			out.Set(i, j, 0.299*float64(r)+0.587*float64(g)+0.114*float64(b))
		}
	}
	return out, nil
}

// WritePNGFile atomically writes img as 16-bit grayscale, scaled to the full
// dynamic range.
func WritePNGFile(path string, img *mat.Dense) error {
	rows, cols := img.Dims()
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := img.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	scale := 0.0
	if hi > lo {
		scale = 65535 / (hi - lo)
	}

	gray := image.NewGray16(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := (img.At(i, j) - lo) * scale
			gray.SetGray16(j, i, grayLevel(v))
		}
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := png.Encode(pending, gray); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

func grayLevel(v float64) (g color.Gray16) {
	switch {
	case v <= 0:
		return
	case v >= 65535:
		g.Y = 65535
	default:
		g.Y = uint16(v + 0.5)
	}
	return
}
