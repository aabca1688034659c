// SPDX-License-Identifier: MIT

package basis

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/basex"
	"github.com/photonlab/abel/internal/version"
)

// blob is the serialized form of a basis set. The matrix shapes follow from
// N and Nbf, so only the raw element slices are stored.
type blob struct {
	N       int
	Nbf     int
	Version string
	M       []float64
	Mc      []float64
	Left    []float64
	Right   []float64
}

func encode(w io.Writer, set *basex.Set) error {
	b := blob{
		N:       set.N,
		Nbf:     set.Nbf,
		Version: version.Version,
		M:       rawData(set.M),
		Mc:      rawData(set.Mc),
		Left:    rawData(set.Left),
		Right:   rawData(set.Right),
	}
	if err := gob.NewEncoder(w).Encode(&b); err != nil {
		return fmt.Errorf("encode basis set: %w", err)
	}
	return nil
}

func decode(r io.Reader) (*basex.Set, error) {
	var b blob
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode basis set: %w", err)
	}
	if b.N < 3 || b.Nbf < 1 {
		return nil, fmt.Errorf("decode basis set: invalid geometry n=%d nbf=%d", b.N, b.Nbf)
	}
	want := map[string]struct {
		data []float64
		size int
	}{
		"M":     {b.M, b.N * b.Nbf},
		"Mc":    {b.Mc, b.N * b.Nbf},
		"Left":  {b.Left, b.Nbf * b.N},
		"Right": {b.Right, b.N * b.Nbf},
	}
	for name, m := range want {
		if len(m.data) != m.size {
			return nil, fmt.Errorf("decode basis set: %s has %d elements, want %d", name, len(m.data), m.size)
		}
	}
	return &basex.Set{
		N:     b.N,
		Nbf:   b.Nbf,
		M:     mat.NewDense(b.N, b.Nbf, b.M),
		Mc:    mat.NewDense(b.N, b.Nbf, b.Mc),
		Left:  mat.NewDense(b.Nbf, b.N, b.Left),
		Right: mat.NewDense(b.N, b.Nbf, b.Right),
	}, nil
}

func encodeBytes(set *basex.Set) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, set); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rawData(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data
	}
	// Defragment matrices backed by a strided view.
	out := make([]float64, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		copy(out[i*raw.Cols:(i+1)*raw.Cols], raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols])
	}
	return out
}
