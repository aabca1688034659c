// SPDX-License-Identifier: MIT

package api

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/imaging"
	"github.com/photonlab/abel/internal/transform"
)

// TransformRequest is the JSON body of transform and job submissions.
type TransformRequest struct {
	Method    string  `json:"method,omitempty"`
	Direction string  `json:"direction,omitempty"`
	DR        float64 `json:"dr,omitempty"`
	Nbf       int     `json:"nbf,omitempty"`

	FrameSize int           `json:"frameSize,omitempty"`
	Origin    *OriginParam  `json:"origin,omitempty"`

	Symmetrize     bool    `json:"symmetrize,omitempty"`
	MedianSize     int     `json:"medianSize,omitempty"`
	GaussianSigma  float64 `json:"gaussianSigma,omitempty"`
	PostMedianSize int     `json:"postMedianSize,omitempty"`

	Rows [][]float64 `json:"rows"`
}

// OriginParam is a symmetry center in (column, row) order.
type OriginParam struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// TransformResponse carries a completed reconstruction.
type TransformResponse struct {
	Method    string      `json:"method"`
	Direction string      `json:"direction"`
	Shape     [2]int      `json:"shape"`
	Rows      [][]float64 `json:"rows"`
	ElapsedMS int64       `json:"elapsedMS"`
}

// JobResponse describes an asynchronous job.
type JobResponse struct {
	ID        string      `json:"id"`
	Method    string      `json:"method"`
	Direction string      `json:"direction"`
	State     string      `json:"state"`
	Error     string      `json:"error,omitempty"`
	Shape     [2]int      `json:"shape"`
	Created   string      `json:"created"`
	Finished  string      `json:"finished,omitempty"`
	Rows      [][]float64 `json:"rows,omitempty"`
}

// BasisRequest asks for a basis set to be generated and cached.
type BasisRequest struct {
	N   int `json:"n"`
	Nbf int `json:"nbf,omitempty"`
}

// SpeedsRequest asks for the angular integral of a reconstructed slice.
type SpeedsRequest struct {
	Origin *OriginParam `json:"origin,omitempty"`
	Rows   [][]float64  `json:"rows"`
}

// options converts the request into pipeline options, applying server
// defaults for method, direction and pixel size.
func (r *TransformRequest) options(defaultMethod string, defaultDR float64) (transform.Options, error) {
	opts := transform.Options{
		Method:         r.Method,
		DR:             r.DR,
		Nbf:            r.Nbf,
		FrameSize:      r.FrameSize,
		Symmetrize:     r.Symmetrize,
		MedianSize:     r.MedianSize,
		GaussianSigma:  r.GaussianSigma,
		PostMedianSize: r.PostMedianSize,
	}
	if opts.Method == "" {
		opts.Method = defaultMethod
	}
	if opts.DR == 0 {
		opts.DR = defaultDR
	}
	if r.Direction != "" {
		d, err := transform.ParseDirection(r.Direction)
		if err != nil {
			return transform.Options{}, err
		}
		opts.Direction = d
	}
	if r.Origin != nil {
		opts.Origin = &imaging.Origin{Col: r.Origin.Col, Row: r.Origin.Row}
	}
	return opts, nil
}

// matrix converts the row-major JSON payload into a dense matrix.
func (r *TransformRequest) matrix() (*mat.Dense, error) {
	return denseFromRows(r.Rows)
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("rows must not be empty")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("ragged payload: row %d has %d values, want %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func rowsFromDense(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}
