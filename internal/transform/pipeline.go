// SPDX-License-Identifier: MIT

package transform

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/imaging"
	"github.com/photonlab/abel/internal/log"
	"github.com/photonlab/abel/internal/metrics"
)

// Options controls one pipeline run.
type Options struct {
	Method    string    // registry key, default "basex"
	Direction Direction // default inverse
	DR        float64   // radial pixel size, default 1.0
	Nbf       int       // basis functions for basis-backed methods, 0 = auto

	// Geometry. FrameSize recenters the image into an odd frame around
	// Origin; when zero the input must already be a centered odd square
	// (or an odd-length row for 1D data).
	FrameSize int
	Origin    *imaging.Origin

	// Prefilters, applied in this order.
	Symmetrize    bool
	MedianSize    int     // median prefilter window, 0 = off
	GaussianSigma float64 // Gaussian blur sigma, 0 = off

	// Postfilter.
	PostMedianSize int // median filter on the reconstruction, 0 = off
}

func (o Options) withDefaults() Options {
	if o.Method == "" {
		o.Method = "basex"
	}
	if o.Direction == "" {
		o.Direction = Inverse
	}
	if o.DR == 0 {
		o.DR = 1.0
	}
	return o
}

// Apply runs the full pipeline on img and returns a result of the same
// shape as the (possibly recentered) input. 1D inputs, passed as a single
// row, return a single row.
//
// Inputs whose size or parity the chosen method cannot handle fail with a
// GeometryError; no silent padding to a different output shape happens
// unless the caller asked for recentering via FrameSize.
func Apply(ctx context.Context, reg *Registry, img *mat.Dense, opts Options) (*mat.Dense, error) {
	opts = opts.withDefaults()
	logger := log.WithComponentFromContext(ctx, "transform")

	method, err := reg.Get(opts.Method)
	if err != nil {
		return nil, err
	}
	if !method.Supports(opts.Direction) {
		return nil, &DirectionError{Method: opts.Method, Direction: opts.Direction}
	}

	rows, cols := img.Dims()
	if rows == 0 || cols == 0 {
		return nil, geometryErr("transform", img, "empty image")
	}
	oneD := rows == 1
	if cols == 1 && rows > 1 {
		return nil, geometryErr("transform", img, "got an (N,1) column; 1D profiles must be a single row")
	}

	frame, err := resolveFrame(img, opts, oneD)
	if err != nil {
		return nil, err
	}

	if opts.Symmetrize {
		frame = imaging.Symmetrize(frame)
	}
	if opts.MedianSize > 0 {
		frame = imaging.MedianFilter(frame, opts.MedianSize)
	}
	if opts.GaussianSigma > 0 {
		frame = imaging.GaussianFilter(frame, opts.GaussianSigma)
	}

	start := time.Now()
	recon, err := method.Transform(ctx, frame, Params{
		Direction: opts.Direction,
		DR:        opts.DR,
		Nbf:       opts.Nbf,
	})
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveTransform(opts.Method, string(opts.Direction), "error", elapsed.Seconds())
		return nil, err
	}
	metrics.ObserveTransform(opts.Method, string(opts.Direction), "success", elapsed.Seconds())

	n, _ := frame.Dims()
	logger.Debug().
		Str(log.FieldMethod, opts.Method).
		Str(log.FieldDirection, string(opts.Direction)).
		Int(log.FieldSize, n).
		Dur("elapsed", elapsed).
		Msg("transform complete")

	if opts.PostMedianSize > 0 {
		recon = imaging.MedianFilter(recon, opts.PostMedianSize)
	}

	if oneD {
		// All rows of a replicated 1D frame reconstruct identically.
		out := mat.NewDense(1, n, nil)
		for j := 0; j < n; j++ {
			out.Set(0, j, recon.At(0, j))
		}
		return out, nil
	}
	return recon, nil
}

// resolveFrame produces the centered odd n x n frame the methods operate on.
// 1D rows are centered to an odd length and replicated into a square frame.
func resolveFrame(img *mat.Dense, opts Options, oneD bool) (*mat.Dense, error) {
	rows, cols := img.Dims()

	if oneD {
		n := opts.FrameSize
		if n == 0 {
			if !imaging.IsOdd(cols) {
				return nil, geometryErr("transform", img, "profile length is even; recenter with an odd frame size")
			}
			n = cols
		}
		if !imaging.IsOdd(n) {
			return nil, geometryErr("transform", img, "frame size must be odd")
		}
		origin := cols / 2
		if opts.Origin != nil {
			origin = opts.Origin.Col
		}
		row := centerRow(img, origin, n)
		frame := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				frame.Set(i, j, row[j])
			}
		}
		return frame, nil
	}

	if opts.FrameSize == 0 && opts.Origin == nil {
		if rows != cols {
			return nil, geometryErr("transform", img, "image is not square; set frame size and origin to recenter")
		}
		if !imaging.IsOdd(rows) {
			return nil, geometryErr("transform", img, "image size is even so it has no center pixel; recenter with an odd frame size")
		}
		return img, nil
	}

	n := opts.FrameSize
	if n == 0 {
		n = imaging.OddFrame(min(rows, cols))
	}
	if !imaging.IsOdd(n) {
		return nil, geometryErr("transform", img, "frame size must be odd")
	}
	origin := imaging.MidOrigin(img)
	if opts.Origin != nil {
		origin = *opts.Origin
	}
	return imaging.Center(img, origin, n)
}

func centerRow(img *mat.Dense, origin, n int) []float64 {
	_, cols := img.Dims()
	out := make([]float64, n)
	half := n / 2
	for j := 0; j < cols; j++ {
		dj := j - origin + half
		if dj < 0 || dj >= n {
			continue
		}
		out[dj] = img.At(0, j)
	}
	return out
}
