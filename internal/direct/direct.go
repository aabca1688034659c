// SPDX-License-Identifier: MIT

// Package direct implements the Abel transform pair by piecewise analytic
// integration of radial profiles. The forward transform projects a radial
// distribution onto the detector axis; the inverse recovers it from the
// projection derivative.
package direct

import (
	"fmt"
	"math"
)

// ForwardTransform computes the forward Abel transform of a radial profile
// sampled at r = 0, dr, 2dr, ...:
//
//	F(y) = 2 * Integral_y^R f(r) r / sqrt(r^2 - y^2) dr
//
// Each cell is integrated analytically with f held at its midpoint value,
// which keeps the integrable singularity at r = y exact.
func ForwardTransform(profile []float64, dr float64) ([]float64, error) {
	n := len(profile)
	if n < 2 {
		return nil, fmt.Errorf("direct.forward: profile needs at least 2 samples, got %d", n)
	}
	if dr <= 0 {
		return nil, fmt.Errorf("direct.forward: pixel size dr must be positive, got %g", dr)
	}

	out := make([]float64, n)
	for j := 0; j < n; j++ {
		y2 := float64(j * j)
		acc := 0.0
		prev := 0.0 // sqrt(r^2 - y^2) at the lower cell edge, zero at r = y
		for i := j; i < n-1; i++ {
			edge := math.Sqrt(float64((i+1)*(i+1)) - y2)
			mid := (profile[i] + profile[i+1]) / 2
			acc += mid * (edge - prev)
			prev = edge
		}
		out[j] = 2 * dr * acc
	}
	return out, nil
}

// InverseTransform computes the inverse Abel transform of a projection
// profile sampled at y = 0, dr, 2dr, ...:
//
//	f(r) = -(1/pi) * Integral_r^R F'(y) / sqrt(y^2 - r^2) dy
//
// F' is taken by central differences and each cell uses the analytic weight
// acosh(y/r). The axis sample integrates F'(y)/y through the curvature of F
// at the origin instead, where the acosh weight is undefined.
func InverseTransform(profile []float64, dr float64) ([]float64, error) {
	n := len(profile)
	if n < 3 {
		return nil, fmt.Errorf("direct.inverse: profile needs at least 3 samples, got %d", n)
	}
	if dr <= 0 {
		return nil, fmt.Errorf("direct.inverse: pixel size dr must be positive, got %g", dr)
	}

	deriv := make([]float64, n)
	deriv[0] = (profile[1] - profile[0]) / dr
	deriv[n-1] = (profile[n-1] - profile[n-2]) / dr
	for i := 1; i < n-1; i++ {
		deriv[i] = (profile[i+1] - profile[i-1]) / (2 * dr)
	}

	out := make([]float64, n)
	for j := 1; j < n; j++ {
		fj := float64(j)
		acc := 0.0
		prev := 0.0 // acosh(y/r) at the lower cell edge, zero at y = r
		for i := j; i < n-1; i++ {
			edge := math.Acosh(float64(i+1) / fj)
			mid := (deriv[i] + deriv[i+1]) / 2
			acc += mid * (edge - prev)
			prev = edge
		}
		out[j] = -acc / math.Pi
	}

	// Axis pixel: F'(y)/y -> F''(0) as y -> 0 for a symmetric projection.
	acc := 2 * (profile[1] - profile[0]) / dr
	for i := 1; i < n-1; i++ {
		mid := (deriv[i] + deriv[i+1]) / 2
		acc += mid * math.Log(float64(i+1)/float64(i))
	}
	out[0] = -acc / math.Pi

	return out, nil
}
