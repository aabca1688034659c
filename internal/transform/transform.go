// SPDX-License-Identifier: MIT

// Package transform ties the Abel transform methods together: a registry of
// named methods and the image pipeline (centering, prefilters, transform,
// postfilter) applied around them.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/basis"
	"github.com/photonlab/abel/internal/imaging"
)

// Direction selects between projecting a distribution (forward) and
// reconstructing one from its projection (inverse).
type Direction string

const (
	Forward Direction = "forward"
	Inverse Direction = "inverse"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case Forward:
		return Forward, nil
	case Inverse:
		return Inverse, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want forward or inverse)", s)
	}
}

// Params are the per-call inputs a method receives after the pipeline has
// centered and filtered the image.
type Params struct {
	Direction Direction
	DR        float64 // radial pixel size
	Nbf       int     // basis functions for basis-backed methods, 0 = auto
}

// Method is one Abel transform implementation operating on a centered image
// with an odd frame size.
type Method interface {
	// Name is the registry key, e.g. "basex".
	Name() string
	// Supports reports whether the method implements the given direction.
	Supports(d Direction) bool
	// Transform runs the method on a centered odd n x n image.
	Transform(ctx context.Context, img *mat.Dense, p Params) (*mat.Dense, error)
}

// UnknownMethodError reports a transform request for a method that is not
// registered.
type UnknownMethodError struct {
	Name  string
	Known []string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown transform method %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// DirectionError reports a direction a method does not implement.
type DirectionError struct {
	Method    string
	Direction Direction
}

func (e *DirectionError) Error() string {
	return fmt.Sprintf("method %q does not support the %s transform", e.Method, e.Direction)
}

// Registry maps method names to implementations.
type Registry struct {
	methods map[string]Method
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// DefaultRegistry returns a registry with the built-in methods. store backs
// the basis-set cache of the BASEX method and may be nil to always
// regenerate.
func DefaultRegistry(store basis.Store) *Registry {
	r := NewRegistry()
	r.Register(NewBasexMethod(store))
	r.Register(DirectMethod{})
	return r
}

// Register adds m under its name, replacing any previous entry.
func (r *Registry) Register(m Method) {
	r.methods[m.Name()] = m
}

// Get returns the method registered under name.
func (r *Registry) Get(name string) (Method, error) {
	if m, ok := r.methods[name]; ok {
		return m, nil
	}
	return nil, &UnknownMethodError{Name: name, Known: r.Names()}
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// geometryErr is shorthand for the error every unsupported shape produces.
func geometryErr(op string, img *mat.Dense, reason string) error {
	rows, cols := img.Dims()
	return &imaging.GeometryError{Op: op, Rows: rows, Cols: cols, Reason: reason}
}
