// Package backend implements the two interpolation engines the facade in
// package interp can dispatch to: the in-process scipy-style backend
// (KD-tree-ish spatial index over Cartesian points) and the grib backend
// (delegates nearest-neighbor search to an external great-circle oracle).
//
// Both expose the same fixed capability set — Build and Apply — modeled as
// a closed variant rather than open polymorphism, per the engine's design:
// the set of (method, mode) combinations is fixed at four, and a backend
// never interprets a table built by another backend.
package backend

import "github.com/domeniconappo/grib-interpolator/pkg/store"

// Result is the output of a Build or Apply call: the resampled field,
// reshaped to the target grid's shape, plus a count of cells that could
// not be resolved (out of the source domain, or an oracle miss). Outs is
// counted by Build only; Apply does not count and leaves it at zero.
type Result struct {
	Shape  [2]int
	Values []float64 // row-major, len == Shape[0]*Shape[1]
	Outs   int
}

// At returns the value at (row, col) in row-major order.
func (r Result) At(row, col int) float64 {
	return r.Values[row*r.Shape[1]+col]
}

// Backend builds a fresh interpolation table from a value field and target
// grid, or applies a previously-built table to a new value field.
type Backend interface {
	// Build computes the result for (values, targetLats, targetLons) and
	// returns, alongside it, the table that makes future calls for the
	// same target grid near-instantaneous via Apply.
	Build(values []float64, targetLats, targetLons [][]float64) (Result, *store.Table, error)

	// Apply consumes a table produced by Build (in the same backend) and a
	// new value field, without repeating the spatial search.
	Apply(tbl *store.Table, values []float64, targetLats, targetLons [][]float64) (Result, error)
}
