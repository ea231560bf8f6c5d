// Package oracle defines the external great-circle nearest-neighbor
// service the grib backend delegates to. It is conceptually
// "given (lat, lon), return up to n nearest source indexes and their
// great-circle distances" for a source grid identified by an opaque
// handle (gid), as provided by the message-reader collaborator.
package oracle

import "errors"

// ErrOutOfGrid is returned by a NearestOracle when the query point falls
// outside the source grid it was asked about. It is the grib backend's
// analog of a KD-tree out-of-domain rejection, and is treated as a
// per-cell, non-fatal condition by callers.
var ErrOutOfGrid = errors.New("oracle: point is out of grid")

// Candidate is one nearest-neighbor result: the source node index and its
// great-circle distance in meters from the query point.
type Candidate struct {
	Index    int
	Distance float64
}

// NearestOracle finds the n nearest source nodes to a query point on a
// source grid identified by gid, ordered nearest first.
//
// Implementations return ErrOutOfGrid when the query point cannot be
// located on the grid at all (as opposed to simply being far from every
// node, which is a valid, if distant, result).
type NearestOracle interface {
	FindNearest(gid int, lat, lon float64, n int) ([]Candidate, error)
}
