// Package store implements InterTableStore: a directory-backed,
// content-addressed cache of interpolation tables. Building a table can
// take minutes to hours on a large source grid; applying one must take
// well under a second, so the store exists to make the second and later
// calls for the same (grid, method, mode) near-instantaneous.
package store

// Method selects the distance metric and source the backend uses.
type Method string

// Supported methods.
const (
	Scipy Method = "scipy"
	Grib  Method = "grib"
)

// Mode selects nearest (k=1) vs inverse-distance (k=4).
type Mode string

// Supported modes.
const (
	Nearest Mode = "nearest"
	Invdist Mode = "invdist"
)

// NearestTable is the scipy-backend table for Mode Nearest: one index per
// target cell. Shape records the original 2-D target shape so Indexes can
// be reshaped back on apply. Indexes[i] == NumVals is the "out of
// domain" sentinel.
type NearestTable struct {
	Shape   [2]int
	NumVals int
	Indexes []int32
}

// InvdistTable is the scipy-backend table for Mode Invdist: four indexes
// and four weights per target cell. A row's weights sum to 1 for valid
// cells; an out-of-domain row has the form Weights=[1,0,0,0] with
// Indexes=[NumVals,NumVals,NumVals,NumVals].
type InvdistTable struct {
	Shape   [2]int
	NumVals int
	Indexes [][4]int32
	Weights [][4]float64
}

// GribNearestTable is the grib-backend table for Mode Nearest: parallel
// vectors recording which target cells were valid (Xs, Ys are the 2-D
// indices of survivors) and the source index each maps to.
type GribNearestTable struct {
	Shape [2]int
	Xs    []int32
	Ys    []int32
	Idxs  []int32
}

// GribInvdistTable is the grib-backend table for Mode Invdist: the same
// surviving-cell coordinates, plus four neighbor indexes and weights per
// surviving cell.
type GribInvdistTable struct {
	Shape                    [2]int
	Xs, Ys                   []int32
	Idx1, Idx2, Idx3, Idx4   []int32
	W1, W2, W3, W4           []float64
}

// Table is the union of the four on-disk table shapes. Exactly one field
// is non-nil, selected by the (Method, Mode) the table was built for.
type Table struct {
	Nearest      *NearestTable
	Invdist      *InvdistTable
	GribNearest  *GribNearestTable
	GribInvdist  *GribInvdistTable
}
