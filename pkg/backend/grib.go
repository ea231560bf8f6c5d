package backend

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/domeniconappo/grib-interpolator/pkg/oracle"
	"github.com/domeniconappo/grib-interpolator/pkg/store"
)

// exactOracleHit is the great-circle distance at or below which a candidate
// is treated as coincident with the query point.
const exactOracleHit = 0.0

// Grib is the oracle-backed backend (§4.4 of the design): it delegates
// nearest-neighbor search entirely to a NearestOracle tied to a source
// grid handle, and so needs neither a CoordTransform nor a SpatialIndex.
type Grib struct {
	oracle oracle.NearestOracle
	gid    int
	mode   store.Mode

	targetMV float64
	parallel bool
}

// NewGrib builds a Grib backend for source grid gid, querying ora for
// nearest-neighbor candidates. When parallel is true, Build partitions
// target cells across a worker pool sized to the host's CPU count; each
// oracle call is independent, so this only helps when the oracle itself can
// serve concurrent requests.
func NewGrib(ora oracle.NearestOracle, gid int, mode store.Mode, targetMV float64, parallel bool) *Grib {
	return &Grib{oracle: ora, gid: gid, mode: mode, targetMV: targetMV, parallel: parallel}
}

func (g *Grib) n() int {
	if g.mode == store.Invdist {
		return 4
	}
	return 1
}

// gribCell holds one target cell's oracle result, computed in the parallel
// phase of Build and reassembled into the table's parallel arrays
// afterward, in target-index order — the grib-backend analog of the
// teacher's job-channel-then-ordered-reassembly pattern in LoadCellsParallel,
// needed here (unlike Scipy's fixed-size tables) because only a subset of
// cells survive into the table.
type gribCell struct {
	valid    bool
	row, col int32
	idx      int32
	idx4     [4]int32
	w4       [4]float64
}

// Build implements Backend.Build. Unlike Scipy, a Grib table only records
// surviving (valid, in-grid) cells — xs/ys give their 2-D coordinates, so
// Apply can scatter results back without replaying the validity mask.
func (g *Grib) Build(values []float64, targetLats, targetLons [][]float64) (Result, *store.Table, error) {
	shape, flatLats, flatLons := flatten(targetLats, targetLons)
	n := len(flatLats)
	result := make([]float64, n)
	for i := range result {
		result[i] = g.targetMV
	}
	cells := make([]gribCell, n)
	var outs int64
	nn := g.n()

	runOverIndices(g.parallel, n, func(i int) {
		if !validTargetCoord(flatLons[i], g.targetMV) {
			return
		}
		row, col := int32(i/shape[1]), int32(i%shape[1])

		candidates, err := g.oracle.FindNearest(g.gid, flatLats[i], flatLons[i], nn)
		if err != nil {
			atomic.AddInt64(&outs, 1)
			return
		}

		if g.mode == store.Nearest {
			if len(candidates) == 0 {
				atomic.AddInt64(&outs, 1)
				return
			}
			c := candidates[0]
			result[i] = values[c.Index]
			cells[i] = gribCell{valid: true, row: row, col: col, idx: int32(c.Index)}
			return
		}

		w, idx, val, ok := gribInvdistWeights(values, candidates)
		if !ok {
			atomic.AddInt64(&outs, 1)
			return
		}
		result[i] = val
		cells[i] = gribCell{valid: true, row: row, col: col, idx4: idx, w4: w}
	})

	var xs, ys, idxs []int32
	var idx1, idx2, idx3, idx4 []int32
	var w1, w2, w3, w4 []float64
	for _, c := range cells {
		if !c.valid {
			continue
		}
		xs = append(xs, c.row)
		ys = append(ys, c.col)
		if g.mode == store.Nearest {
			idxs = append(idxs, c.idx)
			continue
		}
		idx1 = append(idx1, c.idx4[0])
		idx2 = append(idx2, c.idx4[1])
		idx3 = append(idx3, c.idx4[2])
		idx4 = append(idx4, c.idx4[3])
		w1 = append(w1, c.w4[0])
		w2 = append(w2, c.w4[1])
		w3 = append(w3, c.w4[2])
		w4 = append(w4, c.w4[3])
	}

	if g.mode == store.Nearest {
		tbl := &store.Table{GribNearest: &store.GribNearestTable{Shape: shape, Xs: xs, Ys: ys, Idxs: idxs}}
		return Result{Shape: shape, Values: result, Outs: int(outs)}, tbl, nil
	}
	tbl := &store.Table{GribInvdist: &store.GribInvdistTable{
		Shape: shape, Xs: xs, Ys: ys,
		Idx1: idx1, Idx2: idx2, Idx3: idx3, Idx4: idx4,
		W1: w1, W2: w2, W3: w3, W4: w4,
	}}
	return Result{Shape: shape, Values: result, Outs: int(outs)}, tbl, nil
}

// Apply implements Backend.Apply: scatter stored indexes/weights onto a new
// value field, identical in shape to the step that built the table.
func (g *Grib) Apply(tbl *store.Table, values []float64, targetLats, targetLons [][]float64) (Result, error) {
	shape, _, _ := flatten(targetLats, targetLons)

	if g.mode == store.Nearest {
		if tbl.GribNearest == nil {
			return Result{}, fmt.Errorf("backend: table is not a grib nearest table")
		}
		if tbl.GribNearest.Shape != shape {
			return Result{}, fmt.Errorf("backend: table shape %v does not match target shape %v", tbl.GribNearest.Shape, shape)
		}
		out := make([]float64, shape[0]*shape[1])
		for i := range out {
			out[i] = g.targetMV
		}
		for k, ix := range tbl.GribNearest.Idxs {
			row, col := tbl.GribNearest.Xs[k], tbl.GribNearest.Ys[k]
			out[int(row)*shape[1]+int(col)] = values[ix]
		}
		return Result{Shape: shape, Values: out}, nil
	}

	if tbl.GribInvdist == nil {
		return Result{}, fmt.Errorf("backend: table is not a grib invdist table")
	}
	if tbl.GribInvdist.Shape != shape {
		return Result{}, fmt.Errorf("backend: table shape %v does not match target shape %v", tbl.GribInvdist.Shape, shape)
	}
	t := tbl.GribInvdist
	out := make([]float64, shape[0]*shape[1])
	for i := range out {
		out[i] = g.targetMV
	}
	for k := range t.Xs {
		sum := t.W1[k]*values[t.Idx1[k]] +
			t.W2[k]*values[t.Idx2[k]] +
			t.W3[k]*values[t.Idx3[k]] +
			t.W4[k]*values[t.Idx4[k]]
		out[int(t.Xs[k])*shape[1]+int(t.Ys[k])] = sum
	}
	return Result{Shape: shape, Values: out}, nil
}

// gribInvdistWeights implements §4.4 step 4: linear (not squared) inverse
// distance, padded to 4 candidates, with an exact-hit short circuit. ok is
// false only when the oracle returned no candidates at all.
func gribInvdistWeights(values []float64, candidates []oracle.Candidate) (w [4]float64, idx [4]int32, val float64, ok bool) {
	if len(candidates) == 0 {
		return w, idx, 0, false
	}
	for _, c := range candidates {
		if c.Distance <= exactOracleHit {
			idx[0] = int32(c.Index)
			w[0] = 1
			return w, idx, values[c.Index], true
		}
	}

	padded := append([]oracle.Candidate(nil), candidates...)
	for len(padded) < 4 {
		// Padding slot: reuses candidate 0's index but carries zero weight
		// (distance +Inf), so it never contributes to the sum below —
		// mirrors the scipy backend's sentinel-with-Inf-distance padding.
		padded = append(padded, oracle.Candidate{Index: candidates[0].Index, Distance: math.Inf(1)})
	}

	var rawW [4]float64
	var sum float64
	for j := 0; j < 4; j++ {
		idx[j] = int32(padded[j].Index)
		rawW[j] = 1 / padded[j].Distance
		sum += rawW[j]
	}
	for j := 0; j < 4; j++ {
		w[j] = rawW[j] / sum
		val += w[j] * values[idx[j]]
	}
	return w, idx, val, true
}
