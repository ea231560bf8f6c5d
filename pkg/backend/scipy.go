package backend

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/domeniconappo/grib-interpolator/pkg/geo"
	"github.com/domeniconappo/grib-interpolator/pkg/grid"
	"github.com/domeniconappo/grib-interpolator/pkg/spatial"
	"github.com/domeniconappo/grib-interpolator/pkg/store"
)

// exactHitTolerance is the distance below which a target cell is treated
// as coincident with a source node (§4.3 step 3, "exact hit" branch).
const exactHitTolerance = 1e-10

// invalidLonThreshold marks target cells whose longitude is a sentinel for
// "no coordinate here" rather than a real value.
const invalidLonThreshold = -1.0e10

// Scipy is the spatial-index-backed backend (§4.3 of the design). One instance
// is built per source grid and reused across interpolate calls.
type Scipy struct {
	desc       grid.Descriptor
	mode       store.Mode
	index      *spatial.Index
	upperBound float64

	sourceMV      float64
	targetMV      float64
	rotatedTarget bool
	parallel      bool
}

// NewScipy builds the spatial index over the source grid and derives its
// out-of-domain upper bound. sourceLats/sourceLons must have length
// desc.NumValues. When parallel is true, Build partitions target cells
// across a worker pool sized to the host's CPU count.
func NewScipy(sourceLats, sourceLons []float64, desc grid.Descriptor, mode store.Mode, sourceMV, targetMV float64, rotatedTarget, parallel bool) (*Scipy, error) {
	if len(sourceLats) != len(sourceLons) {
		return nil, fmt.Errorf("backend: source_lats and source_lons length mismatch (%d != %d)", len(sourceLats), len(sourceLons))
	}

	points := make([][3]float64, len(sourceLats))
	for i := range sourceLats {
		p := geo.ToCartesian(sourceLats[i], sourceLons[i], desc.EarthRadiusM)
		points[i] = [3]float64{p.X, p.Y, p.Z}
	}

	idx, err := spatial.Build(points)
	if err != nil {
		return nil, err
	}

	return &Scipy{
		desc:          desc,
		mode:          mode,
		index:         idx,
		upperBound:    idx.UpperBound(desc.Ny),
		sourceMV:      sourceMV,
		targetMV:      targetMV,
		rotatedTarget: rotatedTarget,
		parallel:      parallel,
	}, nil
}

func (s *Scipy) targetPoint(lat, lon float64) [3]float64 {
	if s.rotatedTarget {
		u := geo.ToCartesianUnit(lat, lon)
		r := geo.RotatedToRegular(u, s.desc.SouthPoleLat, s.desc.SouthPoleLon)
		p := geo.Scale(r, s.desc.EarthRadiusM)
		return [3]float64{p.X, p.Y, p.Z}
	}
	p := geo.ToCartesian(lat, lon, s.desc.EarthRadiusM)
	return [3]float64{p.X, p.Y, p.Z}
}

func (s *Scipy) k() int {
	if s.mode == store.Invdist {
		return 4
	}
	return 1
}

// Build implements Backend.Build for both nearest and invdist modes.
func (s *Scipy) Build(values []float64, targetLats, targetLons [][]float64) (Result, *store.Table, error) {
	shape, flatLats, flatLons := flatten(targetLats, targetLons)
	n := len(flatLats)
	k := s.k()

	result := make([]float64, n)
	var outs int64
	sentinel := int32(len(values))

	if s.mode == store.Nearest {
		indexes := make([]int32, n)
		runOverIndices(s.parallel, n, func(i int) {
			if !validTargetCoord(flatLons[i], s.targetMV) {
				result[i] = s.targetMV
				indexes[i] = sentinel
				return
			}
			dists, idxs := s.index.Query(s.targetPoint(flatLats[i], flatLons[i]), 1)
			d, ix := dists[0], idxs[0]
			switch {
			case d <= exactHitTolerance || d <= s.upperBound:
				result[i] = sourceValueOrMV(values, ix, s.sourceMV)
				indexes[i] = int32(ix)
			default:
				atomic.AddInt64(&outs, 1)
				result[i] = s.targetMV
				indexes[i] = sentinel
			}
		})
		tbl := &store.Table{Nearest: &store.NearestTable{Shape: shape, NumVals: len(values), Indexes: indexes}}
		return Result{Shape: shape, Values: result, Outs: int(outs)}, tbl, nil
	}

	indexes := make([][4]int32, n)
	weights := make([][4]float64, n)
	runOverIndices(s.parallel, n, func(i int) {
		if !validTargetCoord(flatLons[i], s.targetMV) {
			result[i] = s.targetMV
			weights[i] = [4]float64{1, 0, 0, 0}
			indexes[i] = [4]int32{sentinel, sentinel, sentinel, sentinel}
			return
		}
		dists, idxs := s.index.Query(s.targetPoint(flatLats[i], flatLons[i]), k)
		padQuery(&dists, &idxs, k, sentinel)

		switch {
		case dists[0] <= exactHitTolerance:
			result[i] = sourceValueOrMV(values, idxs[0], s.sourceMV)
			weights[i] = [4]float64{1, 0, 0, 0}
			indexes[i] = [4]int32{int32(idxs[0]), sentinel, sentinel, sentinel}
		case dists[0] <= s.upperBound:
			w, val := invdistWeights(values, dists, idxs, s.sourceMV, s.targetMV)
			result[i] = val
			weights[i] = w
			for j := 0; j < 4; j++ {
				indexes[i][j] = int32(idxs[j])
			}
			if w[0] == 1 && isMissing(values[idxs[0]], s.sourceMV) {
				// Every neighbor was excluded: point the row at the missing
				// slot so Apply masks the cell to targetMV as well.
				indexes[i] = [4]int32{sentinel, sentinel, sentinel, sentinel}
			}
		default:
			atomic.AddInt64(&outs, 1)
			result[i] = s.targetMV
			weights[i] = [4]float64{1, 0, 0, 0}
			indexes[i] = [4]int32{sentinel, sentinel, sentinel, sentinel}
		}
	})
	tbl := &store.Table{Invdist: &store.InvdistTable{Shape: shape, NumVals: len(values), Indexes: indexes, Weights: weights}}
	return Result{Shape: shape, Values: result, Outs: int(outs)}, tbl, nil
}

// Apply implements Backend.Apply: gather-and-weight using a previously
// built table, without repeating the spatial search. It appends the
// target missing value as a virtual entry at source index len(values)
// (the "missing slot") so the out-of-domain sentinel written by Build
// gathers directly into a masked output, fusing mask and gather into one
// pass — the optimization documented in the design as the missing-slot
// trick.
func (s *Scipy) Apply(tbl *store.Table, values []float64, targetLats, targetLons [][]float64) (Result, error) {
	shape, _, _ := flatten(targetLats, targetLons)
	extended := append(append([]float64(nil), values...), s.targetMV)

	if s.mode == store.Nearest {
		if tbl.Nearest == nil {
			return Result{}, fmt.Errorf("backend: table is not a nearest table")
		}
		if tbl.Nearest.Shape != shape {
			return Result{}, fmt.Errorf("backend: table shape %v does not match target shape %v", tbl.Nearest.Shape, shape)
		}
		out := make([]float64, len(tbl.Nearest.Indexes))
		for i, ix := range tbl.Nearest.Indexes {
			out[i] = extended[ix]
		}
		return Result{Shape: shape, Values: out}, nil
	}

	if tbl.Invdist == nil {
		return Result{}, fmt.Errorf("backend: table is not an invdist table")
	}
	if tbl.Invdist.Shape != shape {
		return Result{}, fmt.Errorf("backend: table shape %v does not match target shape %v", tbl.Invdist.Shape, shape)
	}
	out := make([]float64, len(tbl.Invdist.Indexes))
	for i := range tbl.Invdist.Indexes {
		var sum float64
		for j := 0; j < 4; j++ {
			ix := tbl.Invdist.Indexes[i][j]
			sum += tbl.Invdist.Weights[i][j] * extended[ix]
		}
		out[i] = sum
	}
	return Result{Shape: shape, Values: out}, nil
}

// invdistWeights computes the 1/d^2 normalized weights and the resulting
// weighted value for the 4 nearest source neighbors, excluding-and-
// renormalizing any neighbor whose source value equals sourceMV. If every
// neighbor is excluded, the cell is masked to targetMV.
func invdistWeights(values []float64, dists []float64, idxs []int, sourceMV, targetMV float64) ([4]float64, float64) {
	var rawW [4]float64
	var included [4]bool
	var anyIncluded bool

	for j := 0; j < 4; j++ {
		v := values[idxs[j]]
		if isMissing(v, sourceMV) {
			continue
		}
		rawW[j] = 1 / (dists[j] * dists[j])
		included[j] = true
		anyIncluded = true
	}

	if !anyIncluded {
		return [4]float64{1, 0, 0, 0}, targetMV
	}

	var sum float64
	for j := 0; j < 4; j++ {
		if included[j] {
			sum += rawW[j]
		}
	}

	var weights [4]float64
	var val float64
	for j := 0; j < 4; j++ {
		if included[j] {
			weights[j] = rawW[j] / sum
			val += weights[j] * values[idxs[j]]
		}
	}
	return weights, val
}

// validTargetCoord reports whether a target cell's longitude identifies a
// real coordinate, rather than the engine's "no data here" sentinels.
func validTargetCoord(lon, targetMV float64) bool {
	if lon <= invalidLonThreshold {
		return false
	}
	return !isMissing(lon, targetMV)
}

func isMissing(v, mv float64) bool {
	if math.IsNaN(mv) {
		return math.IsNaN(v)
	}
	return v == mv
}

func sourceValueOrMV(values []float64, idx int, sourceMV float64) float64 {
	if idx >= len(values) {
		return sourceMV
	}
	return values[idx]
}

// padQuery extends a k-nearest query result out to exactly 4 entries,
// using the sentinel index and +Inf distance for any missing slot. This
// only matters for pathologically small source grids (fewer than 4
// nodes); real grids always have at least 4.
func padQuery(dists *[]float64, idxs *[]int, k int, sentinel int32) {
	for len(*dists) < 4 {
		*dists = append(*dists, math.Inf(1))
		*idxs = append(*idxs, int(sentinel))
	}
}

// flatten linearizes a pair of conformable 2-D target arrays into
// row-major flat slices, and returns their shared shape.
func flatten(lats, lons [][]float64) (shape [2]int, flatLats, flatLons []float64) {
	rows := len(lats)
	cols := 0
	if rows > 0 {
		cols = len(lats[0])
	}
	shape = [2]int{rows, cols}
	flatLats = make([]float64, 0, rows*cols)
	flatLons = make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		flatLats = append(flatLats, lats[r]...)
		flatLons = append(flatLons, lons[r]...)
	}
	return shape, flatLats, flatLons
}
