// Package spatial provides a nearest-neighbor index over the source grid's
// 3-D Cartesian points, used by the scipy-style backend to answer k=1 and
// k=4 nearest-neighbor queries. It is built on github.com/dhconnelly/rtreego
// rather than a classic KD-tree, but exposes the same query contract
// (distances, indexes) the interpolation math needs.
package spatial

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
)

// pointTol is the half-width used to turn a dimensionless point into the
// degenerate bounding box rtreego's Spatial interface requires.
const pointTol = 1e-9

// indexedPoint implements rtreego.Spatial for a single source node.
type indexedPoint struct {
	idx   int
	coord rtreego.Point
}

func (p indexedPoint) Bounds() rtreego.Rect {
	return p.coord.ToRect(pointTol)
}

// Index answers nearest-neighbor queries over a fixed set of 3-D points.
// It is built once from the source grid and is read-only afterwards, so it
// can be shared freely across concurrent queries.
type Index struct {
	tree   *rtreego.Rtree
	points []rtreego.Point // kept to compute exact Euclidean distances
}

// Build constructs an Index over the given 3-D points. It returns an error
// if fewer than two points are supplied: a degenerate source grid cannot
// support the k=2 self-query the upper-bound derivation needs.
func Build(points [][3]float64) (*Index, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("spatial: need at least 2 source points, got %d", len(points))
	}

	tree := rtreego.NewTree(3, 25, 50)
	rpoints := make([]rtreego.Point, len(points))
	for i, p := range points {
		rp := rtreego.Point{p[0], p[1], p[2]}
		rpoints[i] = rp
		tree.Insert(indexedPoint{idx: i, coord: rp})
	}

	return &Index{tree: tree, points: rpoints}, nil
}

// Query returns the k nearest source points to p, nearest first, as
// parallel (distance, index) slices of length k.
func (idx *Index) Query(p [3]float64, k int) (dists []float64, idxs []int) {
	qp := rtreego.Point{p[0], p[1], p[2]}
	neighbors := idx.tree.NearestNeighbors(k, qp)

	dists = make([]float64, len(neighbors))
	idxs = make([]int, len(neighbors))
	for i, n := range neighbors {
		ip := n.(indexedPoint)
		idxs[i] = ip.idx
		dists[i] = euclidean(qp, ip.coord)
	}
	return dists, idxs
}

// UpperBound derives the out-of-domain rejection distance for this index,
// per the source grid's own nearest-neighbor spacing: it self-queries every
// source point for its 2 nearest neighbors (itself at distance 0, and its
// true nearest neighbor) and returns
//
//	max(observed distances) + max(observed distances)*4/ny
//
// ny is the grid's along-meridian point count, used to scale the slack
// added for target points that fall just outside the source bounding area.
func (idx *Index) UpperBound(ny int) float64 {
	var dmax float64
	for _, p := range idx.points {
		dists, _ := idx.Query([3]float64{p[0], p[1], p[2]}, 2)
		for _, d := range dists {
			if d > dmax {
				dmax = d
			}
		}
	}
	return dmax + dmax*4/float64(ny)
}

func euclidean(a, b rtreego.Point) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
