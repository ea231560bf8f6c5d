package backend

import (
	"math"
	"testing"

	"github.com/domeniconappo/grib-interpolator/pkg/geo"
	"github.com/domeniconappo/grib-interpolator/pkg/grid"
	"github.com/domeniconappo/grib-interpolator/pkg/store"
)

const earthRadius = 6371000.0

func regularDescriptor(numValues, ny int) grid.Descriptor {
	return grid.Descriptor{
		Family:       grid.RegularLL,
		EarthRadiusM: earthRadius,
		NumValues:    numValues,
		Ny:           ny,
		MissingValue: -9999,
	}
}

// gridPoints builds an nx*ny lat/lon grid with 1-degree spacing starting at
// (lat0, lon0), row-major (lat varies slower), plus values[i*nx+j] = i*10+j.
func gridPoints(nx, ny int, lat0, lon0 float64) (lats, lons, values []float64) {
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			lats = append(lats, lat0+float64(i))
			lons = append(lons, lon0+float64(j))
			values = append(values, float64(i*10+j))
		}
	}
	return
}

func TestScipyNearestRegularGrid(t *testing.T) {
	// S1: 4x4 source grid over [0,3]x[0,3], target shifted by (+0.1,+0.1).
	nx, ny := 4, 4
	sourceLats, sourceLons, values := gridPoints(nx, ny, 0, 0)
	desc := regularDescriptor(len(values), ny)

	b, err := NewScipy(sourceLats, sourceLons, desc, store.Nearest, desc.MissingValue, -1, false, false)
	if err != nil {
		t.Fatalf("NewScipy: %v", err)
	}

	targetLats := make([][]float64, ny)
	targetLons := make([][]float64, ny)
	for i := 0; i < ny; i++ {
		targetLats[i] = make([]float64, nx)
		targetLons[i] = make([]float64, nx)
		for j := 0; j < nx; j++ {
			targetLats[i][j] = float64(i) + 0.1
			targetLons[i][j] = float64(j) + 0.1
		}
	}

	result, _, err := b.Build(values, targetLats, targetLons)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			want := float64(i*10 + j)
			got := result.At(i, j)
			if got != want {
				t.Errorf("cell (%d,%d) = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestScipyInvdistFourEquidistantNeighbors(t *testing.T) {
	// S2: source 2x2 at +-1 degree around the origin, target = (0,0).
	sourceLats := []float64{1, 1, -1, -1}
	sourceLons := []float64{-1, 1, -1, 1}
	values := []float64{10, 20, 30, 40}
	desc := regularDescriptor(len(values), 2)

	b, err := NewScipy(sourceLats, sourceLons, desc, store.Invdist, desc.MissingValue, -1, false, false)
	if err != nil {
		t.Fatalf("NewScipy: %v", err)
	}

	result, _, err := b.Build(values, [][]float64{{0}}, [][]float64{{0}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := 25.0
	if math.Abs(result.At(0, 0)-want) > 1e-6 {
		t.Errorf("result = %v, want %v", result.At(0, 0), want)
	}
}

func TestScipyExactHit(t *testing.T) {
	// S3: target cell coincides with a source node.
	nx, ny := 2, 2
	sourceLats, sourceLons, values := gridPoints(nx, ny, 0, 0)
	desc := regularDescriptor(len(values), ny)

	b, err := NewScipy(sourceLats, sourceLons, desc, store.Invdist, desc.MissingValue, -1, false, false)
	if err != nil {
		t.Fatalf("NewScipy: %v", err)
	}

	// Source node at (1,1) has value 1*10+1 = 11, flat index 3.
	result, tbl, err := b.Build(values, [][]float64{{1}}, [][]float64{{1}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.At(0, 0) != 11 {
		t.Errorf("result = %v, want 11", result.At(0, 0))
	}
	if tbl.Invdist.Weights[0] != [4]float64{1, 0, 0, 0} {
		t.Errorf("weights = %v, want [1 0 0 0]", tbl.Invdist.Weights[0])
	}
	if tbl.Invdist.Indexes[0][0] != 3 {
		t.Errorf("indexes[0] = %v, want 3", tbl.Invdist.Indexes[0][0])
	}
}

func TestScipyOutOfDomain(t *testing.T) {
	// S4: source covers a small patch of Europe, target is far south.
	nx, ny := 4, 4
	sourceLats, sourceLons, values := gridPoints(nx, ny, 40, -10)
	desc := regularDescriptor(len(values), ny)

	b, err := NewScipy(sourceLats, sourceLons, desc, store.Nearest, desc.MissingValue, -999, false, false)
	if err != nil {
		t.Fatalf("NewScipy: %v", err)
	}

	result, _, err := b.Build(values, [][]float64{{-85}}, [][]float64{{0}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.At(0, 0) != -999 {
		t.Errorf("result = %v, want target_mv -999", result.At(0, 0))
	}
	if result.Outs != 1 {
		t.Errorf("outs = %d, want 1", result.Outs)
	}
}

func TestScipyRotatedTargetMatchesExternallyRotatedRegular(t *testing.T) {
	// S5: rotating the target internally must match pre-rotating it
	// externally and calling with rotatedTarget=false.
	nx, ny := 4, 4
	sourceLats, sourceLons, values := gridPoints(nx, ny, 0, 0)
	desc := regularDescriptor(len(values), ny)
	desc.Family = grid.RotatedLL
	desc.SouthPoleLat = -35
	desc.SouthPoleLon = -15

	regular, err := NewScipy(sourceLats, sourceLons, desc, store.Nearest, desc.MissingValue, -1, false, false)
	if err != nil {
		t.Fatalf("NewScipy (regular): %v", err)
	}
	rotated, err := NewScipy(sourceLats, sourceLons, desc, store.Nearest, desc.MissingValue, -1, true, false)
	if err != nil {
		t.Fatalf("NewScipy (rotated): %v", err)
	}

	regLat, regLon := 1.5, 1.5
	rotatedPoint := geo.RegularToRotated(geo.ToCartesianUnit(regLat, regLon), desc.SouthPoleLat, desc.SouthPoleLon)
	rotLat, rotLon := toLatLonDeg(rotatedPoint)

	regResult, _, err := regular.Build(values, [][]float64{{regLat}}, [][]float64{{regLon}})
	if err != nil {
		t.Fatalf("Build (regular): %v", err)
	}
	rotResult, _, err := rotated.Build(values, [][]float64{{rotLat}}, [][]float64{{rotLon}})
	if err != nil {
		t.Fatalf("Build (rotated): %v", err)
	}
	if regResult.At(0, 0) != rotResult.At(0, 0) {
		t.Errorf("regular-path result %v != rotated-path result %v", regResult.At(0, 0), rotResult.At(0, 0))
	}
}

// toLatLonDeg inverts geo.ToCartesianUnit, for constructing rotated-frame
// test fixtures from a known regular-frame target.
func toLatLonDeg(p geo.Point3) (latDeg, lonDeg float64) {
	r := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	lat := math.Asin(p.Z / r)
	lon := math.Atan2(p.Y, p.X)
	return lat * 180 / math.Pi, lon * 180 / math.Pi
}

func TestScipyApplyMatchesBuild(t *testing.T) {
	nx, ny := 4, 4
	sourceLats, sourceLons, values := gridPoints(nx, ny, 0, 0)
	desc := regularDescriptor(len(values), ny)

	b, err := NewScipy(sourceLats, sourceLons, desc, store.Nearest, desc.MissingValue, -1, false, false)
	if err != nil {
		t.Fatalf("NewScipy: %v", err)
	}
	targetLats := [][]float64{{0.1, 1.1}, {2.1, 3.1}}
	targetLons := [][]float64{{0.1, 1.1}, {2.1, 3.1}}

	built, tbl, err := b.Build(values, targetLats, targetLons)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	applied, err := b.Apply(tbl, values, targetLats, targetLons)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range built.Values {
		if built.Values[i] != applied.Values[i] {
			t.Errorf("Values[%d]: build=%v apply=%v", i, built.Values[i], applied.Values[i])
		}
	}
}
