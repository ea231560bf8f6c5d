// Package interp implements the Interpolator facade: given a method and
// mode, it selects the appropriate backend, consults the interpolation
// table store, and dispatches either a build-and-persist or a load-and-apply
// for each call to Interpolate.
package interp

import (
	"github.com/sirupsen/logrus"

	"github.com/domeniconappo/grib-interpolator/pkg/backend"
	"github.com/domeniconappo/grib-interpolator/pkg/grid"
	"github.com/domeniconappo/grib-interpolator/pkg/interperr"
	"github.com/domeniconappo/grib-interpolator/pkg/oracle"
	"github.com/domeniconappo/grib-interpolator/pkg/store"
)

// Options configures an Interpolator. SourceLats/SourceLons/Desc describe
// the source grid; Mode and Method select the algorithm and backend.
type Options struct {
	SourceLats, SourceLons []float64
	Desc                   grid.Descriptor

	Mode   store.Mode
	Method store.Method

	TargetMV float64
	SourceMV float64

	// RotatedTarget reports whether the target coordinates passed to
	// Interpolate are themselves in a rotated-pole frame (only meaningful
	// for the scipy backend).
	RotatedTarget bool

	// Parallel enables a worker pool across target cells during Build.
	Parallel bool

	// GID identifies the source grid to the external oracle. Required when
	// Method is store.Grib.
	GID int
	// Oracle is the external nearest-neighbor service. Required when Method
	// is store.Grib.
	Oracle oracle.NearestOracle

	// StoreDir is the directory InterTableStore persists tables under.
	StoreDir string

	// Log receives structured progress and cache-hit/miss events. Defaults
	// to logrus.StandardLogger() if nil.
	Log logrus.FieldLogger
}

// DefaultOptions returns an Options with the non-required fields set to
// their defaults: scipy/nearest, no rotation, serial execution.
func DefaultOptions() Options {
	return Options{
		Mode:     store.Nearest,
		Method:   store.Scipy,
		TargetMV: -9999,
		SourceMV: -9999,
		GID:      -1,
		StoreDir: "./intertables",
	}
}

// Interpolator is the single entry point of the engine: construct one per
// source grid, then call Interpolate for each value field/target grid pair.
type Interpolator struct {
	backend backend.Backend
	store   *store.Store
	gridID  string
	method  store.Method
	mode    store.Mode
	log     logrus.FieldLogger
}

// New validates opts, builds the selected backend over the source grid, and
// opens the table store.
func New(opts Options) (*Interpolator, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var b backend.Backend
	switch opts.Method {
	case store.Scipy:
		sb, err := backend.NewScipy(opts.SourceLats, opts.SourceLons, opts.Desc, opts.Mode,
			opts.SourceMV, opts.TargetMV, opts.RotatedTarget, opts.Parallel)
		if err != nil {
			return nil, err
		}
		b = sb
	case store.Grib:
		if opts.Oracle == nil {
			return nil, &interperr.ConfigError{Reason: "grib method requires a NearestOracle"}
		}
		if opts.GID < 0 {
			return nil, &interperr.ConfigError{Reason: "missing gid for grib"}
		}
		b = backend.NewGrib(opts.Oracle, opts.GID, opts.Mode, opts.TargetMV, opts.Parallel)
	default:
		return nil, &interperr.ConfigError{Reason: "unknown method: " + string(opts.Method)}
	}

	if opts.Mode != store.Nearest && opts.Mode != store.Invdist {
		return nil, &interperr.ConfigError{Reason: "unknown mode: " + string(opts.Mode)}
	}

	s, err := store.Open(opts.StoreDir)
	if err != nil {
		return nil, err
	}

	return &Interpolator{
		backend: b,
		store:   s,
		gridID:  opts.Desc.ID(),
		method:  opts.Method,
		mode:    opts.Mode,
		log:     log,
	}, nil
}

// Interpolate resamples values (defined on the source grid) onto
// (targetLats, targetLons). On the first call for this (grid, method, mode)
// it builds a fresh table and persists it; subsequent calls load the cached
// table and apply it, skipping the spatial search entirely.
func (ip *Interpolator) Interpolate(values []float64, targetLats, targetLons [][]float64) (backend.Result, error) {
	fields := logrus.Fields{"grid_id": ip.gridID, "method": ip.method, "mode": ip.mode}

	tbl, err := ip.store.Lookup(ip.gridID, ip.method, ip.mode)
	if err != nil {
		return backend.Result{}, err
	}

	if tbl != nil {
		ip.log.WithFields(fields).Debug("interp: cache hit, applying stored table")
		return ip.backend.Apply(tbl, values, targetLats, targetLons)
	}

	ip.log.WithFields(fields).Info("interp: cache miss, building table")
	result, built, err := ip.backend.Build(values, targetLats, targetLons)
	if err != nil {
		return backend.Result{}, err
	}
	ip.log.WithFields(fields).WithField("outs", result.Outs).Info("interp: table built")

	if err := ip.store.Store(ip.gridID, ip.method, ip.mode, built); err != nil {
		return backend.Result{}, err
	}
	return result, nil
}
