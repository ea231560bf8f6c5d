package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/domeniconappo/grib-interpolator/pkg/backend"
	"github.com/domeniconappo/grib-interpolator/pkg/grid"
	"github.com/domeniconappo/grib-interpolator/pkg/interp"
	"github.com/domeniconappo/grib-interpolator/pkg/store"
)

// runOpts mirrors interp.Options, plus the file paths this command reads
// its numeric inputs from. The GID, Oracle and Log fields of interp.Options
// aren't exposed here: the grib method isn't reachable from this
// CLI, only from package interp directly, since wiring a real NearestOracle
// is a deployment-specific concern.
type runOpts struct {
	sourceLatsPath, sourceLonsPath, sourceValuesPath string
	targetLatsPath, targetLonsPath                   string
	outPath                                          string

	mode, method string
	targetMV     float64
	sourceMV     float64
	rotatedTgt   bool
	parallel     bool
	storeDir     string

	family        string
	earthRadiusM  float64
	nx            int
	ny            int
	southPoleLat  float64
	southPoleLon  float64
}

func defaultRunOpts() runOpts {
	return runOpts{
		mode:         string(store.Nearest),
		method:       string(store.Scipy),
		targetMV:     -9999,
		sourceMV:     -9999,
		storeDir:     "./intertables",
		family:       string(grid.RegularLL),
		earthRadiusM: 6371000,
		nx:           grid.MissingNx,
	}
}

var ro = defaultRunOpts()

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&ro.sourceLatsPath, "source-lats", "", "path to whitespace-separated source latitudes")
	f.StringVar(&ro.sourceLonsPath, "source-lons", "", "path to whitespace-separated source longitudes")
	f.StringVar(&ro.sourceValuesPath, "source-values", "", "path to whitespace-separated source values")
	f.StringVar(&ro.targetLatsPath, "target-lats", "", "path to newline-separated rows of target latitudes")
	f.StringVar(&ro.targetLonsPath, "target-lons", "", "path to newline-separated rows of target longitudes")
	f.StringVar(&ro.outPath, "out", "", "path to write the resampled field to (default: stdout)")

	f.StringVar(&ro.mode, "mode", ro.mode, "nearest or invdist")
	f.StringVar(&ro.method, "method", ro.method, "scipy (grib requires wiring a NearestOracle in-process)")
	f.Float64Var(&ro.targetMV, "target-mv", ro.targetMV, "missing-value sentinel written to unresolved target cells")
	f.Float64Var(&ro.sourceMV, "source-mv", ro.sourceMV, "missing-value sentinel recognized in the source values")
	f.BoolVar(&ro.rotatedTgt, "rotated-target", false, "target coordinates are given in the source's rotated-pole frame")
	f.BoolVar(&ro.parallel, "parallel", false, "partition target cells across a worker pool")
	f.StringVar(&ro.storeDir, "store", ro.storeDir, "interpolation table cache directory")

	f.StringVar(&ro.family, "family", ro.family, "source grid family")
	f.Float64Var(&ro.earthRadiusM, "earth-radius", ro.earthRadiusM, "source sphere radius in meters")
	f.IntVar(&ro.nx, "nx", ro.nx, "source grid along-parallel point count (omit for reduced families)")
	f.IntVar(&ro.ny, "ny", 0, "source grid along-meridian point count")
	f.Float64Var(&ro.southPoleLat, "south-pole-lat", 0, "rotated-pole latitude (rotated families only)")
	f.Float64Var(&ro.southPoleLon, "south-pole-lon", 0, "rotated-pole longitude (rotated families only)")

	for _, name := range []string{"source-lats", "source-lons", "source-values", "target-lats", "target-lons"} {
		runCmd.MarkFlagRequired(name)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resample a source field onto a target grid.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(ro)
	},
}

func run(o runOpts) error {
	sourceLats, err := loadFlat(o.sourceLatsPath)
	if err != nil {
		return fmt.Errorf("source lats: %w", err)
	}
	sourceLons, err := loadFlat(o.sourceLonsPath)
	if err != nil {
		return fmt.Errorf("source lons: %w", err)
	}
	values, err := loadFlat(o.sourceValuesPath)
	if err != nil {
		return fmt.Errorf("source values: %w", err)
	}
	targetLats, err := loadRows(o.targetLatsPath)
	if err != nil {
		return fmt.Errorf("target lats: %w", err)
	}
	targetLons, err := loadRows(o.targetLonsPath)
	if err != nil {
		return fmt.Errorf("target lons: %w", err)
	}

	desc := grid.Descriptor{
		Family:       grid.Family(o.family),
		EarthRadiusM: o.earthRadiusM,
		NumValues:    len(values),
		Nx:           o.nx,
		Ny:           o.ny,
		SouthPoleLat: o.southPoleLat,
		SouthPoleLon: o.southPoleLon,
		MissingValue: o.sourceMV,
	}
	if len(sourceLons) > 0 {
		desc.LonFirst = sourceLons[0]
		desc.LonLast = sourceLons[len(sourceLons)-1]
	}

	if desc.Reduced() {
		desc.Nx = grid.MissingNx
	} else if desc.Nx == grid.MissingNx {
		return fmt.Errorf("--nx is required for family %q", desc.Family)
	}
	if desc.Rotated() && (desc.SouthPoleLat == 0 && desc.SouthPoleLon == 0) {
		return fmt.Errorf("--south-pole-lat and --south-pole-lon are required for family %q", desc.Family)
	}

	opts := interp.DefaultOptions()
	opts.SourceLats, opts.SourceLons = sourceLats, sourceLons
	opts.Desc = desc
	opts.Mode = store.Mode(o.mode)
	opts.Method = store.Method(o.method)
	opts.TargetMV = o.targetMV
	opts.SourceMV = o.sourceMV
	opts.RotatedTarget = o.rotatedTgt
	opts.Parallel = o.parallel
	opts.StoreDir = o.storeDir

	ip, err := interp.New(opts)
	if err != nil {
		return err
	}

	result, err := ip.Interpolate(values, targetLats, targetLons)
	if err != nil {
		return err
	}

	out := os.Stdout
	if o.outPath != "" {
		f, err := os.Create(o.outPath)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeRows(out, result)
}

// loadFlat reads every whitespace-separated float across the file.
func loadFlat(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			values = append(values, v)
		}
	}
	return values, scanner.Err()
}

// loadRows reads one row of whitespace-separated floats per line.
func loadRows(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

// writeRows prints the resampled field, one target row per line, whitespace
// separated.
func writeRows(out *os.File, result backend.Result) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	rows, cols := result.Shape[0], result.Shape[1]
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				if _, err := w.WriteString(" "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%g", result.At(r, c)); err != nil {
				return err
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}
