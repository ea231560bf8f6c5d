// Command gribinterp drives the interpolation engine from flat, whitespace-
// separated coordinate/value files, useful for ad-hoc runs and scripting.
// Loading grids from their native GRIB/NetCDF encodings is outside this
// module's scope; callers needing that should populate the same float
// slices via their own reader and call package interp directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gribinterp:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gribinterp",
	Short: "Resample a scalar field from a source grid onto a target grid.",
	Long: `gribinterp resamples a scalar field defined on a source geographic grid
onto an arbitrary target grid of (latitude, longitude) points, using
nearest-neighbor or inverse-distance-weighted lookup.`,
}
