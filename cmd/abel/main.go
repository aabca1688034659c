// SPDX-License-Identifier: MIT

// Command abel runs Abel transforms from the command line without the
// daemon: read an image, transform it, write the reconstruction.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/basis"
	"github.com/photonlab/abel/internal/imaging"
	abellog "github.com/photonlab/abel/internal/log"
	"github.com/photonlab/abel/internal/radial"
	"github.com/photonlab/abel/internal/transform"
	"github.com/photonlab/abel/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: abel <command> [flags]

commands:
  transform   transform an image file (CSV or PNG) and write the result
  basis       generate and cache a BASEX basis set
  speeds      compute the radial speed distribution of an image
  version     print version and exit

run "abel <command> -h" for command flags
`)
}

func main() {
	abellog.Configure(abellog.Config{
		Level:   os.Getenv("ABEL_LOG_LEVEL"),
		Service: "abel",
		Version: version.Version,
	})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "transform":
		err = runTransform(ctx, os.Args[2:])
	case "basis":
		err = runBasis(ctx, os.Args[2:])
	case "speeds":
		err = runSpeeds(os.Args[2:])
	case "version":
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "abel: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "abel: %v\n", err)
		os.Exit(1)
	}
}

func runTransform(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	var (
		in         = fs.String("in", "", "input image (CSV or PNG)")
		out        = fs.String("out", "", "output file (CSV or PNG)")
		method     = fs.String("method", "basex", "transform method (basex, direct)")
		direction  = fs.String("direction", "inverse", "transform direction (inverse, forward)")
		dr         = fs.Float64("dr", 1.0, "radial pixel size")
		nbf        = fs.Int("nbf", 0, "basis functions (0 = auto)")
		frame      = fs.Int("frame", 0, "odd frame size to recenter into (0 = use input as-is)")
		origin     = fs.String("origin", "", "image origin as col,row (default image center)")
		symmetrize = fs.Bool("symmetrize", false, "average left/right halves before transforming")
		median     = fs.Int("median", 0, "median prefilter window (0 = off)")
		gaussian   = fs.Float64("gaussian", 0, "Gaussian prefilter sigma (0 = off)")
		postMedian = fs.Int("post-median", 0, "median filter on the reconstruction (0 = off)")
		basisDir   = fs.String("basis-dir", defaultBasisDir(), "basis cache directory")
	)
	_ = fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("transform: -in and -out are required")
	}

	dir, err := transform.ParseDirection(*direction)
	if err != nil {
		return err
	}

	opts := transform.Options{
		Method:         *method,
		Direction:      dir,
		DR:             *dr,
		Nbf:            *nbf,
		FrameSize:      *frame,
		Symmetrize:     *symmetrize,
		MedianSize:     *median,
		GaussianSigma:  *gaussian,
		PostMedianSize: *postMedian,
	}
	if *origin != "" {
		o, err := parseOrigin(*origin)
		if err != nil {
			return err
		}
		opts.Origin = &o
	}

	img, err := readImage(*in)
	if err != nil {
		return err
	}

	store, err := basis.NewDiskStore(*basisDir)
	if err != nil {
		return fmt.Errorf("open basis cache: %w", err)
	}

	recon, err := transform.Apply(ctx, transform.DefaultRegistry(store), img, opts)
	if err != nil {
		return err
	}
	return writeImage(*out, recon)
}

func runBasis(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("basis", flag.ExitOnError)
	var (
		n        = fs.Int("n", 0, "basis frame size (odd)")
		nbf      = fs.Int("nbf", 0, "basis functions (0 = n/2)")
		basisDir = fs.String("basis-dir", defaultBasisDir(), "basis cache directory")
	)
	_ = fs.Parse(args)

	if *n < 3 || *n%2 == 0 {
		return fmt.Errorf("basis: -n must be odd and at least 3")
	}
	if *nbf == 0 {
		*nbf = *n / 2
	}

	store, err := basis.NewDiskStore(*basisDir)
	if err != nil {
		return fmt.Errorf("open basis cache: %w", err)
	}
	if _, err := basis.Cached(ctx, store, *n, *nbf); err != nil {
		return err
	}
	fmt.Printf("basis set %s ready in %s\n", basis.Key(*n, *nbf), *basisDir)
	return nil
}

func runSpeeds(args []string) error {
	fs := flag.NewFlagSet("speeds", flag.ExitOnError)
	var (
		in     = fs.String("in", "", "input image (CSV or PNG)")
		out    = fs.String("out", "", "output CSV (one value per radius)")
		origin = fs.String("origin", "", "image origin as col,row (default image center)")
	)
	_ = fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("speeds: -in and -out are required")
	}

	img, err := readImage(*in)
	if err != nil {
		return err
	}

	o := imaging.MidOrigin(img)
	if *origin != "" {
		if o, err = parseOrigin(*origin); err != nil {
			return err
		}
	}

	speeds := radial.SpeedDistribution(img, o)
	col := mat.NewDense(len(speeds), 1, nil)
	for i, v := range speeds {
		col.Set(i, 0, v)
	}
	return imaging.WriteCSVFile(*out, col)
}

func defaultBasisDir() string {
	if dir := os.Getenv("ABEL_BASIS_DIR"); dir != "" {
		return dir
	}
	if dir := os.Getenv("ABEL_DATA"); dir != "" {
		return filepath.Join(dir, "basis")
	}
	return filepath.Join("/var/lib/abel", "basis")
}

func parseOrigin(s string) (imaging.Origin, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return imaging.Origin{}, fmt.Errorf("origin must be col,row: %q", s)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return imaging.Origin{}, fmt.Errorf("origin column: %w", err)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return imaging.Origin{}, fmt.Errorf("origin row: %w", err)
	}
	return imaging.Origin{Col: col, Row: row}, nil
}

func readImage(path string) (*mat.Dense, error) {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return imaging.ReadPNGFile(path)
	}
	return imaging.ReadCSVFile(path)
}

func writeImage(path string, img *mat.Dense) error {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return imaging.WritePNGFile(path, img)
	}
	return imaging.WriteCSVFile(path, img)
}
