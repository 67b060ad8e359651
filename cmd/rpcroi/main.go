// Command rpcroi estimates altitude ranges and cross-view regions for
// satellite image ROIs and manages the local SRTM tile cache.
//
//	rpcroi [-config rpcroi.yaml] <command> [flags]
//
// Commands:
//
//	tiles      list the SRTM tiles covering a box or camera ROI
//	fetch      download the tiles covering a box or camera ROI
//	elevation  print the SRTM height at lon lat
//	altrange   estimate the terrain altitude range of an ROI
//	roi        map an ROI from one view to another
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/beetlebugorg/rpcroi/internal/config"
	"github.com/beetlebugorg/rpcroi/pkg/geo"
	"github.com/beetlebugorg/rpcroi/pkg/rpcroi"
	"github.com/beetlebugorg/rpcroi/pkg/srtm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "rpcroi: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// app holds the components a command runs against.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  *srtm.TileCache
	oracle srtm.ElevationOracle
	close  func()
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("rpcroi", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Path to YAML configuration file")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: rpcroi [-config file] tiles|fetch|elevation|altrange|roi [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return errUsage
	}

	commands := map[string]func(*app, context.Context, []string) error{
		"tiles":     (*app).tiles,
		"fetch":     (*app).fetch,
		"elevation": (*app).elevation,
		"altrange":  (*app).altrange,
		"roi":       (*app).roi,
	}
	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		global.Usage()
		return fmt.Errorf("unknown command %q: %w", name, errUsage)
	}

	a, err := newApp(*configPath, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd(a, ctx, rest)
}

func newApp(configPath string, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Resolve(os.LookupEnv); err != nil {
		return nil, err
	}

	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return nil, err
	}

	cache, err := srtm.NewTileCache(cfg.CacheOptions(logger))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, cache: cache, stdout: stdout, close: func() {}}
	switch cfg.Oracle.Mode {
	case config.OracleExec:
		a.oracle = &srtm.ExecElevationOracle{
			Binary:   cfg.Oracle.ElevationBinary,
			CacheDir: cache.Dir(),
			WorkDir:  cfg.Oracle.WorkDir,
		}
	default:
		raster, err := srtm.NewRasterOracle(srtm.RasterOptions{
			Dir:      cache.Dir(),
			MaxTiles: cfg.Oracle.MaxTiles,
		})
		if err != nil {
			return nil, err
		}
		a.oracle = raster
		a.close = raster.Close
	}

	logger.Debug("configured", "cache", cache.Dir(), "oracle", cfg.Oracle.Mode, "workers", cfg.Workers)
	return a, nil
}

func (a *app) estimator() *rpcroi.Estimator {
	return rpcroi.NewEstimator(a.cache, a.oracle, rpcroi.EstimatorOptions{
		Workers: a.cfg.Workers,
		Logger:  a.logger,
	})
}

// regionFlags selects a box directly or through a camera ROI.
type regionFlags struct {
	bbox   string
	camera string
	roi    string
}

func (r *regionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.bbox, "bbox", "", "Geodetic box minlon,maxlon,minlat,maxlat")
	fs.StringVar(&r.camera, "camera", "", "Affine camera YAML file (with -roi)")
	fs.StringVar(&r.roi, "roi", "", "Pixel region x,y,w,h (with -camera)")
}

func (r *regionFlags) bounds() (geo.Bounds, error) {
	switch {
	case r.bbox != "" && r.camera == "":
		return parseBounds(r.bbox)
	case r.bbox == "" && r.camera != "" && r.roi != "":
		cam, err := rpcroi.LoadAffine(r.camera)
		if err != nil {
			return geo.Bounds{}, err
		}
		roi, err := parseROI(r.roi)
		if err != nil {
			return geo.Bounds{}, err
		}
		return rpcroi.GeodesicBoundingBox(cam, roi)
	}
	return geo.Bounds{}, fmt.Errorf("give either -bbox or -camera and -roi: %w", errUsage)
}

func (a *app) tiles(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tiles", flag.ContinueOnError)
	var region regionFlags
	region.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	b, err := region.bounds()
	if err != nil {
		return err
	}
	ids, err := a.cache.ListNeededTiles(ctx, b)
	if err != nil {
		return err
	}
	for _, id := range ids {
		status := "absent"
		if a.cache.Has(id) {
			status = "cached"
		}
		fmt.Fprintf(a.stdout, "%s\t%s\n", id, status)
	}
	return nil
}

func (a *app) fetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	var region regionFlags
	region.register(fs)
	tile := fs.String("tile", "", "Single tile id, e.g. srtm_37_03")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *tile != "" {
		id := srtm.TileID(*tile)
		if err := a.cache.EnsureTilePresent(ctx, id); err != nil {
			return err
		}
		return a.report(id)
	}

	b, err := region.bounds()
	if err != nil {
		return err
	}
	if err := a.cache.EnsureRegion(ctx, b); err != nil {
		return err
	}
	ids, err := a.cache.ListNeededTiles(ctx, b)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := a.report(id); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) report(id srtm.TileID) error {
	if a.cache.Has(id) {
		_, err := fmt.Fprintf(a.stdout, "%s\t%s\n", id, a.cache.TilePath(id))
		return err
	}
	_, err := fmt.Fprintf(a.stdout, "%s\tnot available\n", id)
	return err
}

func (a *app) elevation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("elevation", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("elevation takes lon lat: %w", errUsage)
	}
	lon, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		return fmt.Errorf("bad longitude %q: %w", fs.Arg(0), errUsage)
	}
	lat, err := strconv.ParseFloat(fs.Arg(1), 64)
	if err != nil {
		return fmt.Errorf("bad latitude %q: %w", fs.Arg(1), errUsage)
	}

	if id, err := srtm.TileFor(lon, lat); err == nil {
		if err := a.cache.EnsureTilePresent(ctx, id); err != nil {
			return err
		}
	}
	s, err := a.oracle.Query(ctx, geo.Point{Lon: lon, Lat: lat})
	if err != nil {
		return err
	}
	if !s.Valid {
		_, err = fmt.Fprintln(a.stdout, "nan")
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "%g\n", s.Value)
	return err
}

func (a *app) altrange(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("altrange", flag.ContinueOnError)
	camera := fs.String("camera", "", "Affine camera YAML file")
	roiFlag := fs.String("roi", "", "Pixel region x,y,w,h")
	top := fs.Float64("margin-top", 0, "Meters added to the upper bound")
	bottom := fs.Float64("margin-bottom", 0, "Meters added to the lower bound, usually negative")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *camera == "" || *roiFlag == "" {
		return fmt.Errorf("altrange needs -camera and -roi: %w", errUsage)
	}

	cam, err := rpcroi.LoadAffine(*camera)
	if err != nil {
		return err
	}
	roi, err := parseROI(*roiFlag)
	if err != nil {
		return err
	}

	alt, err := a.estimator().AltitudeRange(ctx, cam, roi, *top, *bottom)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "%g %g\n", alt.Min, alt.Max)
	return err
}

func (a *app) roi(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("roi", flag.ContinueOnError)
	cameraA := fs.String("camera-a", "", "Affine camera YAML file of the source view")
	cameraB := fs.String("camera-b", "", "Affine camera YAML file of the target view")
	roiFlag := fs.String("roi", "", "Pixel region x,y,w,h in the source view")
	scale := fs.Float64("scale", 1, "Zoom factor of the view the ROI was selected on")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *cameraA == "" || *cameraB == "" || *roiFlag == "" {
		return fmt.Errorf("roi needs -camera-a, -camera-b and -roi: %w", errUsage)
	}

	a1, err := rpcroi.LoadAffine(*cameraA)
	if err != nil {
		return err
	}
	b1, err := rpcroi.LoadAffine(*cameraB)
	if err != nil {
		return err
	}
	roi, err := parseROI(*roiFlag)
	if err != nil {
		return err
	}
	if *scale != 1 {
		roi = roi.Scale(*scale, *scale)
	}

	rect, err := a.estimator().CorrespondingROI(ctx, a1, b1, roi)
	if err != nil {
		return err
	}
	out := rect.Enclosing()
	_, err = fmt.Fprintf(a.stdout, "%d %d %d %d\n", out.X, out.Y, out.W, out.H)
	return err
}

func parseROI(s string) (rpcroi.ROI, error) {
	v, err := splitNumbers(s, 4)
	if err != nil {
		return rpcroi.ROI{}, fmt.Errorf("bad ROI %q: %w", s, err)
	}
	ints := make([]int, 4)
	for i, f := range v {
		if f != float64(int(f)) {
			return rpcroi.ROI{}, fmt.Errorf("bad ROI %q: %g is not an integer", s, f)
		}
		ints[i] = int(f)
	}
	roi := rpcroi.ROI{X: ints[0], Y: ints[1], W: ints[2], H: ints[3]}
	return roi, roi.Validate()
}

func parseBounds(s string) (geo.Bounds, error) {
	v, err := splitNumbers(s, 4)
	if err != nil {
		return geo.Bounds{}, fmt.Errorf("bad box %q: %w", s, err)
	}
	b := geo.Bounds{MinLon: v[0], MaxLon: v[1], MinLat: v[2], MaxLat: v[3]}
	if !b.Valid() {
		return geo.Bounds{}, fmt.Errorf("bad box %q: minimum above maximum", s)
	}
	return b, nil
}

func splitNumbers(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated numbers", n)
	}
	v := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	return v, nil
}
