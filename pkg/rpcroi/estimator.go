package rpcroi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
	"github.com/beetlebugorg/rpcroi/pkg/srtm"
	"gonum.org/v1/gonum/floats"
)

// RegionPreparer resolves and fetches the elevation tiles covering a box.
// *srtm.TileCache implements it.
type RegionPreparer interface {
	ListNeededTiles(ctx context.Context, b geo.Bounds) ([]srtm.TileID, error)
	EnsureRegion(ctx context.Context, b geo.Bounds) error
}

// EstimatorOptions configures an Estimator.
type EstimatorOptions struct {
	// Workers bounds concurrent elevation queries for oracles without a
	// batch mode. If 0, defaults to runtime.NumCPU().
	Workers int

	// Logger receives diagnostics such as coverage fallbacks and void counts.
	// Default: discards everything
	Logger *slog.Logger
}

// DefaultEstimatorOptions returns estimator options with defaults.
func DefaultEstimatorOptions() EstimatorOptions {
	return EstimatorOptions{
		Workers: runtime.NumCPU(),
		Logger:  nil,
	}
}

// Estimator refines altitude ranges with SRTM elevations and resolves regions
// across views.
type Estimator struct {
	tiles   RegionPreparer
	oracle  srtm.ElevationOracle
	workers int
	logger  *slog.Logger
}

// NewEstimator creates an estimator.
//
// tiles may be nil when the oracle manages its own tiles; the region is then
// not fetched before querying.
func NewEstimator(tiles RegionPreparer, oracle srtm.ElevationOracle, opts EstimatorOptions) *Estimator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Estimator{
		tiles:   tiles,
		oracle:  oracle,
		workers: opts.Workers,
		logger:  opts.Logger,
	}
}

// AltitudeRange bounds the altitude of the terrain imaged in roi.
//
// The ground box of roi is sampled at SRTM resolution and the extrema of the
// samples, rounded to whole meters, are widened by marginBottom (usually
// negative) and marginTop. Voids read as sea level. A box reaching ±60°
// latitude is beyond SRTM, and the model's coarse range is returned unchanged.
//
// The range may be wider than the local terrain variation: extrema are taken
// over the whole box, not the curved footprint.
func (e *Estimator) AltitudeRange(ctx context.Context, cam CameraModel, roi ROI, marginTop, marginBottom float64) (AltitudeRange, error) {
	box, err := GeodesicBoundingBox(cam, roi)
	if err != nil {
		return AltitudeRange{}, err
	}

	if box.MinLat <= geo.SRTMMinLat || box.MaxLat >= geo.SRTMMaxLat {
		coarse := CoarseAltitudeRange(cam)
		e.logger.Info("region outside srtm coverage, using coarse altitude range",
			"roi", roi.String(), "bounds", box.String(), "range", coarse.String())
		return coarse, nil
	}

	grid, err := geo.SampleBoundingBox(box)
	if err != nil {
		return AltitudeRange{}, err
	}

	if e.tiles != nil {
		if err := e.tiles.EnsureRegion(ctx, box); err != nil {
			return AltitudeRange{}, fmt.Errorf("prepare srtm tiles: %w", err)
		}
	}

	samples, err := srtm.QueryBatch(ctx, e.oracle, grid.Points, e.workers)
	if err != nil {
		return AltitudeRange{}, fmt.Errorf("query elevations: %w", err)
	}

	heights, missing := geo.MissingAsSeaLevel(samples)
	if missing > 0 {
		e.logger.Debug("srtm voids read as sea level", "roi", roi.String(), "missing", missing, "samples", len(samples))
	}

	return AltitudeRange{
		Min: math.RoundToEven(floats.Min(heights)) + marginBottom,
		Max: math.RoundToEven(floats.Max(heights)) + marginTop,
	}, nil
}

// NeededTiles lists the SRTM tiles covering the ground box of roi.
func (e *Estimator) NeededTiles(ctx context.Context, cam CameraModel, roi ROI) ([]srtm.TileID, error) {
	if e.tiles == nil {
		return nil, errors.New("estimator has no tile cache")
	}
	box, err := GeodesicBoundingBox(cam, roi)
	if err != nil {
		return nil, err
	}
	return e.tiles.ListNeededTiles(ctx, box)
}
