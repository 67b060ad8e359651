package srtm

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
)

// ElevationOracle resolves the SRTM height of a point, in meters above the
// WGS-84 geoid.
//
// ExecElevationOracle runs the srtm4 binary; RasterOracle reads cached tiles
// in-process.
type ElevationOracle interface {
	Query(ctx context.Context, p geo.Point) (geo.Sample, error)
}

// BatchOracle is implemented by oracles that answer many points more cheaply
// than one call per point. Results follow input order.
type BatchOracle interface {
	QueryBatch(ctx context.Context, pts []geo.Point) ([]geo.Sample, error)
}

// QueryBatch resolves every point, preserving input order and keeping
// "no data" samples distinct from 0 m readings.
//
// Oracles implementing BatchOracle are delegated to. Otherwise points are
// spread over a pool of workers (runtime.NumCPU() when workers <= 0). The first
// error cancels the remaining work and is returned.
func QueryBatch(ctx context.Context, oracle ElevationOracle, pts []geo.Point, workers int) ([]geo.Sample, error) {
	if len(pts) == 0 {
		return []geo.Sample{}, nil
	}

	if b, ok := oracle.(BatchOracle); ok {
		samples, err := b.QueryBatch(ctx, pts)
		if err != nil {
			return nil, err
		}
		if len(samples) != len(pts) {
			return nil, fmt.Errorf("batch oracle returned %d samples for %d points", len(samples), len(pts))
		}
		return samples, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pts) {
		workers = len(pts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each worker writes only its own indices, so the slice needs no lock
	samples := make([]geo.Sample, len(pts))
	jobs := make(chan int, workers)
	go func() {
		defer close(jobs)
		for i := range pts {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				if ctx.Err() != nil {
					return
				}
				s, err := oracle.Query(ctx, pts[index])
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("query point %d (%f, %f): %w", index, pts[index].Lon, pts[index].Lat, err)
						cancel()
					})
					return
				}
				samples[index] = s
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// sampleFromHeight converts a raw oracle height. NaN is how srtm4 reports voids.
func sampleFromHeight(h float64) geo.Sample {
	if math.IsNaN(h) {
		return geo.NoData
	}
	return geo.Elevation(h)
}
