package rpcroi

import (
	"github.com/beetlebugorg/rpcroi/pkg/geo"
)

// CameraModel projects between image pixels and geodetic ground points.
//
// Both estimates work element-wise over equal-length slices, so a batch of
// points costs one call. Heights are meters above the WGS-84 ellipsoid.
type CameraModel interface {
	// DirectEstimate maps pixels at the given altitudes to the ground.
	DirectEstimate(x, y, alt []float64) (lon, lat, h []float64)

	// InverseEstimate maps ground points at the given altitudes to pixels.
	InverseEstimate(lon, lat, alt []float64) (x, y, h []float64)

	// AltitudeOffset and AltitudeScale declare the coarse validity range
	// [offset-scale, offset+scale] of the model.
	AltitudeOffset() float64
	AltitudeScale() float64
}

// CoarseAltitudeRange returns the altitude range declared by the model itself.
func CoarseAltitudeRange(cam CameraModel) AltitudeRange {
	off, scale := cam.AltitudeOffset(), cam.AltitudeScale()
	return AltitudeRange{Min: off - scale, Max: off + scale}
}

// cornerVolume pairs each pixel corner of roi with both altitudes: corner i at
// lo is point 2i, at hi point 2i+1.
func cornerVolume(roi ROI, lo, hi float64) (xs, ys, alts []float64) {
	cx, cy := roi.Corners()
	xs = make([]float64, 0, 8)
	ys = make([]float64, 0, 8)
	alts = make([]float64, 0, 8)
	for i := range cx {
		xs = append(xs, cx[i], cx[i])
		ys = append(ys, cy[i], cy[i])
		alts = append(alts, lo, hi)
	}
	return xs, ys, alts
}

// GeodesicBoundingBox returns the box on the ellipsoid enclosing the ground
// footprint of roi.
//
// The four corners are projected at both ends of the model's coarse altitude
// range and the box spans the eight results. It encloses the true footprint
// only if the terrain lies within that range and the model is monotonic over
// it. Footprints crossing the ±180° meridian produce a meaningless box.
func GeodesicBoundingBox(cam CameraModel, roi ROI) (geo.Bounds, error) {
	if err := roi.Validate(); err != nil {
		return geo.Bounds{}, err
	}

	coarse := CoarseAltitudeRange(cam)
	xs, ys, alts := cornerVolume(roi, coarse.Min, coarse.Max)

	lons, lats, _ := cam.DirectEstimate(xs, ys, alts)
	if len(lons) != len(xs) || len(lats) != len(xs) {
		return geo.Bounds{}, &ErrCameraOutput{Operation: "direct", Got: min(len(lons), len(lats)), Want: len(xs)}
	}

	b, _ := geo.BoundsOf(lons, lats)
	return b, nil
}
