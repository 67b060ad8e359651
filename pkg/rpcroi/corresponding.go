package rpcroi

import (
	"context"
)

// CorrespondingPoints maps pixels of view a, at the given altitudes, to pixels
// of view b.
//
// Ground points are projected back into b at the altitude used to leave a,
// not at the elevation found at the ground point. This saves an elevation
// lookup per point and is exact only when the altitude is the true height.
func CorrespondingPoints(a, b CameraModel, x, y, alt []float64) (xb, yb []float64, err error) {
	lon, lat, _ := a.DirectEstimate(x, y, alt)
	if len(lon) != len(x) || len(lat) != len(x) {
		return nil, nil, &ErrCameraOutput{Operation: "direct", Got: min(len(lon), len(lat)), Want: len(x)}
	}

	xb, yb, _ = b.InverseEstimate(lon, lat, alt)
	if len(xb) != len(x) || len(yb) != len(x) {
		return nil, nil, &ErrCameraOutput{Operation: "inverse", Got: min(len(xb), len(yb)), Want: len(x)}
	}
	return xb, yb, nil
}

// CorrespondingROI returns the rectangle of view b that images the same
// ground as roi in view a.
//
// The corners of roi are taken at both ends of its terrain altitude range and
// carried to b with CorrespondingPoints; the result spans the eight projected
// points. It encloses the whole projected volume only where both models are
// monotonic over that range.
func (e *Estimator) CorrespondingROI(ctx context.Context, a, b CameraModel, roi ROI) (Rect, error) {
	alt, err := e.AltitudeRange(ctx, a, roi, 0, 0)
	if err != nil {
		return Rect{}, err
	}
	return CorrespondingRect(a, b, roi, alt)
}

// CorrespondingRect is CorrespondingROI with a known altitude range.
func CorrespondingRect(a, b CameraModel, roi ROI, alt AltitudeRange) (Rect, error) {
	if err := roi.Validate(); err != nil {
		return Rect{}, err
	}

	xs, ys, alts := cornerVolume(roi, alt.Min, alt.Max)
	xb, yb, err := CorrespondingPoints(a, b, xs, ys, alts)
	if err != nil {
		return Rect{}, err
	}
	return rectOf(xb, yb), nil
}
