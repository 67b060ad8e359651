package rpcroi

import (
	"fmt"
	"math"
)

// ROI is a pixel region of interest, from its top-left corner.
type ROI struct {
	X, Y int
	W, H int
}

// Validate rejects empty regions.
func (r ROI) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return &ErrInvalidROI{ROI: r}
	}
	return nil
}

// Corners returns the pixel corners in the order
// (x, y), (x, y+h), (x+w, y), (x+w, y+h).
func (r ROI) Corners() (xs, ys [4]float64) {
	x, y := float64(r.X), float64(r.Y)
	w, h := float64(r.W), float64(r.H)
	return [4]float64{x, x, x + w, x + w}, [4]float64{y, y + h, y, y + h}
}

// Scale maps a region selected on a reduced preview back to full resolution,
// truncating to whole pixels.
func (r ROI) Scale(fx, fy float64) ROI {
	return ROI{
		X: int(float64(r.X) * fx),
		Y: int(float64(r.Y) * fy),
		W: int(float64(r.W) * fx),
		H: int(float64(r.H) * fy),
	}
}

func (r ROI) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}

// Rect is a floating point pixel rectangle, as produced by re-projection.
type Rect struct {
	X, Y float64
	W, H float64
}

// Enclosing returns the smallest integer region containing r.
func (r Rect) Enclosing() ROI {
	x0, y0 := math.Floor(r.X), math.Floor(r.Y)
	x1, y1 := math.Ceil(r.X+r.W), math.Ceil(r.Y+r.H)
	return ROI{X: int(x0), Y: int(y0), W: int(x1 - x0), H: int(y1 - y0)}
}

// rectOf returns the axis-aligned rectangle of the given pixel coordinates.
func rectOf(xs, ys []float64) Rect {
	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := range xs {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// AltitudeRange is an interval of heights in meters.
type AltitudeRange struct {
	Min float64
	Max float64
}

func (a AltitudeRange) String() string {
	return fmt.Sprintf("[%g, %g]m", a.Min, a.Max)
}
