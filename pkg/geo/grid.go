package geo

import (
	"math"
)

// SRTM lattice constants.
//
// SRTM tiles are 5°×5° with 6000×6000 samples, i.e. one sample every
// 3 arcseconds.
const (
	SRTMPitch     = 1.0 / 1200 // Sample spacing in degrees (3 arcseconds)
	SRTMMaxLat    = 60.0       // Northern coverage limit
	SRTMMinLat    = -60.0      // Southern coverage limit
	SRTMTileSize  = 5.0        // Tile edge in degrees
	SRTMTileWidth = 6000       // Samples per tile edge
)

// snapTolerance absorbs float noise when a value is already a pitch multiple,
// so that 5*q/q is treated as 5 and not 4.999999999.
const snapTolerance = 1e-9

// Grid is a regular sampling of a box, one point per lattice cell.
//
// Points are ordered longitude-major then latitude-minor: the point of the
// i-th longitude column and j-th latitude row is Points[i*NLat+j]. Raw sample
// arrays derived from a Grid keep this order.
type Grid struct {
	Points []Point
	NLon   int     // Number of longitude columns
	NLat   int     // Number of latitude rows
	Pitch  float64 // Spacing in degrees
	Bounds Bounds  // Pitch-aligned box the grid covers
}

// Len returns the number of points in the grid.
func (g Grid) Len() int {
	return len(g.Points)
}

// At returns the point in longitude column i and latitude row j.
func (g Grid) At(i, j int) Point {
	return g.Points[i*g.NLat+j]
}

// RoundUpDown rounds a down and b up to the closest multiples of q.
//
// Values that are already multiples of q (up to float noise) are unchanged, so
// the operation is idempotent.
func RoundUpDown(a, b, q float64) (float64, float64) {
	return q * floorMultiple(a, q), q * ceilMultiple(b, q)
}

func floorMultiple(a, q float64) float64 {
	r := a / q
	if n := math.Round(r); math.Abs(r-n) < snapTolerance {
		return n
	}
	return math.Floor(r)
}

func ceilMultiple(b, q float64) float64 {
	r := b / q
	if n := math.Round(r); math.Abs(r-n) < snapTolerance {
		return n
	}
	return math.Ceil(r)
}

// CheckCoverage verifies that b can be sampled against SRTM data:
// -180 < MinLon < MaxLon < 180 and -60 < MinLat < MaxLat < 60.
func CheckCoverage(b Bounds) error {
	switch {
	case math.IsNaN(b.MinLon) || math.IsNaN(b.MaxLon) || math.IsNaN(b.MinLat) || math.IsNaN(b.MaxLat):
		return &ErrOutsideCoverage{Bounds: b, Reason: "NaN coordinate"}
	case !(b.MinLon > -180):
		return &ErrOutsideCoverage{Bounds: b, Reason: "minimum longitude must be > -180"}
	case !(b.MaxLon < 180):
		return &ErrOutsideCoverage{Bounds: b, Reason: "maximum longitude must be < 180"}
	case !(b.MinLon < b.MaxLon):
		return &ErrOutsideCoverage{Bounds: b, Reason: "minimum longitude must be < maximum longitude"}
	case !(b.MinLat > SRTMMinLat):
		return &ErrOutsideCoverage{Bounds: b, Reason: "minimum latitude must be > -60"}
	case !(b.MaxLat < SRTMMaxLat):
		return &ErrOutsideCoverage{Bounds: b, Reason: "maximum latitude must be < 60"}
	case !(b.MinLat < b.MaxLat):
		return &ErrOutsideCoverage{Bounds: b, Reason: "minimum latitude must be < maximum latitude"}
	}
	return nil
}

// SampleBoundingBox samples a geodetic box with points spaced at the SRTM
// resolution.
//
// The box is first rounded outward to multiples of SRTMPitch so that grid lines
// coincide with the SRTM tiling, then one point is emitted at the centre of
// each lattice cell. The box must satisfy CheckCoverage; it is rejected, not
// clamped, otherwise.
func SampleBoundingBox(b Bounds) (Grid, error) {
	if err := CheckCoverage(b); err != nil {
		return Grid{}, err
	}
	return sampleAligned(b, SRTMPitch), nil
}

func sampleAligned(b Bounds, q float64) Grid {
	lon0, lon1 := floorMultiple(b.MinLon, q), ceilMultiple(b.MaxLon, q)
	lat0, lat1 := floorMultiple(b.MinLat, q), ceilMultiple(b.MaxLat, q)

	nLon := int(lon1 - lon0)
	nLat := int(lat1 - lat0)

	lons := make([]float64, nLon)
	for i := range lons {
		lons[i] = (lon0+float64(i))*q + 0.5*q
	}
	lats := make([]float64, nLat)
	for j := range lats {
		lats[j] = (lat0+float64(j))*q + 0.5*q
	}

	points := make([]Point, 0, nLon*nLat)
	for _, lon := range lons {
		for _, lat := range lats {
			points = append(points, Point{Lon: lon, Lat: lat})
		}
	}

	return Grid{
		Points: points,
		NLon:   nLon,
		NLat:   nLat,
		Pitch:  q,
		Bounds: Bounds{MinLon: lon0 * q, MaxLon: lon1 * q, MinLat: lat0 * q, MaxLat: lat1 * q},
	}
}
