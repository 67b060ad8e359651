// Package geo holds the geodetic primitives shared by the SRTM tile cache and
// the ROI estimators: bounding boxes, sample points, sample grids aligned to the
// SRTM 3 arcsecond lattice, and optional elevation samples.
package geo

import "fmt"

// Bounds represents a geographic bounding box in WGS-84 coordinates.
//
// Coordinates are in decimal degrees. Boxes crossing the ±180° meridian are not
// representable.
type Bounds struct {
	MinLon float64 // Western edge
	MaxLon float64 // Eastern edge
	MinLat float64 // Southern edge
	MaxLat float64 // Northern edge
}

// Point is a geodetic sample location.
type Point struct {
	Lon float64
	Lat float64
}

// Contains returns true if the point (lon, lat) is within the bounds.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon &&
		lat >= b.MinLat && lat <= b.MaxLat
}

// Corners returns the four corners in the order
// (MinLon,MinLat), (MinLon,MaxLat), (MaxLon,MinLat), (MaxLon,MaxLat).
func (b Bounds) Corners() [4]Point {
	return [4]Point{
		{Lon: b.MinLon, Lat: b.MinLat},
		{Lon: b.MinLon, Lat: b.MaxLat},
		{Lon: b.MaxLon, Lat: b.MinLat},
		{Lon: b.MaxLon, Lat: b.MaxLat},
	}
}

// Valid reports whether the box is ordered and its latitudes are on the globe.
func (b Bounds) Valid() bool {
	return b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat &&
		b.MinLat >= -90 && b.MaxLat <= 90
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%.6f,%.6f]x[%.6f,%.6f]", b.MinLon, b.MaxLon, b.MinLat, b.MaxLat)
}

// BoundsOf returns the smallest box containing every point given as parallel
// lon/lat slices. ok is false when the slices are empty.
func BoundsOf(lons, lats []float64) (b Bounds, ok bool) {
	if len(lons) == 0 || len(lons) != len(lats) {
		return Bounds{}, false
	}

	b = Bounds{MinLon: lons[0], MaxLon: lons[0], MinLat: lats[0], MaxLat: lats[0]}
	for i := range lons {
		lon, lat := lons[i], lats[i]
		if lon < b.MinLon {
			b.MinLon = lon
		}
		if lon > b.MaxLon {
			b.MaxLon = lon
		}
		if lat < b.MinLat {
			b.MinLat = lat
		}
		if lat > b.MaxLat {
			b.MaxLat = lat
		}
	}
	return b, true
}
