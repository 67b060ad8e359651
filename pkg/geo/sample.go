package geo

import "fmt"

// Sample is an elevation reading that may be missing.
//
// A zero Sample is "no data". A valid reading of 0 m is Sample{Value: 0, Valid: true}.
type Sample struct {
	Value float64 // Meters above the geoid
	Valid bool
}

// NoData is the missing-elevation sample.
var NoData = Sample{}

// Elevation returns a valid sample with the given height in meters.
func Elevation(meters float64) Sample {
	return Sample{Value: meters, Valid: true}
}

func (s Sample) String() string {
	if !s.Valid {
		return "nodata"
	}
	return fmt.Sprintf("%gm", s.Value)
}

// MissingAsSeaLevel is the reduction policy applied before taking extrema of
// SRTM samples: voids are almost always open water, so they read as 0 m.
//
// It returns the substituted heights, in input order, and how many samples were
// missing.
func MissingAsSeaLevel(samples []Sample) (heights []float64, missing int) {
	heights = make([]float64, len(samples))
	for i, s := range samples {
		if !s.Valid {
			missing++
			continue
		}
		heights[i] = s.Value
	}
	return heights, missing
}
