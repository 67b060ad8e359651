package geo

import (
	"errors"
	"math"
	"testing"
)

func isMultiple(v, q float64) bool {
	r := v / q
	return math.Abs(r-math.Round(r)) < 1e-6
}

// TestRoundUpDown checks a' <= a <= b <= b' with both ends on multiples of q
func TestRoundUpDown(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		q    float64
	}{
		{"unit", 0.3, 2.7, 1},
		{"negative", -3.2, -1.1, 0.5},
		{"srtm pitch", 2.34567, 2.41234, SRTMPitch},
		{"srtm negative", -45.0001, -44.9999, SRTMPitch},
		{"equal", 7.25, 7.25, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := RoundUpDown(tt.a, tt.b, tt.q)
			if lo > tt.a || hi < tt.b {
				t.Errorf("RoundUpDown(%v, %v, %v) = (%v, %v), does not enclose input", tt.a, tt.b, tt.q, lo, hi)
			}
			if !isMultiple(lo, tt.q) || !isMultiple(hi, tt.q) {
				t.Errorf("RoundUpDown(%v, %v, %v) = (%v, %v), not multiples of q", tt.a, tt.b, tt.q, lo, hi)
			}

			// Second application must be a no-op
			lo2, hi2 := RoundUpDown(lo, hi, tt.q)
			if lo2 != lo || hi2 != hi {
				t.Errorf("RoundUpDown not idempotent: (%v, %v) -> (%v, %v)", lo, hi, lo2, hi2)
			}
		})
	}
}

func TestRoundUpDownExactMultiples(t *testing.T) {
	for k := -2400; k <= 2400; k += 37 {
		v := float64(k) * SRTMPitch
		lo, hi := RoundUpDown(v, v, SRTMPitch)
		if lo != v || hi != v {
			t.Fatalf("multiple %d*q moved: (%v, %v) want %v", k, lo, hi, v)
		}
	}
}

func TestSampleBoundingBoxCardinality(t *testing.T) {
	b := Bounds{MinLon: 2.3001, MaxLon: 2.3103, MinLat: 48.8502, MaxLat: 48.8551}

	g, err := SampleBoundingBox(b)
	if err != nil {
		t.Fatalf("SampleBoundingBox: %v", err)
	}

	lon0, lon1 := RoundUpDown(b.MinLon, b.MaxLon, SRTMPitch)
	lat0, lat1 := RoundUpDown(b.MinLat, b.MaxLat, SRTMPitch)
	wantLon := int(math.Round((lon1 - lon0) / SRTMPitch))
	wantLat := int(math.Round((lat1 - lat0) / SRTMPitch))

	if g.NLon != wantLon || g.NLat != wantLat {
		t.Errorf("grid shape = %dx%d, want %dx%d", g.NLon, g.NLat, wantLon, wantLat)
	}
	if g.Len() != wantLon*wantLat {
		t.Errorf("grid has %d points, want %d", g.Len(), wantLon*wantLat)
	}
	if g.Len() == 0 {
		t.Fatal("grid is empty")
	}

	expanded := Bounds{MinLon: lon0, MaxLon: lon1, MinLat: lat0, MaxLat: lat1}
	for _, p := range g.Points {
		if !expanded.Contains(p.Lon, p.Lat) {
			t.Fatalf("point %+v outside pitch-expanded box %s", p, expanded)
		}
	}
}

func TestSampleBoundingBoxOrder(t *testing.T) {
	b := Bounds{MinLon: 10.0001, MaxLon: 10.0040, MinLat: -20.0040, MaxLat: -20.0001}

	g, err := SampleBoundingBox(b)
	if err != nil {
		t.Fatalf("SampleBoundingBox: %v", err)
	}

	// Longitude-major: latitude varies fastest
	for i := 0; i < g.NLon; i++ {
		for j := 0; j < g.NLat; j++ {
			p := g.Points[i*g.NLat+j]
			if p != g.At(i, j) {
				t.Fatalf("At(%d,%d) disagrees with row-major index", i, j)
			}
			if j > 0 && !(p.Lat > g.At(i, j-1).Lat) {
				t.Fatalf("latitude not increasing within column %d", i)
			}
			if i > 0 && !(p.Lon > g.At(i-1, j).Lon) {
				t.Fatalf("longitude not increasing across columns at row %d", j)
			}
		}
	}

	// Points sit at cell centres
	first := g.Points[0]
	if !isMultiple(first.Lon-SRTMPitch/2, SRTMPitch) || !isMultiple(first.Lat-SRTMPitch/2, SRTMPitch) {
		t.Errorf("first point %+v not at a cell centre", first)
	}
}

func TestSampleBoundingBoxRejects(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
	}{
		{"north of coverage", Bounds{MinLon: 0, MaxLon: 1, MinLat: 59.5, MaxLat: 60.5}},
		{"south of coverage", Bounds{MinLon: 0, MaxLon: 1, MinLat: -61, MaxLat: -59}},
		{"west limit", Bounds{MinLon: -180, MaxLon: -179, MinLat: 0, MaxLat: 1}},
		{"east limit", Bounds{MinLon: 179, MaxLon: 180, MinLat: 0, MaxLat: 1}},
		{"reversed longitude", Bounds{MinLon: 2, MaxLon: 1, MinLat: 0, MaxLat: 1}},
		{"degenerate latitude", Bounds{MinLon: 1, MaxLon: 2, MinLat: 3, MaxLat: 3}},
		{"nan", Bounds{MinLon: math.NaN(), MaxLon: 2, MinLat: 0, MaxLat: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SampleBoundingBox(tt.bounds)
			var cov *ErrOutsideCoverage
			if !errors.As(err, &cov) {
				t.Fatalf("expected ErrOutsideCoverage, got %v", err)
			}
		})
	}
}

func TestBoundsOf(t *testing.T) {
	b, ok := BoundsOf([]float64{3, -1, 2}, []float64{10, 12, -4})
	if !ok {
		t.Fatal("BoundsOf returned !ok")
	}
	want := Bounds{MinLon: -1, MaxLon: 3, MinLat: -4, MaxLat: 12}
	if b != want {
		t.Errorf("BoundsOf = %+v, want %+v", b, want)
	}

	if _, ok := BoundsOf(nil, nil); ok {
		t.Error("BoundsOf(nil) should not be ok")
	}
}

func TestMissingAsSeaLevel(t *testing.T) {
	samples := []Sample{Elevation(12), NoData, Elevation(0), Elevation(-3), NoData}

	heights, missing := MissingAsSeaLevel(samples)
	if missing != 2 {
		t.Errorf("missing = %d, want 2", missing)
	}

	want := []float64{12, 0, 0, -3, 0}
	for i := range want {
		if heights[i] != want[i] {
			t.Errorf("heights[%d] = %v, want %v", i, heights[i], want[i])
		}
	}

	if NoData.Valid || !Elevation(0).Valid {
		t.Error("zero reading must stay distinct from no data")
	}
}
