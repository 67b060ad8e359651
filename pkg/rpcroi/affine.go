package rpcroi

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Affine is a camera model whose ground coordinates are affine in pixel
// position and altitude:
//
//	lon = Lon[0] + Lon[1]*x + Lon[2]*y + Lon[3]*alt
//	lat = Lat[0] + Lat[1]*x + Lat[2]*y + Lat[3]*alt
//
// It stands in for rational polynomial models over small footprints, where
// the projection is close to linear.
type Affine struct {
	Lon       []float64 `yaml:"lon"`
	Lat       []float64 `yaml:"lat"`
	AltOffset float64   `yaml:"alt_offset"`
	AltScale  float64   `yaml:"alt_scale"`
}

// LoadAffine reads an affine camera description from a YAML file.
func LoadAffine(path string) (*Affine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera file: %w", err)
	}

	var a Affine
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse camera file %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("camera file %s: %w", path, err)
	}
	return &a, nil
}

// Validate checks coefficient counts and that the pixel part is invertible.
func (a *Affine) Validate() error {
	if len(a.Lon) != 4 || len(a.Lat) != 4 {
		return fmt.Errorf("affine camera needs 4 lon and 4 lat coefficients, got %d and %d", len(a.Lon), len(a.Lat))
	}
	if a.AltScale < 0 {
		return fmt.Errorf("affine camera altitude scale must not be negative, got %g", a.AltScale)
	}
	if det := mat.Det(a.pixelPart()); math.Abs(det) < 1e-15 {
		return fmt.Errorf("affine camera is not invertible (determinant %g)", det)
	}
	return nil
}

// pixelPart is the 2x2 matrix mapping (x, y) to (lon, lat).
func (a *Affine) pixelPart() *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		a.Lon[1], a.Lon[2],
		a.Lat[1], a.Lat[2],
	})
}

// DirectEstimate implements CameraModel.
func (a *Affine) DirectEstimate(x, y, alt []float64) (lon, lat, h []float64) {
	n := len(x)
	lon = make([]float64, n)
	lat = make([]float64, n)
	h = make([]float64, n)
	for i := 0; i < n; i++ {
		lon[i] = a.Lon[0] + a.Lon[1]*x[i] + a.Lon[2]*y[i] + a.Lon[3]*alt[i]
		lat[i] = a.Lat[0] + a.Lat[1]*x[i] + a.Lat[2]*y[i] + a.Lat[3]*alt[i]
		h[i] = alt[i]
	}
	return lon, lat, h
}

// InverseEstimate implements CameraModel. All points are solved in one
// system; a singular model yields NaN pixels.
func (a *Affine) InverseEstimate(lon, lat, alt []float64) (x, y, h []float64) {
	n := len(lon)
	x = make([]float64, n)
	y = make([]float64, n)
	h = make([]float64, n)
	copy(h, alt)
	if n == 0 {
		return x, y, h
	}

	// Right-hand sides, one column per point
	rhs := mat.NewDense(2, n, nil)
	for i := 0; i < n; i++ {
		rhs.Set(0, i, lon[i]-a.Lon[0]-a.Lon[3]*alt[i])
		rhs.Set(1, i, lat[i]-a.Lat[0]-a.Lat[3]*alt[i])
	}

	var sol mat.Dense
	if err := sol.Solve(a.pixelPart(), rhs); err != nil {
		for i := range x {
			x[i], y[i] = math.NaN(), math.NaN()
		}
		return x, y, h
	}
	for i := 0; i < n; i++ {
		x[i] = sol.At(0, i)
		y[i] = sol.At(1, i)
	}
	return x, y, h
}

// AltitudeOffset implements CameraModel.
func (a *Affine) AltitudeOffset() float64 { return a.AltOffset }

// AltitudeScale implements CameraModel.
func (a *Affine) AltitudeScale() float64 { return a.AltScale }
