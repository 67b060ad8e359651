package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/beetlebugorg/rpcroi/pkg/rpcroi"
	"github.com/beetlebugorg/rpcroi/pkg/srtm"
)

func main() {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	cache, err := srtm.NewTileCache(srtm.CacheOptions{Dir: filepath.Join(home, ".srtm4")})
	if err != nil {
		log.Fatal(err)
	}
	oracle, err := srtm.NewRasterOracle(srtm.RasterOptions{Dir: cache.Dir()})
	if err != nil {
		log.Fatal(err)
	}
	defer oracle.Close()

	// A camera over Paris with 1e-5 degree pixels
	cam := &rpcroi.Affine{
		Lon:       []float64{2.30, 1e-5, 0, 1e-7},
		Lat:       []float64{48.90, 0, -1e-5, 0},
		AltOffset: 150,
		AltScale:  500,
	}

	est := rpcroi.NewEstimator(cache, oracle, rpcroi.DefaultEstimatorOptions())
	roi := rpcroi.ROI{X: 1000, Y: 2000, W: 500, H: 300}

	box, err := rpcroi.GeodesicBoundingBox(cam, roi)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("ROI %s covers %s\n", roi, box)

	alt, err := est.AltitudeRange(context.Background(), cam, roi, 50, -20)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Coarse range: %s\n", rpcroi.CoarseAltitudeRange(cam))
	fmt.Printf("SRTM range:   %s\n", alt)
}
