package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/rpcroi/pkg/rpcroi"
	"github.com/beetlebugorg/rpcroi/pkg/srtm"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatal("usage: cross-view-roi camera-a.yaml camera-b.yaml")
	}

	camA, err := rpcroi.LoadAffine(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	camB, err := rpcroi.LoadAffine(os.Args[2])
	if err != nil {
		log.Fatal(err)
	}

	dir := os.Getenv(srtm.CacheEnv)
	if dir == "" {
		log.Fatalf("set %s to the tile cache directory", srtm.CacheEnv)
	}
	cache, err := srtm.NewTileCache(srtm.CacheOptions{Dir: dir})
	if err != nil {
		log.Fatal(err)
	}

	// Let the srtm4 binary read the tiles instead of decoding them here
	oracle := &srtm.ExecElevationOracle{CacheDir: dir}

	est := rpcroi.NewEstimator(cache, oracle, rpcroi.DefaultEstimatorOptions())

	// Region selected on a preview shrunk 4 times
	preview := rpcroi.ROI{X: 250, Y: 500, W: 125, H: 75}
	roi := preview.Scale(4, 4)

	rect, err := est.CorrespondingROI(context.Background(), camA, camB, roi)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("ROI %s in view A\n", roi)
	fmt.Printf("images %+v in view B, cropped as %s\n", rect, rect.Enclosing())
}
