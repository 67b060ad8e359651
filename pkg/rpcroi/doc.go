// Package rpcroi estimates terrain altitude ranges beneath pixel regions of
// satellite images and maps regions between two views of the same ground.
//
// Camera models are consumed through the CameraModel interface; the projection
// math itself lives with the model (rational polynomial, or the Affine variant
// shipped here). Elevations come from SRTM through the srtm package.
//
// # Basic Usage
//
//	cache, err := srtm.NewTileCache(srtm.CacheOptions{Dir: "/var/cache/srtm4"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	oracle, err := srtm.NewRasterOracle(srtm.RasterOptions{Dir: cache.Dir()})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer oracle.Close()
//
//	est := rpcroi.NewEstimator(cache, oracle, rpcroi.DefaultEstimatorOptions())
//
//	roi := rpcroi.ROI{X: 100, Y: 200, W: 50, H: 30}
//	alt, err := est.AltitudeRange(ctx, camA, roi, 50, -20)
//	fmt.Printf("terrain between %.0fm and %.0fm\n", alt.Min, alt.Max)
//
// # Cross-View Regions
//
// CorrespondingROI projects the corners of a region at the extreme altitudes
// of its terrain and back into the second view:
//
//	rect, err := est.CorrespondingROI(ctx, camA, camB, roi)
//	crop := rect.Enclosing() // integer pixels in view B
//
// # Coverage
//
// SRTM covers latitudes strictly between -60° and 60°. Regions reaching beyond
// fall back to the model's own coarse altitude range instead of failing.
// Regions straddling the ±180° meridian are not supported.
package rpcroi
