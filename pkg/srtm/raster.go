package srtm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/image/tiff"
	"golang.org/x/sync/singleflight"
)

// VoidValue marks SRTM samples without data.
const VoidValue = -32768

// RasterOptions configures a RasterOracle.
type RasterOptions struct {
	// Dir holds {id}.tif tiles, normally TileCache.Dir(). Required.
	Dir string

	// MaxTiles bounds how many decoded tiles stay in memory. A decoded
	// 6000x6000 tile takes about 72MB. Default: 4
	MaxTiles int64

	// TTL is how long a decoded tile may stay cached. Tiles never change on
	// disk, so this only bounds memory held by idle processes. Default: 1 hour
	TTL time.Duration
}

// DefaultRasterOptions returns raster options with defaults and no directory.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		MaxTiles: 4,
		TTL:      time.Hour,
	}
}

// RasterOracle answers elevation queries in-process from cached GeoTIFF tiles.
//
// Decoded tiles are kept in an LRU; concurrent first reads of one tile decode it
// once. Points over absent tiles, outside ±60° latitude, or on voids read as
// no data.
type RasterOracle struct {
	dir      string
	ttl      time.Duration
	rasters  *ccache.Cache[*raster]
	inflight singleflight.Group
}

// raster is a decoded tile, row-major from its north-west corner.
type raster struct {
	west, north float64
	width       int
	height      int
	heights     []int16
}

// NewRasterOracle creates an in-process elevation oracle.
func NewRasterOracle(opts RasterOptions) (*RasterOracle, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("raster directory not set")
	}
	defaults := DefaultRasterOptions()
	if opts.MaxTiles <= 0 {
		opts.MaxTiles = defaults.MaxTiles
	}
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}

	cache := ccache.New(ccache.Configure[*raster]().
		MaxSize(opts.MaxTiles).
		ItemsToPrune(1))

	return &RasterOracle{
		dir:     opts.Dir,
		ttl:     opts.TTL,
		rasters: cache,
	}, nil
}

// Close stops the background worker of the tile LRU.
func (o *RasterOracle) Close() {
	o.rasters.Stop()
}

// Query returns the height of the SRTM sample nearest to p.
func (o *RasterOracle) Query(_ context.Context, p geo.Point) (geo.Sample, error) {
	id, err := TileFor(p.Lon, p.Lat)
	if err != nil {
		return geo.NoData, nil
	}

	r, err := o.tile(id)
	if err != nil {
		return geo.NoData, err
	}
	if r == nil {
		return geo.NoData, nil
	}
	return r.at(p.Lon, p.Lat), nil
}

// tile returns the decoded raster of id, or nil when the tile is not resident.
func (o *RasterOracle) tile(id TileID) (*raster, error) {
	key := string(id)
	if item := o.rasters.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	v, err, _ := o.inflight.Do(key, func() (any, error) {
		r, err := loadRaster(filepath.Join(o.dir, id.FileName()), id)
		if err != nil || r == nil {
			return r, err
		}
		o.rasters.Set(key, r, o.ttl)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*raster), nil
}

func loadRaster(path string, id TileID) (*raster, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	heights, width, height, err := readHeights(f)
	if err != nil {
		return nil, fmt.Errorf("decode tile %s: %w", id, err)
	}

	extent, err := id.Extent()
	if err != nil {
		return nil, err
	}
	return &raster{
		west:    extent.MinLon,
		north:   extent.MaxLat,
		width:   width,
		height:  height,
		heights: heights,
	}, nil
}

// readHeights decodes the samples of a tile, row-major from its north-west
// corner. CGIAR tiles hold signed 16-bit samples; layouts the TIFF reader
// here does not handle go through x/image.
func readHeights(f *os.File) (heights []int16, width, height int, err error) {
	layout, err := readLayout(f)
	if err == nil {
		heights, err = layout.decodeInt16(f)
		if err == nil {
			return heights, layout.width, layout.height, nil
		}
	}
	if !errors.Is(err, errUnsupportedLayout) {
		return nil, 0, 0, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, 0, err
	}
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, 0, 0, err
	}

	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil, 0, 0, errors.New("empty raster")
	}
	heights = make([]int16, width*height)
	switch g := img.(type) {
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				heights[y*width+x] = int16(g.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				heights[y*width+x] = int16(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		return nil, 0, 0, fmt.Errorf("%T raster is not an elevation band", img)
	}
	return heights, width, height, nil
}

// at returns the sample nearest to (lon, lat).
//
// Even sizes (6000) are area-registered: sample k covers [k, k+1) pitches.
// Odd sizes (6001) are point-registered: sample k sits on the k-th grid line.
func (r *raster) at(lon, lat float64) geo.Sample {
	x := index(lon-r.west, r.width)
	y := index(r.north-lat, r.height)

	h := r.heights[y*r.width+x]
	if h == VoidValue {
		return geo.NoData
	}
	return geo.Elevation(float64(h))
}

func index(offset float64, n int) int {
	var k int
	if n%2 == 1 && n > 1 {
		k = int(math.Round(offset / (geo.SRTMTileSize / float64(n-1))))
	} else {
		k = int(math.Floor(offset / (geo.SRTMTileSize / float64(n))))
	}
	if k < 0 {
		k = 0
	}
	if k >= n {
		k = n - 1
	}
	return k
}
