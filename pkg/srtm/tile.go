package srtm

import (
	"fmt"
	"math"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
)

// CGIAR SRTM 5x5 tiling: 72 columns from -180° eastward and 24 rows from 60°
// southward, both numbered from 1.
const (
	TileColumns = 72
	TileRows    = 24
)

// TileID identifies an SRTM tile, e.g. "srtm_38_04".
type TileID string

// NewTileID returns the identifier of the tile at column col and row row.
func NewTileID(col, row int) TileID {
	return TileID(fmt.Sprintf("srtm_%02d_%02d", col, row))
}

// Parse splits a tile identifier into its column and row.
func (id TileID) Parse() (col, row int, err error) {
	var rest string
	n, _ := fmt.Sscanf(string(id), "srtm_%02d_%02d%s", &col, &row, &rest)
	if n < 2 || rest != "" || len(id) != len("srtm_00_00") {
		return 0, 0, fmt.Errorf("invalid tile id %q", string(id))
	}
	if col < 1 || col > TileColumns || row < 1 || row > TileRows {
		return 0, 0, fmt.Errorf("tile id %q out of range", string(id))
	}
	return col, row, nil
}

// Extent returns the geographic coverage of the tile.
func (id TileID) Extent() (geo.Bounds, error) {
	col, row, err := id.Parse()
	if err != nil {
		return geo.Bounds{}, err
	}
	west := -180 + geo.SRTMTileSize*float64(col-1)
	north := geo.SRTMMaxLat - geo.SRTMTileSize*float64(row-1)
	return geo.Bounds{
		MinLon: west,
		MaxLon: west + geo.SRTMTileSize,
		MinLat: north - geo.SRTMTileSize,
		MaxLat: north,
	}, nil
}

// FileName returns the raster name inside the cache and inside the archive.
func (id TileID) FileName() string {
	return string(id) + ".tif"
}

// ArchiveName returns the name of the remote archive holding the tile.
func (id TileID) ArchiveName() string {
	return string(id) + ".zip"
}

// TileFor computes the tile covering (lon, lat) arithmetically.
//
// Columns include their west edge and rows include their north edge, matching
// srtm4_which_tile: a point on a border belongs to the tile east of it or the
// tile south of it.
func TileFor(lon, lat float64) (TileID, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon >= 180 ||
		lat > geo.SRTMMaxLat || lat <= geo.SRTMMinLat {
		return "", &ErrNoTile{Lon: lon, Lat: lat}
	}
	col := int(math.Floor((lon+180)/geo.SRTMTileSize)) + 1
	row := int(math.Floor((geo.SRTMMaxLat-lat)/geo.SRTMTileSize)) + 1
	return NewTileID(col, row), nil
}
