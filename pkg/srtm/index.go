package srtm

import (
	"context"
	"math"
	"sort"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
	"github.com/dhconnelly/rtreego"
)

// TileLocator answers which tile covers a location.
//
// ExecTileLocator runs the srtm4_which_tile binary; TileIndex answers in-process.
type TileLocator interface {
	Locate(ctx context.Context, lon, lat float64) (TileID, error)
}

// TileIndex provides spatial queries over the SRTM tile grid.
//
// Every tile extent is stored in an R-tree, so point and box lookups do not
// depend on the caller knowing the tiling arithmetic.
type TileIndex struct {
	rtree *rtreego.Rtree
	count int
}

// indexedTile wraps a tile extent for R-tree storage.
type indexedTile struct {
	id     TileID
	extent geo.Bounds
}

// Bounds implements rtreego.Spatial interface.
func (t indexedTile) Bounds() rtreego.Rect {
	point := rtreego.Point{t.extent.MinLon, t.extent.MinLat}
	lengths := []float64{
		t.extent.MaxLon - t.extent.MinLon,
		t.extent.MaxLat - t.extent.MinLat,
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// owns applies the border convention of TileFor: west and north edges inclusive.
func (t indexedTile) owns(lon, lat float64) bool {
	return lon >= t.extent.MinLon && lon < t.extent.MaxLon &&
		lat > t.extent.MinLat && lat <= t.extent.MaxLat
}

// NewTileIndex builds an index over all 72x24 SRTM tiles.
func NewTileIndex() *TileIndex {
	// 2D, min=25 children, max=50 children
	rtree := rtreego.NewTree(2, 25, 50)

	count := 0
	for col := 1; col <= TileColumns; col++ {
		for row := 1; row <= TileRows; row++ {
			id := NewTileID(col, row)
			extent, _ := id.Extent()
			rtree.Insert(indexedTile{id: id, extent: extent})
			count++
		}
	}

	return &TileIndex{rtree: rtree, count: count}
}

// Count returns the number of indexed tiles.
func (idx *TileIndex) Count() int {
	return idx.count
}

// Locate returns the tile covering (lon, lat).
func (idx *TileIndex) Locate(_ context.Context, lon, lat float64) (TileID, error) {
	if lon < -180 || lon >= 180 || lat > geo.SRTMMaxLat || lat <= geo.SRTMMinLat || math.IsNaN(lon) || math.IsNaN(lat) {
		return "", &ErrNoTile{Lon: lon, Lat: lat}
	}

	// Tolerance makes border points intersect both neighbours; owns picks one
	query := rtreego.Point{lon, lat}.ToRect(1e-9)
	for _, spatial := range idx.rtree.SearchIntersect(query) {
		tile := spatial.(indexedTile)
		if tile.owns(lon, lat) {
			return tile.id, nil
		}
	}
	return "", &ErrNoTile{Lon: lon, Lat: lat}
}

// Intersecting returns the tiles whose extent intersects b, sorted by id.
func (idx *TileIndex) Intersecting(b geo.Bounds) []TileID {
	point := rtreego.Point{b.MinLon, b.MinLat}
	lengths := []float64{b.MaxLon - b.MinLon, b.MaxLat - b.MinLat}
	if lengths[0] <= 0 || lengths[1] <= 0 {
		// Zero-area query; R-tree rectangles need positive lengths
		lengths = []float64{max(lengths[0], 1e-9), max(lengths[1], 1e-9)}
	}
	queryRect, err := rtreego.NewRect(point, lengths)
	if err != nil {
		return nil
	}

	var ids []TileID
	for _, spatial := range idx.rtree.SearchIntersect(queryRect) {
		ids = append(ids, spatial.(indexedTile).id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
