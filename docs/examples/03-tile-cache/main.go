package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
	"github.com/beetlebugorg/rpcroi/pkg/srtm"
)

func main() {
	opts := srtm.DefaultCacheOptions()
	opts.Dir = "srtm-cache"
	opts.Timeout = 5 * time.Minute
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	cache, err := srtm.NewTileCache(opts)
	if err != nil {
		log.Fatal(err)
	}

	// The Alps, across the corner of four tiles
	alps := geo.Bounds{MinLon: 4.5, MaxLon: 5.5, MinLat: 44.5, MaxLat: 45.5}

	ids, err := cache.ListNeededTiles(context.Background(), alps)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s needs %d tiles: %v\n", alps, len(ids), ids)

	if err := cache.EnsureRegion(context.Background(), alps); err != nil {
		log.Fatal(err)
	}

	for _, id := range ids {
		if cache.Has(id) {
			fmt.Printf("  %s -> %s\n", id, cache.TilePath(id))
		} else {
			fmt.Printf("  %s not available (open water?)\n", id)
		}
	}
}
