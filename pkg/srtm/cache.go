package srtm

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/beetlebugorg/rpcroi/pkg/geo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the CGIAR-CSI archive of 5x5 degree SRTM GeoTIFF tiles.
const DefaultBaseURL = "http://srtm.csi.cgiar.org/wp-content/uploads/files/srtm_5x5/TIFF"

// CacheOptions configures a TileCache.
type CacheOptions struct {
	// Dir is the local tile directory. Required.
	Dir string

	// BaseURL is the remote archive root; tiles are fetched from {BaseURL}/{id}.zip.
	// Default: DefaultBaseURL
	BaseURL string

	// Client performs the downloads. Default: a client without overall timeout,
	// each attempt being bounded by Timeout instead.
	Client *http.Client

	// Timeout bounds a single download attempt. Default: 2 minutes
	Timeout time.Duration

	// Attempts is the maximum number of download attempts per tile. Default: 3
	Attempts int

	// RetryDelay is the pause after the first failed attempt; it grows linearly.
	// Default: 1 second
	RetryDelay time.Duration

	// Workers bounds concurrent tile fetches in EnsureRegion.
	// Default: runtime.NumCPU()
	Workers int

	// Locator resolves box corners to tile ids. Default: NewTileIndex()
	Locator TileLocator

	// Logger receives diagnostics such as tiles missing from the archive.
	// Default: discards everything
	Logger *slog.Logger
}

// DefaultCacheOptions returns cache options with defaults and no directory.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		BaseURL:    DefaultBaseURL,
		Timeout:    2 * time.Minute,
		Attempts:   3,
		RetryDelay: time.Second,
		Workers:    runtime.NumCPU(),
	}
}

// TileCache keeps SRTM tiles as {Dir}/{id}.tif, downloading them on demand.
//
// Tiles are immutable once present: nothing is ever refreshed or evicted.
// Publication is atomic (temporary file in Dir, then rename), so concurrent
// processes sharing Dir never observe partial tiles. Within a process,
// concurrent fetches of the same tile collapse into one download.
type TileCache struct {
	dir        string
	baseURL    string
	client     *http.Client
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	workers    int
	locator    TileLocator
	logger     *slog.Logger

	inflight singleflight.Group
}

// NewTileCache creates a tile cache. The directory is created lazily on the
// first download.
func NewTileCache(opts CacheOptions) (*TileCache, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("tile cache directory not set")
	}

	defaults := DefaultCacheOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.Locator == nil {
		opts.Locator = NewTileIndex()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &TileCache{
		dir:        opts.Dir,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     opts.Client,
		timeout:    opts.Timeout,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
		workers:    opts.Workers,
		locator:    opts.Locator,
		logger:     opts.Logger,
	}, nil
}

// Dir returns the cache directory.
func (c *TileCache) Dir() string {
	return c.dir
}

// TilePath returns where the raster of id lives once resident.
func (c *TileCache) TilePath(id TileID) string {
	return filepath.Join(c.dir, id.FileName())
}

// Has reports whether the tile is resident.
func (c *TileCache) Has(id TileID) bool {
	info, err := os.Stat(c.TilePath(id))
	return err == nil && info.Mode().IsRegular()
}

// ListNeededTiles returns the tiles covering the four corners of b,
// deduplicated and sorted.
//
// One lookup is made per corner, so boxes wider than a tile may miss interior
// tiles; SRTM tiles span 5° and ROI footprints are far smaller.
func (c *TileCache) ListNeededTiles(ctx context.Context, b geo.Bounds) ([]TileID, error) {
	seen := make(map[TileID]bool, 4)
	var ids []TileID
	for _, corner := range b.Corners() {
		id, err := c.locator.Locate(ctx, corner.Lon, corner.Lat)
		if err != nil {
			return nil, fmt.Errorf("locate tile at (%f, %f): %w", corner.Lon, corner.Lat, err)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	c.logger.Debug("needed srtm tiles", "bounds", b.String(), "tiles", ids)
	return ids, nil
}

// EnsureRegion makes every tile covering b resident, fetching in parallel.
func (c *TileCache) EnsureRegion(ctx context.Context, b geo.Bounds) error {
	ids, err := c.ListNeededTiles(ctx, b)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, id := range ids {
		g.Go(func() error {
			return c.EnsureTilePresent(ctx, id)
		})
	}
	return g.Wait()
}

// EnsureTilePresent makes the tile resident.
//
// A resident tile is a no-op without network access. A tile the archive does
// not provide is logged and left absent; later elevation queries over it read
// as no data. Only transport failures that persist over all attempts, and
// local file system errors, are returned.
//
// Concurrent callers share one fetch. A caller whose ctx ends stops waiting
// with ctx.Err(); the fetch goes on for the others, bounded by the cache's own
// attempt timeouts and retry delays.
func (c *TileCache) EnsureTilePresent(ctx context.Context, id TileID) error {
	if c.Has(id) {
		return nil
	}
	if _, _, err := id.Parse(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := c.inflight.DoChan(string(id), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchBound())
		defer cancel()
		return nil, c.fetch(fetchCtx, id)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// fetchBound is the longest a fetch may take over all attempts.
func (c *TileCache) fetchBound() time.Duration {
	n := time.Duration(c.attempts)
	return n*c.timeout + c.retryDelay*n*(n-1)/2
}

func (c *TileCache) fetch(ctx context.Context, id TileID) error {
	// Another caller may have published it while we waited
	if c.Has(id) {
		return nil
	}

	// MkdirAll succeeds when a concurrent process created the directory first
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create tile cache directory: %w", err)
	}

	url := c.baseURL + "/" + id.ArchiveName()
	archive, err := c.download(ctx, id, url)
	if errors.Is(err, errTileUnavailable) {
		c.logger.Warn("srtm tile not available", "tile", string(id), "url", url)
		return nil
	}
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	err = c.extract(archive, id)
	if errors.Is(err, errTileUnavailable) {
		c.logger.Warn("srtm tile not available", "tile", string(id), "url", url, "reason", "archive has no raster")
		return nil
	}
	if err != nil {
		return fmt.Errorf("extract tile %s: %w", id, err)
	}

	c.logger.Info("srtm tile cached", "tile", string(id), "path", c.TilePath(id))
	return nil
}

// download saves the archive of id to a temporary file inside the cache
// directory and returns its path.
func (c *TileCache) download(ctx context.Context, id TileID, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay * time.Duration(attempt-1)
			c.logger.Debug("retrying srtm download", "tile", string(id), "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		path, retry, err := c.downloadOnce(ctx, id, url)
		if err == nil {
			return path, nil
		}
		if !retry {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}

	return "", &ErrDownload{Tile: id, URL: url, Attempts: c.attempts, Err: lastErr}
}

// downloadOnce performs a single bounded attempt. retry reports whether the
// failure is transient.
func (c *TileCache) downloadOnce(ctx context.Context, id TileID, url string) (path string, retry bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, &ErrDownload{Tile: id, URL: url, Attempts: 1, Err: err}
	}
	req.Header.Set("User-Agent", "rpcroi")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", false, errTileUnavailable
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("HTTP %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", false, &ErrDownload{Tile: id, URL: url, Attempts: 1, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	tmp, err := os.CreateTemp(c.dir, string(id)+".*.zip.part")
	if err != nil {
		return "", false, fmt.Errorf("create archive file: %w", err)
	}

	_, err = io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", true, fmt.Errorf("save archive: %w", err)
	}

	return tmp.Name(), false, nil
}

// extract publishes exactly {id}.tif from the archive into the cache directory.
func (c *TileCache) extract(archive string, id TileID) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		// Not a zip container; the archive answers missing tiles with a page
		return errTileUnavailable
	}
	defer r.Close()

	var entry *zip.File
	for _, f := range r.File {
		if f.Name == id.FileName() {
			entry = f
			break
		}
	}
	if entry == nil {
		return errTileUnavailable
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(c.dir, string(id)+".*.tif.part")
	if err != nil {
		return err
	}

	_, err = io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	// Rename within one directory is atomic
	if err := os.Rename(tmp.Name(), c.TilePath(id)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
