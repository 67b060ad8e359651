package srtm

import (
	"errors"
	"fmt"
)

// ErrOracleOutput indicates an external oracle printed something that is not a
// single usable token. It is a protocol failure for that call and is never
// coerced into a default value.
type ErrOracleOutput struct {
	Oracle string // Binary or implementation name
	Output string // Offending line, possibly empty
	Reason string
}

func (e *ErrOracleOutput) Error() string {
	return fmt.Sprintf("%s: malformed output %q: %s", e.Oracle, e.Output, e.Reason)
}

// ErrDownload indicates a tile archive could not be fetched after all attempts.
type ErrDownload struct {
	Tile     TileID
	URL      string
	Attempts int
	Err      error
}

func (e *ErrDownload) Error() string {
	return fmt.Sprintf("download tile %s from %s failed after %d attempt(s): %v",
		e.Tile, e.URL, e.Attempts, e.Err)
}

func (e *ErrDownload) Unwrap() error {
	return e.Err
}

// ErrNoTile indicates a location outside the SRTM tiling.
type ErrNoTile struct {
	Lon, Lat float64
}

func (e *ErrNoTile) Error() string {
	return fmt.Sprintf("no SRTM tile covers lon=%f lat=%f (lat must be within ±60, lon within ±180)",
		e.Lon, e.Lat)
}

// errTileUnavailable marks a tile the remote archive does not provide. It never
// leaves this package: such tiles are logged and left absent.
var errTileUnavailable = errors.New("tile not available")
