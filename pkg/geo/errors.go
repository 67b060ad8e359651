package geo

import (
	"fmt"
)

// ErrOutsideCoverage indicates a box that cannot be sampled against SRTM data:
// unordered, degenerate, or beyond the dataset's longitude/latitude limits.
type ErrOutsideCoverage struct {
	Bounds Bounds
	Reason string
}

func (e *ErrOutsideCoverage) Error() string {
	return fmt.Sprintf("bounds %s outside SRTM coverage: %s", e.Bounds, e.Reason)
}
