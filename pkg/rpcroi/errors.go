package rpcroi

import (
	"fmt"
)

// ErrInvalidROI indicates a region with non-positive width or height.
type ErrInvalidROI struct {
	ROI ROI
}

func (e *ErrInvalidROI) Error() string {
	return fmt.Sprintf("invalid ROI %+v: width and height must be positive", e.ROI)
}

// ErrCameraOutput indicates a camera model returned slices whose length does
// not match its input.
type ErrCameraOutput struct {
	Operation string // "direct" or "inverse"
	Got, Want int
}

func (e *ErrCameraOutput) Error() string {
	return fmt.Sprintf("camera %s estimate returned %d points, want %d", e.Operation, e.Got, e.Want)
}
