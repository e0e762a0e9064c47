package armenv

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrCalibrationTimeout is returned when interval signals never become ready.
	ErrCalibrationTimeout = errors.New("calibration timed out")
	// ErrInvalidCalibration is returned for intervals that cannot describe a joint range.
	ErrInvalidCalibration = errors.New("invalid calibration")
	// ErrSettleTimeout is returned when the backend never acknowledges motion completion.
	ErrSettleTimeout = errors.New("motion not acknowledged")
)

// ActuationError reports an acknowledged signal write that the backend rejected.
type ActuationError struct {
	Signal string
	Value  float64
	Err    error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("failed to dispatch %s=%.4f: %v", e.Signal, e.Value, e.Err)
}

func (e *ActuationError) Unwrap() error {
	return e.Err
}
