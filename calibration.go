package armenv

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"armenv/backend"
)

// NumJoints is the number of actuated joints.
const NumJoints = 6

// normalizedRange is the full scale of the backend's joint command encoding.
const normalizedRange = 1000.0

// JointBoundary is the commandable range of a joint in degrees.
type JointBoundary struct {
	Min float64 `json:"min_deg"`
	Max float64 `json:"max_deg"`
}

// Clip clamps deg into the boundary.
func (b JointBoundary) Clip(deg float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, deg))
}

func (b JointBoundary) Contains(deg float64) bool {
	return deg >= b.Min && deg <= b.Max
}

// JointCalibration is the interval a joint reports to the backend, in radians: the lower end
// of the range and its width.
type JointCalibration struct {
	Origin float64 `json:"origin"`
	Span   float64 `json:"span"`
}

// Boundary converts the interval into degrees.
func (c JointCalibration) Boundary() JointBoundary {
	origin := radToDeg(c.Origin)
	return JointBoundary{Min: origin, Max: origin + radToDeg(c.Span)}
}

// Encode converts an angle in degrees to the backend's command unit, where 0 is the origin
// and 1000 the far end of the interval.
func (c JointCalibration) Encode(deg float64) float64 {
	return (degToRad(deg) - c.Origin) / c.Span * normalizedRange
}

// Decode is the inverse of Encode.
func (c JointCalibration) Decode(normalized float64) float64 {
	return radToDeg(normalized/normalizedRange*c.Span + c.Origin)
}

// Validate checks the interval can be used for encoding. Encode divides by Span, so a zero
// span is rejected along with negative and non-finite values.
func (c JointCalibration) Validate() error {
	if math.IsNaN(c.Origin) || math.IsInf(c.Origin, 0) {
		return errors.Wrapf(ErrInvalidCalibration, "origin %v is not finite", c.Origin)
	}
	if math.IsNaN(c.Span) || math.IsInf(c.Span, 0) || c.Span <= 0 {
		return errors.Wrapf(ErrInvalidCalibration, "span %v must be positive", c.Span)
	}
	return nil
}

// Calibration holds the interval of every joint, indexed from 0.
type Calibration [NumJoints]JointCalibration

// Boundaries returns the per-joint ranges in degrees.
func (c Calibration) Boundaries() [NumJoints]JointBoundary {
	var out [NumJoints]JointBoundary
	for i, joint := range c {
		out[i] = joint.Boundary()
	}
	return out
}

func (c Calibration) Validate() error {
	for i, joint := range c {
		if err := joint.Validate(); err != nil {
			return errors.Wrapf(err, "joint %d", i+1)
		}
	}
	return nil
}

// IntervalSignal names the signal carrying component (0 origin, 1 span) of joint, both
// 0-indexed.
func IntervalSignal(joint, component int) string {
	return fmt.Sprintf("Interval_%d_%d", joint+1, component+1)
}

// Calibrator reads joint intervals from the backend.
type Calibrator struct {
	client  backend.Client
	timeout time.Duration
	logger  logging.Logger
}

// NewCalibrator returns a calibrator that gives up on a signal after timeout.
func NewCalibrator(client backend.Client, timeout time.Duration, logger logging.Logger) *Calibrator {
	return &Calibrator{client: client, timeout: timeout, logger: logger}
}

// Calibrate reads both interval components of every joint. Signals that are not ready yet
// are retried with backoff until the calibrator's timeout. A joint whose span is not positive
// fails with ErrInvalidCalibration.
func (c *Calibrator) Calibrate(ctx context.Context) (Calibration, error) {
	var cal Calibration
	for i := range cal {
		var raw [2]float64
		for j := range raw {
			v, err := c.readInterval(ctx, IntervalSignal(i, j))
			if err != nil {
				return Calibration{}, err
			}
			raw[j] = v
		}

		cal[i] = JointCalibration{Origin: raw[0], Span: raw[1]}
		if err := cal[i].Validate(); err != nil {
			return Calibration{}, errors.Wrapf(err, "joint %d", i+1)
		}

		b := cal[i].Boundary()
		c.logger.Infof("Joint %d boundary [%.2f°, %.2f°]", i+1, b.Min, b.Max)
	}
	return cal, nil
}

func (c *Calibrator) readInterval(ctx context.Context, name string) (float64, error) {
	v, err := c.client.GetFloatSignal(ctx, name)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, backend.ErrNotReady) {
		return 0, errors.Wrapf(err, "failed to read %s", name)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = c.timeout

	attempts := 0
	op := func() error {
		attempts++
		v, err = c.client.WaitFloatSignal(ctx, name)
		if err == nil || errors.Is(err, backend.ErrNotReady) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		c.logger.Debugf("%s not ready, retrying in %v", name, next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, backend.ErrNotReady) {
			return 0, errors.Wrapf(ErrCalibrationTimeout, "%s not ready after %d attempts", name, attempts)
		}
		return 0, errors.Wrapf(err, "failed to read %s", name)
	}
	return v, nil
}

func radToDeg(rad float64) float64 {
	return rad / math.Pi * 180
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
