// Package backend talks to the simulation/actuation backend that drives the arm.
package backend

import (
	"context"

	"github.com/golang/geo/r3"
)

// World is the handle used for absolute (world frame) object positions.
const World = -1

// ForceReading is a force/torque sensor sample.
type ForceReading struct {
	State  int
	Force  r3.Vector
	Torque r3.Vector
}

// Client exposes the backend's signal and sensor primitives.
//
// Set calls with ack=false are fire-and-forget: the request is written and no response is
// awaited, so a nil error only means the request left the process.
type Client interface {
	// GetFloatSignal returns the last value of a float signal without waiting.
	// ErrNotReady is returned while the backend has no value to report.
	GetFloatSignal(ctx context.Context, name string) (float64, error)
	// WaitFloatSignal blocks until the backend can answer for the signal.
	WaitFloatSignal(ctx context.Context, name string) (float64, error)
	GetIntegerSignal(ctx context.Context, name string) (int, error)

	SetFloatSignal(ctx context.Context, name string, value float64, ack bool) error
	SetIntegerSignal(ctx context.Context, name string, value int, ack bool) error

	ObjectHandle(ctx context.Context, name string) (int, error)
	// ReadForceSensor and ObjectPosition return the most recent buffered value.
	ReadForceSensor(ctx context.Context, handle int) (ForceReading, error)
	ObjectPosition(ctx context.Context, handle, relativeTo int) (r3.Vector, error)

	Close() error
}
