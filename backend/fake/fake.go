// Package fake implements an in-memory backend for tests and offline runs.
package fake

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"armenv/backend"
)

// SetCall records one signal write.
type SetCall struct {
	Name    string
	Value   float64
	Integer bool
	Ack     bool
}

// Backend is a backend.Client that keeps signals in memory.
type Backend struct {
	mu         sync.Mutex
	floats     map[string]float64
	ints       map[string]int
	notReady   map[string]int
	failSets   map[string]error
	handles    map[string]int
	nextHandle int
	force      backend.ForceReading
	positions  map[int]r3.Vector
	positionFn func(signals map[string]float64) r3.Vector
	sets       []SetCall
	closed     bool
}

var _ backend.Client = (*Backend)(nil)

// DefaultIntervals gives every joint the range [-180°, 180°].
var DefaultIntervals = [6][2]float64{
	{-math.Pi, 2 * math.Pi},
	{-math.Pi, 2 * math.Pi},
	{-math.Pi, 2 * math.Pi},
	{-math.Pi, 2 * math.Pi},
	{-math.Pi, 2 * math.Pi},
	{-math.Pi, 2 * math.Pi},
}

// New returns a backend publishing DefaultIntervals.
func New() *Backend {
	b := &Backend{
		floats:     make(map[string]float64),
		ints:       make(map[string]int),
		notReady:   make(map[string]int),
		failSets:   make(map[string]error),
		handles:    make(map[string]int),
		nextHandle: 1,
		positions:  make(map[int]r3.Vector),
	}
	b.SetIntervals(DefaultIntervals)
	return b
}

// SetIntervals publishes per-joint (origin, span) pairs in radians.
func (b *Backend) SetIntervals(intervals [6][2]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, interval := range intervals {
		for j, v := range interval {
			b.floats[fmt.Sprintf("Interval_%d_%d", i+1, j+1)] = v
		}
	}
}

// DelayReady makes the next n reads of name answer ErrNotReady.
func (b *Backend) DelayReady(name string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notReady[name] = n
}

// Unpublish removes a signal so reads answer ErrNotReady until it is set again.
func (b *Backend) Unpublish(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.floats, name)
	delete(b.ints, name)
}

// FailSets makes writes to name fail with err. Only acknowledged writes report it.
func (b *Backend) FailSets(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSets[name] = err
}

// SetForce sets the reading returned by ReadForceSensor.
func (b *Backend) SetForce(reading backend.ForceReading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.force = reading
}

// SetPosition sets the position reported for handle.
func (b *Backend) SetPosition(handle int, pos r3.Vector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[handle] = pos
}

// SetPositionFunc derives every reported position from the current float signals.
func (b *Backend) SetPositionFunc(fn func(signals map[string]float64) r3.Vector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positionFn = fn
}

// Float returns the current value of a float signal.
func (b *Backend) Float(name string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.floats[name]
	return v, ok
}

// Int returns the current value of an integer signal.
func (b *Backend) Int(name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.ints[name]
	return v, ok
}

// Sets returns every write seen so far, oldest first.
func (b *Backend) Sets() []SetCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SetCall(nil), b.sets...)
}

// ResetSets forgets recorded writes.
func (b *Backend) ResetSets() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets = nil
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// ready must be called with mu held.
func (b *Backend) ready(name string) bool {
	if n := b.notReady[name]; n > 0 {
		b.notReady[name] = n - 1
		return false
	}
	return true
}

func (b *Backend) GetFloatSignal(ctx context.Context, name string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, backend.ErrClosed
	}
	if !b.ready(name) {
		return 0, backend.ErrNotReady
	}
	v, ok := b.floats[name]
	if !ok {
		return 0, backend.ErrNotReady
	}
	return v, nil
}

// WaitFloatSignal behaves like a buffered read: it answers ErrNotReady while a delay is
// pending and leaves retrying to the caller.
func (b *Backend) WaitFloatSignal(ctx context.Context, name string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.GetFloatSignal(ctx, name)
}

func (b *Backend) GetIntegerSignal(ctx context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, backend.ErrClosed
	}
	if !b.ready(name) {
		return 0, backend.ErrNotReady
	}
	v, ok := b.ints[name]
	if !ok {
		return 0, backend.ErrNotReady
	}
	return v, nil
}

func (b *Backend) SetFloatSignal(ctx context.Context, name string, value float64, ack bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}
	b.sets = append(b.sets, SetCall{Name: name, Value: value, Ack: ack})
	if err := b.failSets[name]; err != nil {
		if ack {
			return err
		}
		return nil
	}
	b.floats[name] = value
	return nil
}

func (b *Backend) SetIntegerSignal(ctx context.Context, name string, value int, ack bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}
	b.sets = append(b.sets, SetCall{Name: name, Value: float64(value), Integer: true, Ack: ack})
	if err := b.failSets[name]; err != nil {
		if ack {
			return err
		}
		return nil
	}
	b.ints[name] = value
	return nil
}

// ObjectHandle hands out a stable handle per object name.
func (b *Backend) ObjectHandle(ctx context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.handles[name]; ok {
		return h, nil
	}
	h := b.nextHandle
	b.nextHandle++
	b.handles[name] = h
	return h, nil
}

func (b *Backend) ReadForceSensor(ctx context.Context, handle int) (backend.ForceReading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ForceReading{}, backend.ErrClosed
	}
	return b.force, nil
}

func (b *Backend) ObjectPosition(ctx context.Context, handle, relativeTo int) (r3.Vector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return r3.Vector{}, backend.ErrClosed
	}
	if b.positionFn != nil {
		signals := make(map[string]float64, len(b.floats))
		for k, v := range b.floats {
			signals[k] = v
		}
		return b.positionFn(signals), nil
	}
	return b.positions[handle], nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
