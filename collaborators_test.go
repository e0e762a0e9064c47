package armenv

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestScaleShaper(t *testing.T) {
	s := ScaleShaper{Scale: 10, Bound: 2}
	got := s.Shape([NumJoints]float64{0.1, -0.1, 0.5, -0.5, 0, 0.2}, ForwardKinematics)
	assert.InDeltaSlice(t, []float64{1, -1, 2, -2, 0, 2}, got[:], 1e-9)

	unbounded := ScaleShaper{Scale: 10}
	got = unbounded.Shape([NumJoints]float64{0.5, -0.5}, InverseKinematics)
	assert.InDeltaSlice(t, []float64{5, -5, 0, 0, 0, 0}, got[:], 1e-9)
}

func TestReachEvaluator(t *testing.T) {
	e := ReachEvaluator{Target: r3.Vector{X: 1}, Tolerance: 0.1, MaxForce: 5}

	tests := []struct {
		name   string
		obs    Observation
		reward float64
		done   bool
	}{
		{"far away", NewObservation(r3.Vector{X: 4, Y: 4}, r3.Vector{}, r3.Vector{}), -5, false},
		{"within tolerance", NewObservation(r3.Vector{X: 1.05}, r3.Vector{}, r3.Vector{}), -0.05 + 1, true},
		{"excessive force", NewObservation(r3.Vector{X: 4, Y: 4}, r3.Vector{Z: 6}, r3.Vector{}), -5 - 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward, done := e.Evaluate(tt.obs)
			assert.InDelta(t, tt.reward, reward, 1e-9)
			assert.Equal(t, tt.done, done)
		})
	}

	// zero thresholds never terminate
	reward, done := ReachEvaluator{}.Evaluate(NewObservation(r3.Vector{}, r3.Vector{Z: 1e6}, r3.Vector{}))
	assert.Equal(t, 0.0, reward)
	assert.False(t, done)
}

func TestObservationLayout(t *testing.T) {
	obs := NewObservation(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 4, Y: 5, Z: 6}, r3.Vector{X: 7, Y: 8, Z: 9})
	assert.Equal(t, Observation{1, 2, 3, 4, 5, 6, 7, 8, 9}, obs)
	assert.Equal(t, r3.Vector{X: 4, Y: 5, Z: 6}, obs.Force())
	assert.Equal(t, r3.Vector{X: 7, Y: 8, Z: 9}, obs.Torque())
}
