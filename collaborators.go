package armenv

import (
	"math"

	"github.com/golang/geo/r3"
)

// Shaper maps a raw agent action to per-mode target deltas.
type Shaper interface {
	Shape(action [NumJoints]float64, mode ControlMode) [NumJoints]float64
}

// ShaperFunc adapts a function to Shaper.
type ShaperFunc func(action [NumJoints]float64, mode ControlMode) [NumJoints]float64

func (f ShaperFunc) Shape(action [NumJoints]float64, mode ControlMode) [NumJoints]float64 {
	return f(action, mode)
}

// ModeSelector is implemented by shapers that decide which control mode is active.
type ModeSelector interface {
	Mode() ControlMode
}

// Evaluator scores an observation and decides whether the episode is over.
type Evaluator interface {
	Evaluate(obs Observation) (reward float64, done bool)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(obs Observation) (float64, bool)

func (f EvaluatorFunc) Evaluate(obs Observation) (float64, bool) {
	return f(obs)
}

// ScaleShaper multiplies every component by Scale and clamps it to ±Bound.
// A zero Bound disables clamping.
type ScaleShaper struct {
	Scale float64
	Bound float64
}

func (s ScaleShaper) Shape(action [NumJoints]float64, _ ControlMode) [NumJoints]float64 {
	var out [NumJoints]float64
	for i, a := range action {
		v := a * s.Scale
		if s.Bound > 0 {
			v = math.Max(-s.Bound, math.Min(s.Bound, v))
		}
		out[i] = v
	}
	return out
}

// ReachEvaluator rewards closeness of the end effector to Target.
//
// The reward is the negative distance. Reaching within Tolerance ends the episode with a +1
// bonus; a force magnitude above MaxForce ends it with a -1 penalty. Zero thresholds disable
// the matching termination.
type ReachEvaluator struct {
	Target    r3.Vector
	Tolerance float64
	MaxForce  float64
}

func (e ReachEvaluator) Evaluate(obs Observation) (float64, bool) {
	dist := obs.Position().Sub(e.Target).Norm()
	reward := -dist

	if e.MaxForce > 0 && obs.Force().Norm() > e.MaxForce {
		return reward - 1, true
	}
	if e.Tolerance > 0 && dist <= e.Tolerance {
		return reward + 1, true
	}
	return reward, false
}
