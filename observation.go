package armenv

import "github.com/golang/geo/r3"

// ObservationSize is the length of an observation: position, force and torque.
const ObservationSize = 9

// Observation is the end-effector position followed by the force and torque vectors.
type Observation [ObservationSize]float64

func NewObservation(position, force, torque r3.Vector) Observation {
	return Observation{
		position.X, position.Y, position.Z,
		force.X, force.Y, force.Z,
		torque.X, torque.Y, torque.Z,
	}
}

func (o Observation) Position() r3.Vector { return r3.Vector{X: o[0], Y: o[1], Z: o[2]} }

func (o Observation) Force() r3.Vector { return r3.Vector{X: o[3], Y: o[4], Z: o[5]} }

func (o Observation) Torque() r3.Vector { return r3.Vector{X: o[6], Y: o[7], Z: o[8]} }
