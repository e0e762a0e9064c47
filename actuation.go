package armenv

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"armenv/backend"
)

// Signals written on every actuation cycle.
const (
	SignalAPIMode      = "Apimode"
	SignalMovementMode = "movementMode"
)

// ControlMode selects how the backend interprets the commanded values.
type ControlMode int

const (
	// ForwardKinematics commands each joint angle directly.
	ForwardKinematics ControlMode = iota
	// InverseKinematics commands the end-effector pose and lets the backend solve joints.
	InverseKinematics
)

func (m ControlMode) String() string {
	switch m {
	case ForwardKinematics:
		return "forward_kinematics"
	case InverseKinematics:
		return "inverse_kinematics"
	default:
		return fmt.Sprintf("ControlMode(%d)", int(m))
	}
}

// ParseControlMode accepts the long names and the fk/ik abbreviations.
func ParseControlMode(s string) (ControlMode, error) {
	switch strings.ToLower(s) {
	case "forward_kinematics", "fk":
		return ForwardKinematics, nil
	case "inverse_kinematics", "ik":
		return InverseKinematics, nil
	default:
		return 0, errors.Errorf("unknown control mode %q", s)
	}
}

// ActuationState is the commanded target of the arm. It is either a *JointState or a
// *PoseState, matching the active ControlMode.
type ActuationState interface {
	Mode() ControlMode
	// Values returns the six commanded fields in signal order.
	Values() [NumJoints]float64
	// Signals returns the backend signal names for Values.
	Signals() [NumJoints]string
	clone() ActuationState
	setValues(v [NumJoints]float64)
}

// JointState holds commanded joint angles in degrees.
type JointState struct {
	Joint1, Joint2, Joint3, Joint4, Joint5, Joint6 float64
}

// HomeJoints is the pose every episode starts from.
var HomeJoints = JointState{Joint5: -90}

var jointSignals = [NumJoints]string{"Joint1", "Joint2", "Joint3", "Joint4", "Joint5", "Joint6"}

func (s *JointState) Mode() ControlMode { return ForwardKinematics }

func (s *JointState) Signals() [NumJoints]string { return jointSignals }

func (s *JointState) Values() [NumJoints]float64 {
	return [NumJoints]float64{s.Joint1, s.Joint2, s.Joint3, s.Joint4, s.Joint5, s.Joint6}
}

func (s *JointState) setValues(v [NumJoints]float64) {
	s.Joint1, s.Joint2, s.Joint3, s.Joint4, s.Joint5, s.Joint6 = v[0], v[1], v[2], v[3], v[4], v[5]
}

func (s *JointState) clone() ActuationState {
	c := *s
	return &c
}

// PoseState holds the commanded end-effector pose: position in meters, orientation as
// Euler angles in degrees.
type PoseState struct {
	PosX, PosY, PosZ   float64
	Alpha, Beta, Gamma float64
}

// HomePose is the IK target every episode starts from.
var HomePose = PoseState{}

var poseSignals = [NumJoints]string{"Pos_x", "Pos_y", "Pos_z", "Alpha", "Beta", "Gamma"}

func (s *PoseState) Mode() ControlMode { return InverseKinematics }

func (s *PoseState) Signals() [NumJoints]string { return poseSignals }

func (s *PoseState) Values() [NumJoints]float64 {
	return [NumJoints]float64{s.PosX, s.PosY, s.PosZ, s.Alpha, s.Beta, s.Gamma}
}

func (s *PoseState) setValues(v [NumJoints]float64) {
	s.PosX, s.PosY, s.PosZ, s.Alpha, s.Beta, s.Gamma = v[0], v[1], v[2], v[3], v[4], v[5]
}

func (s *PoseState) clone() ActuationState {
	c := *s
	return &c
}

// Pose converts the target to an rdk pose (millimeters, radians).
func (s *PoseState) Pose() spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: s.PosX * 1000, Y: s.PosY * 1000, Z: s.PosZ * 1000},
		&spatialmath.EulerAngles{Roll: degToRad(s.Alpha), Pitch: degToRad(s.Beta), Yaw: degToRad(s.Gamma)},
	)
}

func homeState(mode ControlMode) ActuationState {
	if mode == InverseKinematics {
		home := HomePose
		return &home
	}
	home := HomeJoints
	return &home
}

// Pipeline turns action deltas into clipped, encoded signal writes.
type Pipeline struct {
	client      backend.Client
	calibration Calibration
	boundaries  [NumJoints]JointBoundary
	workspace   *[NumJoints]JointBoundary
	state       ActuationState
	ack         bool
	logger      logging.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAcknowledgedDispatch makes every write wait for the backend and report failures as
// *ActuationError.
func WithAcknowledgedDispatch() PipelineOption {
	return func(p *Pipeline) { p.ack = true }
}

// WithWorkspace bounds pose targets in InverseKinematics mode.
func WithWorkspace(bounds [NumJoints]JointBoundary) PipelineOption {
	return func(p *Pipeline) { p.workspace = &bounds }
}

// NewPipeline returns a pipeline at the home target of mode.
func NewPipeline(client backend.Client, cal Calibration, mode ControlMode, logger logging.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client:      client,
		calibration: cal,
		boundaries:  cal.Boundaries(),
		state:       homeState(mode),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Mode() ControlMode {
	return p.state.Mode()
}

// State returns a copy of the current target.
func (p *Pipeline) State() ActuationState {
	return p.state.clone()
}

func (p *Pipeline) Boundaries() [NumJoints]JointBoundary {
	return p.boundaries
}

// SetMode switches the active target type. A new mode starts from its home target.
func (p *Pipeline) SetMode(mode ControlMode) {
	if mode == p.state.Mode() {
		return
	}
	p.logger.Infof("Switching control mode to %s", mode)
	p.state = homeState(mode)
}

// Home resets the target of the active mode.
func (p *Pipeline) Home() {
	p.state = homeState(p.state.Mode())
}

// PushMode tells the backend how to interpret the following writes.
func (p *Pipeline) PushMode(ctx context.Context) error {
	err := p.client.SetIntegerSignal(ctx, SignalMovementMode, int(p.state.Mode()), p.ack)
	if err != nil {
		if p.ack {
			return &ActuationError{Signal: SignalMovementMode, Value: float64(p.state.Mode()), Err: err}
		}
		p.logger.Debugf("Failed to push %s: %v", SignalMovementMode, err)
	}
	return nil
}

// Apply adds delta to the target, clips it to the calibrated range and dispatches it.
func (p *Pipeline) Apply(ctx context.Context, delta [NumJoints]float64) error {
	if err := p.PushMode(ctx); err != nil {
		return err
	}

	values := p.state.Values()
	for i := range values {
		values[i] += delta[i]
		if b, ok := p.bound(i); ok && !b.Contains(values[i]) {
			clipped := b.Clip(values[i])
			p.logger.Debugf("%s target %.3f outside [%.3f, %.3f], clipping to %.3f",
				p.state.Signals()[i], values[i], b.Min, b.Max, clipped)
			values[i] = clipped
		}
	}
	p.state.setValues(values)

	return p.Dispatch(ctx)
}

func (p *Pipeline) bound(i int) (JointBoundary, bool) {
	if p.state.Mode() == ForwardKinematics {
		return p.boundaries[i], true
	}
	if p.workspace != nil {
		return p.workspace[i], true
	}
	return JointBoundary{}, false
}

// Dispatch writes the current target without clipping.
func (p *Pipeline) Dispatch(ctx context.Context) error {
	values := p.state.Values()
	signals := p.state.Signals()
	for i, v := range values {
		if err := p.send(ctx, signals[i], p.encode(i, v)); err != nil {
			return err
		}
	}
	return nil
}

// encode converts field i of the active target into the value written on the wire.
func (p *Pipeline) encode(i int, v float64) float64 {
	if p.state.Mode() == ForwardKinematics {
		return p.calibration[i].Encode(v)
	}
	// orientation goes out in radians
	if i >= 3 {
		return degToRad(v)
	}
	return v
}

func (p *Pipeline) send(ctx context.Context, name string, value float64) error {
	err := p.client.SetFloatSignal(ctx, name, value, p.ack)
	if err == nil {
		return nil
	}
	if p.ack {
		return &ActuationError{Signal: name, Value: value, Err: err}
	}
	// oneshot writes are not confirmed
	p.logger.Debugf("Failed to dispatch %s: %v", name, err)
	return nil
}
