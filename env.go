// Package armenv is an episodic reinforcement-learning environment for a 6-joint arm driven
// through a signal-based simulation backend.
package armenv

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/stat/distuv"

	"armenv/backend"
)

// SampleBound is the half-width of the range SampleAction draws from.
const SampleBound = 0.5

// Env runs reset/step episodes against a backend. It is not safe for concurrent use.
type Env struct {
	client    backend.Client
	cfg       *Config
	pipeline  *Pipeline
	settler   Settler
	shaper    Shaper
	evaluator Evaluator
	sensor    int
	sampler   distuv.Uniform
	logger    logging.Logger
}

// sensorSample is one buffered read of the end effector.
type sensorSample struct {
	position r3.Vector
	reading  backend.ForceReading
}

func (s sensorSample) observation() Observation {
	return NewObservation(s.position, s.reading.Force, s.reading.Torque)
}

// New configures the backend and calibrates the joints. cfg must have been validated.
// The environment takes ownership of client and closes it in Close.
func New(
	ctx context.Context,
	client backend.Client,
	cfg *Config,
	shaper Shaper,
	evaluator Evaluator,
	logger logging.Logger,
) (*Env, error) {
	sensor, err := configureBackend(ctx, client, cfg, logger)
	if err != nil {
		return nil, err
	}

	cal, fromFile := cfg.LoadCalibration(logger)
	if !fromFile {
		cal, err = NewCalibrator(client, cfg.CalibrationTimeout, logger).Calibrate(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to calibrate joints")
		}
		if err := cfg.SaveCalibration(cal); err != nil {
			logger.Warnf("Failed to save calibration: %v", err)
		}
	}

	var opts []PipelineOption
	if cfg.AcknowledgedDispatch {
		opts = append(opts, WithAcknowledgedDispatch())
	}
	if bounds, ok := cfg.WorkspaceBounds(); ok {
		opts = append(opts, WithWorkspace(*bounds))
	}

	var settler Settler = FixedDelay{}
	if cfg.SettleMode == SettleAck {
		settler = &MotionAck{Client: client, Signal: cfg.MotionSignal, Timeout: cfg.MotionTimeout, Logger: logger}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	e := &Env{
		client:    client,
		cfg:       cfg,
		pipeline:  NewPipeline(client, cal, cfg.Mode(), logger, opts...),
		settler:   settler,
		shaper:    shaper,
		evaluator: evaluator,
		sensor:    sensor,
		sampler: distuv.Uniform{
			Min: -SampleBound,
			Max: SampleBound,
			Src: rand.NewPCG(seed, seed>>1|1),
		},
		logger: logger,
	}

	logger.Infof("Environment ready (%s mode, backend %s)", e.pipeline.Mode(), cfg.Backend)
	return e, nil
}

// Reset homes the arm and returns the observation after it settled.
func (e *Env) Reset(ctx context.Context) (Observation, error) {
	e.selectMode()

	if _, err := e.readSensors(ctx); err != nil {
		return Observation{}, err
	}

	e.pipeline.Home()
	if err := e.pipeline.Dispatch(ctx); err != nil {
		return Observation{}, errors.Wrap(err, "failed to dispatch home target")
	}

	if err := e.settler.Settle(ctx, e.cfg.ResetSettle); err != nil {
		return Observation{}, errors.Wrap(err, "reset did not settle")
	}

	sample, err := e.readSensors(ctx)
	if err != nil {
		return Observation{}, err
	}
	return sample.observation(), nil
}

// Step applies action and returns the observation, reward and termination flag.
//
// The observation is read before the action is dispatched, so it describes the result of
// the previous step.
func (e *Env) Step(ctx context.Context, action [NumJoints]float64) (Observation, float64, bool, error) {
	e.selectMode()

	if err := e.pipeline.PushMode(ctx); err != nil {
		return Observation{}, 0, false, err
	}

	sample, err := e.readSensors(ctx)
	if err != nil {
		return Observation{}, 0, false, err
	}

	delta := e.shaper.Shape(action, e.pipeline.Mode())
	if err := e.pipeline.Apply(ctx, delta); err != nil {
		return Observation{}, 0, false, errors.Wrap(err, "failed to apply action")
	}

	if err := e.settler.Settle(ctx, e.cfg.StepSettle); err != nil {
		return Observation{}, 0, false, errors.Wrap(err, "step did not settle")
	}

	obs := sample.observation()
	reward, done := e.evaluator.Evaluate(obs)
	return obs, reward, done, nil
}

// SampleAction draws a uniform random action in [-0.5, 0.5).
func (e *Env) SampleAction() [NumJoints]float64 {
	var action [NumJoints]float64
	for i := range action {
		action[i] = e.sampler.Rand()
	}
	return action
}

// State returns a copy of the commanded target.
func (e *Env) State() ActuationState {
	return e.pipeline.State()
}

// Mode returns the active control mode.
func (e *Env) Mode() ControlMode {
	return e.pipeline.Mode()
}

// Boundaries returns the calibrated joint ranges in degrees.
func (e *Env) Boundaries() [NumJoints]JointBoundary {
	return e.pipeline.Boundaries()
}

// Close releases the backend session.
func (e *Env) Close() error {
	return e.client.Close()
}

// selectMode lets a ModeSelector shaper pick the active target type.
func (e *Env) selectMode() {
	if selector, ok := e.shaper.(ModeSelector); ok {
		e.pipeline.SetMode(selector.Mode())
	}
}

// readSensors returns the latest buffered sensor values. Streams that have not produced data
// yet read as zero.
func (e *Env) readSensors(ctx context.Context) (sensorSample, error) {
	var sample sensorSample

	reading, err := e.client.ReadForceSensor(ctx, e.sensor)
	switch {
	case err == nil:
		sample.reading = reading
	case errors.Is(err, backend.ErrNotReady):
		e.logger.Debug("Force sensor stream not ready")
	default:
		return sensorSample{}, errors.Wrap(err, "failed to read force sensor")
	}

	position, err := e.client.ObjectPosition(ctx, e.sensor, backend.World)
	switch {
	case err == nil:
		sample.position = position
	case errors.Is(err, backend.ErrNotReady):
		e.logger.Debug("Position stream not ready")
	default:
		return sensorSample{}, errors.Wrap(err, "failed to read end effector position")
	}

	return sample, nil
}
