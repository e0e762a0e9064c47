package armenv

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"armenv/backend"
)

// DefaultMotionSignal is the integer signal a backend raises once commanded motion is done.
const DefaultMotionSignal = "motionComplete"

const motionPollInterval = 10 * time.Millisecond

// Settler waits for dispatched motion to complete before sensors are read.
type Settler interface {
	// Settle blocks for at most about d, or until motion completion is known.
	Settle(ctx context.Context, d time.Duration) error
}

// FixedDelay sleeps for the full duration.
type FixedDelay struct{}

func (FixedDelay) Settle(ctx context.Context, d time.Duration) error {
	if !utils.SelectContextOrWait(ctx, d) {
		return ctx.Err()
	}
	return nil
}

// MotionAck polls a completion signal and consumes it by writing 0 back. Backends that do not
// publish the signal get the fixed delay instead.
type MotionAck struct {
	Client  backend.Client
	Signal  string
	Timeout time.Duration
	Logger  logging.Logger
}

func (m *MotionAck) Settle(ctx context.Context, d time.Duration) error {
	done, err := m.Client.GetIntegerSignal(ctx, m.Signal)
	if errors.Is(err, backend.ErrNotReady) {
		m.Logger.Debugf("%s not published, falling back to a %v delay", m.Signal, d)
		return FixedDelay{}.Settle(ctx, d)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", m.Signal)
	}

	if done == 0 {
		// checked between polls so no read runs under a deadline
		start := time.Now()
		op := func() error {
			v, err := m.Client.GetIntegerSignal(ctx, m.Signal)
			if err != nil && !errors.Is(err, backend.ErrNotReady) {
				return backoff.Permanent(err)
			}
			if v != 0 {
				return nil
			}
			if time.Since(start) >= m.Timeout {
				return backoff.Permanent(errors.Wrapf(ErrSettleTimeout, "%s still 0 after %v", m.Signal, m.Timeout))
			}
			return ErrSettleTimeout
		}
		if err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(motionPollInterval), ctx)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrSettleTimeout) {
				return err
			}
			return errors.Wrapf(err, "failed to read %s", m.Signal)
		}
	}

	return m.Client.SetIntegerSignal(ctx, m.Signal, 0, false)
}
