package armenv

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"armenv/backend"
)

// configureBackend prepares a fresh session: enables API control, resolves the force sensor
// and starts its data streams so later buffered reads have something to return. Failures of
// the oneshot writes are only logged; the backend does not confirm them.
func configureBackend(ctx context.Context, client backend.Client, cfg *Config, logger logging.Logger) (int, error) {
	logger.Debugf("Configuring backend (api mode, sensor %s)", cfg.ForceSensor)

	if err := client.SetIntegerSignal(ctx, SignalAPIMode, 1, false); err != nil {
		logger.Debugf("Failed to set %s: %v", SignalAPIMode, err)
	}

	handle, err := client.ObjectHandle(ctx, cfg.ForceSensor)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to find force sensor %s", cfg.ForceSensor)
	}

	// first reads start streaming and usually answer not ready
	if _, err := client.ReadForceSensor(ctx, handle); err != nil && !errors.Is(err, backend.ErrNotReady) {
		return 0, errors.Wrap(err, "failed to start force sensor stream")
	}
	if _, err := client.ObjectPosition(ctx, handle, backend.World); err != nil && !errors.Is(err, backend.ErrNotReady) {
		return 0, errors.Wrap(err, "failed to start position stream")
	}

	logger.Debugf("Backend configured (force sensor handle %d)", handle)
	return handle, nil
}
