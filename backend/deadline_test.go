package backend

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.viam.com/rdk/logging"
)

// timeoutPort is a serial-like stream that only supports read timeouts.
type timeoutPort struct {
	io.Reader
	io.Writer
	timeouts []time.Duration
}

func (p *timeoutPort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *timeoutPort) Close() error { return nil }

func TestSerialReadTimeout(t *testing.T) {
	port := &timeoutPort{Reader: io.MultiReader(), Writer: io.Discard}
	client := NewRemoteClient(port, logging.NewTestLogger(t))

	require.NoError(t, client.setDeadline(context.Background()))

	future, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, client.setDeadline(future))

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.ErrorIs(t, client.setDeadline(expired), context.DeadlineExceeded)

	require.Len(t, port.timeouts, 2)
	assert.Equal(t, serial.NoTimeout, port.timeouts[0])
	assert.Greater(t, port.timeouts[1], time.Duration(0))
}
