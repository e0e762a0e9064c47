package fake

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armenv/backend"
)

func TestBackendSignals(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, err := b.GetFloatSignal(ctx, "Joint1")
	assert.ErrorIs(t, err, backend.ErrNotReady)

	require.NoError(t, b.SetFloatSignal(ctx, "Joint1", 12, false))
	v, err := b.GetFloatSignal(ctx, "Joint1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	b.DelayReady("Joint1", 2)
	_, err = b.GetFloatSignal(ctx, "Joint1")
	assert.ErrorIs(t, err, backend.ErrNotReady)
	_, err = b.WaitFloatSignal(ctx, "Joint1")
	assert.ErrorIs(t, err, backend.ErrNotReady)
	v, err = b.WaitFloatSignal(ctx, "Joint1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	b.Unpublish("Joint1")
	_, err = b.GetFloatSignal(ctx, "Joint1")
	assert.ErrorIs(t, err, backend.ErrNotReady)

	assert.Equal(t, []SetCall{{Name: "Joint1", Value: 12}}, b.Sets())
	b.ResetSets()
	assert.Empty(t, b.Sets())
}

func TestBackendObjects(t *testing.T) {
	ctx := context.Background()
	b := New()

	sensor, err := b.ObjectHandle(ctx, "Force_sensor")
	require.NoError(t, err)
	tip, err := b.ObjectHandle(ctx, "Tip")
	require.NoError(t, err)
	assert.NotEqual(t, sensor, tip)
	again, _ := b.ObjectHandle(ctx, "Force_sensor")
	assert.Equal(t, sensor, again)

	b.SetPosition(tip, r3.Vector{Z: 1})
	pos, err := b.ObjectPosition(ctx, tip, backend.World)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{Z: 1}, pos)

	b.SetPositionFunc(func(signals map[string]float64) r3.Vector {
		return r3.Vector{X: signals["Interval_1_1"]}
	})
	pos, err = b.ObjectPosition(ctx, tip, backend.World)
	require.NoError(t, err)
	assert.Equal(t, DefaultIntervals[0][0], pos.X)

	require.NoError(t, b.Close())
	assert.True(t, b.Closed())
	_, err = b.ReadForceSensor(ctx, sensor)
	assert.ErrorIs(t, err, backend.ErrClosed)
}
