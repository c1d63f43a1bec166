package accel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal/i2c"
)

func TestBMA220_MotionDetection(t *testing.T) {
	target := i2c.NewTarget(BMA220DefaultAddress)
	b, err := NewBMA220(target)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.InitMotionDetection(ctx))
	assert.Equal(t, byte(0x03), target.Register(regRange))
	assert.Equal(t, byte(0b01110000), target.Register(regLatch))
	assert.Equal(t, byte(0b00111000), target.Register(regSlopeDet))
	assert.Equal(t, byte(0x45), target.Register(regSlopeSettings))
	assert.Equal(t, byte(0x06), target.Register(regWatchdog))
	assert.Equal(t, 5, target.Stops)

	motion, err := b.CheckMotionInterrupt(ctx)
	require.NoError(t, err)
	assert.False(t, motion)

	target.Set(regInterrupts, 0x81)
	motion, err = b.CheckMotionInterrupt(ctx)
	require.NoError(t, err)
	assert.True(t, motion)

	require.NoError(t, b.ResetMotionInterrupt(ctx))
	assert.Equal(t, byte(0b11110000), target.Register(regLatch))
}
