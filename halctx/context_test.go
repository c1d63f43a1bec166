package halctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.True(t, IsVerbose(SetVerbose(ctx, true)))
	assert.False(t, IsVerbose(SetVerbose(SetVerbose(ctx, true), false)))
}

func TestDeviceIndex(t *testing.T) {
	_, ok := DeviceIndex(context.Background())
	assert.False(t, ok)
	idx, ok := DeviceIndex(SetDeviceIndex(context.Background(), 2))
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}
