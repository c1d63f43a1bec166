// Package halctx carries per-invocation flags through driver calls.
package halctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexDevice
)

func IsVerbose(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexVerbose).(bool)
	return ok && val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// DeviceIndex returns the adapter selected when several identical USB
// bridges are attached.
func DeviceIndex(ctx context.Context) (int, bool) {
	val, ok := ctx.Value(ctxIndexDevice).(int)
	return val, ok
}

func SetDeviceIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, ctxIndexDevice, index)
}
