package adapter

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/bushal/halctx"
)

// HIDTransport opens the bridge for every exchange so that several tools can
// share it.
type HIDTransport struct {
	vendor       uint16
	product      uint16
	responseWait time.Duration
}

func NewHIDTransport(vendor, product uint16) *HIDTransport {
	return &HIDTransport{vendor: vendor, product: product, responseWait: 50 * time.Millisecond}
}

// Devices lists attached bridges in the order used by halctx.DeviceIndex.
func (t *HIDTransport) Devices() []hid.DeviceInfo {
	return hid.Enumerate(t.vendor, t.product)
}

func (t *HIDTransport) open(ctx context.Context) (*hid.Device, error) {
	devs := t.Devices()
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	id, selected := halctx.DeviceIndex(ctx)
	if !selected {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification: %d bridges attached", len(devs))
		}
		id = 0
	}
	if id < 0 || id >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", id)
	}
	dev, err := devs[id].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func (t *HIDTransport) Exchange(ctx context.Context, request, response []byte) error {
	dev, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("could not close HID device", "error", err)
		}
	}()
	verbose := halctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "report", "\n"+hex.Dump(request))
	}
	n, err := dev.Write(request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != ReportSize {
		return fmt.Errorf("short write: %d", n)
	}
	select {
	case <-time.After(t.responseWait):
	case <-ctx.Done():
		return ctx.Err()
	}
	n, err = dev.Read(response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != ReportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.Debug("read message from adapter", "report", "\n"+hex.Dump(response))
	}
	return nil
}
