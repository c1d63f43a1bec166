package spi

import (
	"context"
	"fmt"

	"github.com/mklimuk/bushal"
	"gobot.io/x/gobot/v2/drivers/spi"
)

// DigitalWriter is implemented by gobot platform adaptors.
type DigitalWriter interface {
	DigitalWrite(pin string, val byte) error
}

var _ bushal.SPIPort = &GobotPort{}

// GobotPort uses a gobot SPI driver for data and a separate adaptor GPIO for
// chip-select. The hardware chip-select of the gobot bus must be left
// unconnected since gobot toggles it on every transfer.
//
// Reads clock out zeros instead of the bytes in w.
type GobotPort struct {
	driver *spi.Driver
	pins   DigitalWriter
	csPin  string
}

// NewGobotPort returns a port bound to a gobot SPI adaptor. Mode and speed
// follow the device datasheet; a zero speed keeps the gobot default.
func NewGobotPort(adaptor spi.Connector, pins DigitalWriter, csPin string, mode int, speed int64, opts ...func(spi.Config)) *GobotPort {
	d := spi.NewDriver(adaptor, "bushal-spi", opts...)
	d.SetMode(mode)
	if speed > 0 {
		d.SetSpeed(speed)
	}
	return &GobotPort{driver: d, pins: pins, csPin: csPin}
}

// Start establishes the SPI bus and releases chip-select.
func (p *GobotPort) Start() error {
	if err := p.driver.Start(); err != nil {
		return fmt.Errorf("could not start gobot spi driver: %w", err)
	}
	return p.pins.DigitalWrite(p.csPin, 1)
}

func (p *GobotPort) Halt() error { return p.driver.Halt() }

func (p *GobotPort) Select(ctx context.Context) error {
	if err := p.pins.DigitalWrite(p.csPin, 0); err != nil {
		return fmt.Errorf("%w: assert chip select %s: %w", bushal.ErrBusFault, p.csPin, err)
	}
	return nil
}

func (p *GobotPort) Deselect(ctx context.Context) error {
	if err := p.pins.DigitalWrite(p.csPin, 1); err != nil {
		return fmt.Errorf("%w: release chip select %s: %w", bushal.ErrBusFault, p.csPin, err)
	}
	return nil
}

func (p *GobotPort) Transfer(ctx context.Context, w, r []byte) error {
	if p == nil || p.driver == nil {
		return fmt.Errorf("spi driver not initialized")
	}
	type spiOps interface {
		ReadCommandData(command []byte, data []byte) error
		WriteBytes(data []byte) error
	}
	ops, ok := p.driver.Connection().(spiOps)
	if !ok {
		return fmt.Errorf("spi connection does not support required operations")
	}
	var err error
	switch {
	case r == nil:
		err = ops.WriteBytes(w)
	case len(r) != len(w):
		return fmt.Errorf("%w: tx/rx length mismatch: %d != %d", bushal.ErrInvalidLength, len(w), len(r))
	default:
		err = ops.ReadCommandData(nil, r)
	}
	if err != nil {
		return fmt.Errorf("%w: gobot transfer: %w", bushal.ErrBusFault, err)
	}
	return nil
}
