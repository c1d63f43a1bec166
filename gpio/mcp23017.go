// Package gpio drives the MCP23017 16-bit I2C port expander. Expander
// outputs can serve as SPI chip-select lines when the host runs out of pins.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/i2c"
)

const DefaultMCP23017Address = 0x21

// Port selects one of the two 8-bit I/O sets.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

type register int

const (
	IODIR register = iota
	IPOL
	GPINTEN
	DEFVAL
	INTCON
	IOCON
	GPPU
	INTF
	INTCAP
	GPIO
	OLAT
)

// address returns the register address for IOCON.BANK = 0, where the A and B
// registers of each kind are paired.
func (r register) address(p Port) byte {
	return byte(r)*2 + byte(p)
}

// MCP23017 retries transfers the bus reports as busy, releasing the bus
// between attempts when a releaser is configured.
type MCP23017 struct {
	mx         sync.Mutex
	dev        *i2c.Device
	releaser   bushal.AddressableWriter
	retryLimit int
	olat       [2]byte
}

type Option func(*MCP23017)

// WithBusRelease retries busy transfers up to attempts times, releasing the
// bus through bridge in between.
func WithBusRelease(bridge bushal.AddressableWriter, attempts int) Option {
	return func(m *MCP23017) {
		m.releaser = bridge
		m.retryLimit = max(attempts, 1)
	}
}

func NewMCP23017(line bushal.I2CLine, address byte, opts ...Option) (*MCP23017, error) {
	dev, err := i2c.NewDevice(line, address)
	if err != nil {
		return nil, fmt.Errorf("mcp23017: %w", err)
	}
	m := &MCP23017{dev: dev, retryLimit: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *MCP23017) retry(ctx context.Context, what string, fn func() error) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, bushal.ErrBusBusy) || m.releaser == nil {
			return fmt.Errorf("could not %s: %w", what, err)
		}
		// try to release the bus
		_ = m.releaser.Release(ctx)
	}
	return fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}

func (m *MCP23017) write(ctx context.Context, r register, p Port, value byte) error {
	return m.retry(ctx, fmt.Sprintf("write register %#x of set %s", r.address(p), p), func() error {
		return m.dev.WriteRegister(ctx, r.address(p), value)
	})
}

func (m *MCP23017) read(ctx context.Context, r register, p Port) (byte, error) {
	var buf [1]byte
	err := m.retry(ctx, fmt.Sprintf("read register %#x of set %s", r.address(p), p), func() error {
		return m.dev.ReadRegister(ctx, r.address(p), buf[:])
	})
	return buf[0], err
}

// SetDirection writes IODIR: a set bit makes the pin an input.
func (m *MCP23017) SetDirection(ctx context.Context, p Port, inputs byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.write(ctx, IODIR, p, inputs)
}

// PullUp enables the 100k pull-up resistors of the set bits.
func (m *MCP23017) PullUp(ctx context.Context, p Port, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.write(ctx, GPPU, p, settings)
}

// Read returns the logic levels of the set.
func (m *MCP23017) Read(ctx context.Context, p Port) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.read(ctx, GPIO, p)
}

// ReadSettings reads IOCON.
func (m *MCP23017) ReadSettings(ctx context.Context) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.read(ctx, IOCON, PortA)
}

// Write sets the output latch of the set.
func (m *MCP23017) Write(ctx context.Context, p Port, value byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.write(ctx, OLAT, p, value); err != nil {
		return err
	}
	m.olat[p] = value
	return nil
}

// SetPin drives a single output, keeping the other latch bits.
func (m *MCP23017) SetPin(ctx context.Context, p Port, pin uint8, high bool) error {
	if pin > 7 {
		return fmt.Errorf("mcp23017: pin %d out of range", pin)
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	value := m.olat[p] &^ (1 << pin)
	if high {
		value |= 1 << pin
	}
	if err := m.write(ctx, OLAT, p, value); err != nil {
		return err
	}
	m.olat[p] = value
	return nil
}

// OutputPin is an expander pin usable as an active-low SPI chip-select.
type OutputPin struct {
	exp  *MCP23017
	port Port
	pin  uint8
}

// ChipSelect configures pin as an output driven high and returns it.
func (m *MCP23017) ChipSelect(ctx context.Context, p Port, pin uint8) (*OutputPin, error) {
	if err := m.SetPin(ctx, p, pin, true); err != nil {
		return nil, err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	dir, err := m.read(ctx, IODIR, p)
	if err != nil {
		return nil, err
	}
	if err := m.write(ctx, IODIR, p, dir&^(1<<pin)); err != nil {
		return nil, err
	}
	return &OutputPin{exp: m, port: p, pin: pin}, nil
}

func (o *OutputPin) Assert() error {
	return o.exp.SetPin(context.Background(), o.port, o.pin, false)
}

func (o *OutputPin) Release() error {
	return o.exp.SetPin(context.Background(), o.port, o.pin, true)
}
