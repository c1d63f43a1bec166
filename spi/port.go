package spi

import (
	"context"
	"fmt"

	"github.com/mklimuk/bushal"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// Conn clocks bytes full duplex without touching chip-select.
type Conn interface {
	Tx(w, r []byte) error
}

var (
	_ Conn           = spi.Conn(nil)
	_ Conn           = drivers.SPI(nil)
	_ bushal.SPIPort = &Port{}
)

// ChipSelect drives the active-low chip-select line of one device.
type ChipSelect interface {
	Assert() error
	Release() error
}

// GPIOSelect drives chip-select with a periph GPIO output.
type GPIOSelect struct {
	Pin gpio.PinOut
}

func (s GPIOSelect) Assert() error  { return s.Pin.Out(gpio.Low) }
func (s GPIOSelect) Release() error { return s.Pin.Out(gpio.High) }

// Pin matches TinyGo machine.Pin outputs.
type Pin interface {
	High()
	Low()
}

// PinSelect drives chip-select with a TinyGo pin.
type PinSelect struct {
	Pin Pin
}

func (s PinSelect) Assert() error  { s.Pin.Low(); return nil }
func (s PinSelect) Release() error { s.Pin.High(); return nil }

// Port combines a data connection with a separately driven chip-select so
// one transaction may span many transfers.
type Port struct {
	conn Conn
	cs   ChipSelect
	name string
}

func NewPort(conn Conn, cs ChipSelect) *Port {
	return &Port{conn: conn, cs: cs, name: fmt.Sprintf("%T", conn)}
}

func (p *Port) Select(ctx context.Context) error {
	if err := p.cs.Assert(); err != nil {
		return fmt.Errorf("%w: %s assert chip select: %w", bushal.ErrBusFault, p.name, err)
	}
	return nil
}

func (p *Port) Transfer(ctx context.Context, w, r []byte) error {
	if r != nil && len(r) != len(w) {
		return fmt.Errorf("%w: tx/rx length mismatch: %d != %d", bushal.ErrInvalidLength, len(w), len(r))
	}
	if err := p.conn.Tx(w, r); err != nil {
		return fmt.Errorf("%w: %s transfer: %w", bushal.ErrBusFault, p.name, err)
	}
	return nil
}

func (p *Port) Deselect(ctx context.Context) error {
	if err := p.cs.Release(); err != nil {
		return fmt.Errorf("%w: %s release chip select: %w", bushal.ErrBusFault, p.name, err)
	}
	return nil
}
