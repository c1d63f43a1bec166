package i2c

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/bushal"
)

const (
	addrWrite = 0x00
	addrRead  = 0x01
)

// Device frames register transactions for a single 7-bit target address.
// Devices sharing a line that implements sync.Locker (Line, Target) hold the
// line's lock for a whole transaction; otherwise each device serialises only
// its own transactions.
type Device struct {
	mx   sync.Locker
	line bushal.I2CLine
	addr uint8
}

// NewDevice binds a target address to a line. Address 0 (general call) and
// addresses above 0x7F are rejected.
func NewDevice(line bushal.I2CLine, addr uint8) (*Device, error) {
	if addr == 0 || addr > 0x7F {
		return nil, fmt.Errorf("%w: %#x is not a valid 7-bit target", bushal.ErrInvalidAddress, addr)
	}
	mx, ok := line.(sync.Locker)
	if !ok {
		mx = new(sync.Mutex)
	}
	return &Device{mx: mx, line: line, addr: addr}, nil
}

func (d *Device) Address() uint8 {
	return d.addr
}

// Tx executes the transaction described by t. For reads buffer receives the
// data, for writes it holds the payload. The stop condition is issued exactly
// once, including when a primitive fails.
func (d *Device) Tx(ctx context.Context, t bushal.Transaction, buffer []byte) (err error) {
	if t.Device != d.addr {
		return fmt.Errorf("%w: transaction for %#x on device %#x", bushal.ErrInvalidAddress, t.Device, d.addr)
	}
	if err := t.Validate(buffer); err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	slog.Debug("i2c transaction", "tx", t.String())

	err = d.line.Start(ctx)
	defer func() {
		if stopErr := d.line.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stop: %w", stopErr))
		}
	}()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	w := d.addr << 1
	if t.Direction == bushal.DirWrite {
		frame := make([]byte, 0, len(buffer)+2)
		frame = append(frame, w|addrWrite, t.Register)
		frame = append(frame, buffer...)
		if err := d.line.Write(ctx, frame); err != nil {
			return fmt.Errorf("write register %#x: %w", t.Register, err)
		}
		return nil
	}
	if err := d.line.Write(ctx, []byte{w | addrWrite, t.Register}); err != nil {
		return fmt.Errorf("set register pointer %#x: %w", t.Register, err)
	}
	if err := d.line.Start(ctx); err != nil {
		return fmt.Errorf("repeated start: %w", err)
	}
	if err := d.line.Write(ctx, []byte{w | addrRead}); err != nil {
		return fmt.Errorf("address for read: %w", err)
	}
	if err := d.line.Read(ctx, buffer); err != nil {
		return fmt.Errorf("read register %#x: %w", t.Register, err)
	}
	return nil
}

// ReadRegister fills buffer starting at register reg.
func (d *Device) ReadRegister(ctx context.Context, reg uint8, buffer []byte) error {
	return d.Tx(ctx, bushal.ReadTx(d.addr, reg, len(buffer)), buffer)
}

// WriteRegister writes data starting at register reg.
func (d *Device) WriteRegister(ctx context.Context, reg uint8, data ...byte) error {
	return d.Tx(ctx, bushal.WriteTx(d.addr, reg, len(data)), data)
}
