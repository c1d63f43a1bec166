package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/bushal"
	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers"
)

// ErrSequence is returned when line primitives are called out of order.
var ErrSequence = errors.New("i2c: invalid primitive sequence")

// Txer performs a write followed by a repeated-start read in one call. It is
// satisfied by periph i2c.Bus, TinyGo drivers.I2C and HostBus.
type Txer interface {
	Tx(addr uint16, w, r []byte) error
}

var (
	_ Txer           = i2c.Bus(nil)
	_ Txer           = drivers.I2C(nil)
	_ bushal.I2CLine = &Line{}
	_ sync.Locker    = &Line{}
)

type transferFunc func(ctx context.Context, addr uint8, w, r []byte) error

// Line rebuilds start/address/data/stop primitives into whole transfers for
// controllers which only accept complete transactions. Writes are buffered
// until the following read (after a repeated start) or until Stop.
type Line struct {
	owner    sync.Mutex
	transfer transferFunc
	name     string

	started   bool
	addressed bool
	read      bool
	addr      uint8
	w         []byte
	done      bool
}

// NewTxLine adapts a Tx style controller.
func NewTxLine(bus Txer) *Line {
	return &Line{
		name: fmt.Sprintf("%T", bus),
		transfer: func(_ context.Context, addr uint8, w, r []byte) error {
			return bus.Tx(uint16(addr), w, r)
		},
	}
}

// NewAddressableLine adapts a bridge offering only addressed writes and reads.
func NewAddressableLine(bus bushal.I2CBus) *Line {
	return &Line{
		name: fmt.Sprintf("%T", bus),
		transfer: func(ctx context.Context, addr uint8, w, r []byte) error {
			if len(w) > 0 || len(r) == 0 {
				if err := bus.WriteToAddr(ctx, addr, w); err != nil {
					return err
				}
			}
			if len(r) == 0 {
				return nil
			}
			return bus.ReadFromAddr(ctx, addr, r)
		},
	}
}

// Lock reserves the line for one transaction.
func (l *Line) Lock() { l.owner.Lock() }

func (l *Line) Unlock() { l.owner.Unlock() }

func (l *Line) Start(ctx context.Context) error {
	if !l.started {
		l.reset()
		l.started = true
		return nil
	}
	// repeated start keeps buffered register pointer writes
	l.addressed = false
	return nil
}

func (l *Line) Write(ctx context.Context, buffer []byte) error {
	if !l.started {
		return fmt.Errorf("%w: write before start", ErrSequence)
	}
	if !l.addressed {
		if len(buffer) == 0 {
			return fmt.Errorf("%w: missing address byte", ErrSequence)
		}
		addr := buffer[0] >> 1
		if l.w != nil && addr != l.addr {
			return fmt.Errorf("%w: repeated start to %#x after writing %#x", ErrSequence, addr, l.addr)
		}
		l.addr = addr
		l.read = buffer[0]&0x01 == 1
		l.addressed = true
		buffer = buffer[1:]
	}
	if l.read {
		if len(buffer) > 0 {
			return fmt.Errorf("%w: data written in read phase", ErrSequence)
		}
		return nil
	}
	if l.w == nil {
		l.w = make([]byte, 0, len(buffer))
	}
	l.w = append(l.w, buffer...)
	return nil
}

func (l *Line) Read(ctx context.Context, buffer []byte) error {
	if !l.started || !l.addressed || !l.read {
		return fmt.Errorf("%w: read without read address", ErrSequence)
	}
	err := l.transfer(ctx, l.addr, l.w, buffer)
	l.w = nil
	l.done = true
	if err != nil {
		return fmt.Errorf("%w: %s read from %#x: %w", bushal.ErrBusFault, l.name, l.addr, err)
	}
	return nil
}

func (l *Line) Stop(ctx context.Context) error {
	if !l.started {
		return nil
	}
	defer l.reset()
	if !l.addressed || l.read || l.done {
		return nil
	}
	if err := l.transfer(ctx, l.addr, l.w, nil); err != nil {
		return fmt.Errorf("%w: %s write to %#x: %w", bushal.ErrBusFault, l.name, l.addr, err)
	}
	return nil
}

func (l *Line) reset() {
	l.started = false
	l.addressed = false
	l.read = false
	l.done = false
	l.addr = 0
	l.w = nil
}
