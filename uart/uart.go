// Package uart provides UART transports: a PL011-style register driven
// controller, a host serial port and a pass-through link with optional
// checksummed telemetry frames.
package uart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/poll"
)

// DefaultMaxWait bounds every FIFO flag wait, in flag register reads.
const DefaultMaxWait = 1 << 20

type Opts struct {
	Baud    BaudConfig
	Frame   Frame
	MaxWait int
}

type Opt func(*Opts)

func WithBaud(clock physic.Frequency, baud int) Opt {
	return func(o *Opts) {
		o.Baud = BaudConfig{Clock: clock, Baud: baud}
	}
}

func WithFrame(frame Frame) Opt {
	return func(o *Opts) {
		o.Frame = frame
	}
}

// WithMaxWait sets how many times the flag register is read while waiting
// for FIFO space or data before giving up with bushal.ErrTimeout.
func WithMaxWait(attempts int) Opt {
	return func(o *Opts) {
		o.MaxWait = attempts
	}
}

var (
	_ bushal.UARTPort = &UART{}
	_ bushal.Sink     = &UART{}
)

// UART drives a register file. Defaults: 16 MHz clock, 9600 baud, 8N1.
type UART struct {
	mx     sync.Mutex
	regs   RegisterFile
	config Opts
}

func New(regs RegisterFile, opts ...Opt) *UART {
	config := Opts{
		Baud:    BaudConfig{Clock: 16 * physic.MegaHertz, Baud: 9600},
		Frame:   Frame8N1,
		MaxWait: DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &UART{regs: regs, config: config}
}

// Init disables the UART, programs the divisor and line control registers
// and enables the transmitter and receiver.
func (u *UART) Init(ctx context.Context) error {
	ibrd, fbrd, err := u.config.Baud.Divisor()
	if err != nil {
		return err
	}
	lcrh, err := u.config.Frame.LineControl()
	if err != nil {
		return err
	}
	u.mx.Lock()
	defer u.mx.Unlock()
	u.regs.Store(RegCR, 0)
	u.regs.Store(RegIBRD, ibrd)
	u.regs.Store(RegFBRD, fbrd)
	u.regs.Store(RegLCRH, lcrh)
	u.regs.Store(RegCR, CtlEnable|CtlTXEnable|CtlRXEnable)
	slog.Debug("uart initialized", "baud", u.config.Baud.Baud, "ibrd", ibrd, "fbrd", fbrd, "frame", u.config.Frame.String())
	return nil
}

func (u *UART) flags(ctx context.Context) (uint32, error) {
	return u.regs.Load(RegFR), nil
}

func (u *UART) waitClear(ctx context.Context, mask uint32) error {
	return poll.Until(ctx, u.flags, func(fr uint32) bool { return fr&mask == 0 }, u.config.MaxWait)
}

// Write transmits buffer, waiting for transmit FIFO space before each byte.
func (u *UART) Write(ctx context.Context, buffer []byte) error {
	u.mx.Lock()
	defer u.mx.Unlock()
	for i, b := range buffer {
		if err := u.waitClear(ctx, FlagTXFF); err != nil {
			return fmt.Errorf("uart transmit byte %d: %w", i, err)
		}
		u.regs.Store(RegDR, uint32(b))
	}
	return nil
}

// Read fills buffer, waiting for receive data before each byte.
func (u *UART) Read(ctx context.Context, buffer []byte) error {
	u.mx.Lock()
	defer u.mx.Unlock()
	for i := range buffer {
		if err := u.waitClear(ctx, FlagRXFE); err != nil {
			return fmt.Errorf("uart receive byte %d: %w", i, err)
		}
		buffer[i] = byte(u.regs.Load(RegDR) & 0xFF)
	}
	return nil
}

// Pending reports whether received data is waiting, without blocking.
func (u *UART) Pending() bool {
	u.mx.Lock()
	defer u.mx.Unlock()
	return u.regs.Load(RegFR)&FlagRXFE == 0
}

func (u *UART) Print(ctx context.Context, text string) error {
	return u.Write(ctx, []byte(text))
}
