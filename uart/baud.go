package uart

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

var (
	ErrInvalidBaud  = errors.New("uart: baud rate not reachable from clock")
	ErrInvalidFrame = errors.New("uart: invalid frame format")
)

// fractional divisor field width
const fracBits = 6

// BaudConfig derives the divisor registers for a reference clock and baud rate.
type BaudConfig struct {
	Clock physic.Frequency
	Baud  int
}

// Divisor returns the integer and 6-bit fractional parts of Clock/(16*Baud),
// the fraction rounded to nearest.
func (b BaudConfig) Divisor() (ibrd, fbrd uint32, err error) {
	clock := int64(b.Clock / physic.Hertz)
	if b.Baud <= 0 || clock <= 0 {
		return 0, 0, fmt.Errorf("%w: clock %s, baud %d", ErrInvalidBaud, b.Clock, b.Baud)
	}
	// divisor scaled by 2^fracBits: clock*64/(16*baud) = clock*4/baud; one
	// extra bit for rounding
	scaled := (clock*8/int64(b.Baud) + 1) / 2
	ibrd = uint32(scaled >> fracBits)
	fbrd = uint32(scaled & (1<<fracBits - 1))
	if ibrd == 0 || ibrd > 0xFFFF {
		return 0, 0, fmt.Errorf("%w: integer divisor %d out of range (clock %s, baud %d)", ErrInvalidBaud, scaled>>fracBits, b.Clock, b.Baud)
	}
	return ibrd, fbrd, nil
}

// Actual returns the baud rate produced by the rounded divisor.
func (b BaudConfig) Actual() (float64, error) {
	ibrd, fbrd, err := b.Divisor()
	if err != nil {
		return 0, err
	}
	div := float64(ibrd) + float64(fbrd)/(1<<fracBits)
	return float64(b.Clock/physic.Hertz) / (16 * div), nil
}

type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "none"
	}
}

// ParseParity accepts none/odd/even or their N/O/E initials.
func ParseParity(s string) (Parity, error) {
	switch s {
	case "", "none", "N", "n":
		return ParityNone, nil
	case "odd", "O", "o":
		return ParityOdd, nil
	case "even", "E", "e":
		return ParityEven, nil
	}
	return 0, fmt.Errorf("%w: unknown parity %q", ErrInvalidFrame, s)
}

// Frame is the character format on the line.
type Frame struct {
	DataBits int
	Parity   Parity
	StopBits int
	FIFO     bool
}

// Frame8N1 is 8 data bits, no parity, one stop bit with FIFOs enabled.
var Frame8N1 = Frame{DataBits: 8, Parity: ParityNone, StopBits: 1, FIFO: true}

const (
	lcrhParityEnable = 1 << 1
	lcrhEvenParity   = 1 << 2
	lcrhTwoStop      = 1 << 3
	lcrhFIFOEnable   = 1 << 4
	lcrhWordShift    = 5
)

func (f Frame) Validate() error {
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("%w: %d data bits", ErrInvalidFrame, f.DataBits)
	}
	if f.StopBits != 1 && f.StopBits != 2 {
		return fmt.Errorf("%w: %d stop bits", ErrInvalidFrame, f.StopBits)
	}
	if f.Parity < ParityNone || f.Parity > ParityEven {
		return fmt.Errorf("%w: parity %d", ErrInvalidFrame, f.Parity)
	}
	return nil
}

// LineControl encodes the frame into the line control register.
func (f Frame) LineControl() (uint32, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	lcrh := uint32(f.DataBits-5) << lcrhWordShift
	switch f.Parity {
	case ParityOdd:
		lcrh |= lcrhParityEnable
	case ParityEven:
		lcrh |= lcrhParityEnable | lcrhEvenParity
	}
	if f.StopBits == 2 {
		lcrh |= lcrhTwoStop
	}
	if f.FIFO {
		lcrh |= lcrhFIFOEnable
	}
	return lcrh, nil
}

func (f Frame) String() string {
	parity := byte('?')
	if f.Parity >= ParityNone && f.Parity <= ParityEven {
		parity = "NOE"[f.Parity]
	}
	return fmt.Sprintf("%d%c%d", f.DataBits, parity, f.StopBits)
}
