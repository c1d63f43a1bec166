package spi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/bushal"
)

// Dummy is clocked out while reading.
const Dummy = 0xFF

var ErrAddressWidth = errors.New("spi: address width must be between 0 and 4 bytes")

// Command is the header of a chip-select framed transaction: an instruction
// byte followed by AddressBytes of Address, most significant byte first.
type Command struct {
	Instruction  byte
	Address      uint32
	AddressBytes int
}

func (c Command) header() ([]byte, error) {
	if c.AddressBytes < 0 || c.AddressBytes > 4 {
		return nil, fmt.Errorf("%w: got %d", ErrAddressWidth, c.AddressBytes)
	}
	return append([]byte{c.Instruction}, bushal.SplitAddress(c.Address, c.AddressBytes)...), nil
}

// Framer issues whole transactions on a port. Chip-select is asserted and
// released exactly once per call regardless of payload length or failure.
type Framer struct {
	mx   sync.Mutex
	port bushal.SPIPort
}

func NewFramer(port bushal.SPIPort) *Framer {
	return &Framer{port: port}
}

// Write sends the command header followed by data. Instruction-only commands
// (e.g. write-enable) pass no data.
func (f *Framer) Write(ctx context.Context, cmd Command, data []byte) error {
	header, err := cmd.header()
	if err != nil {
		return err
	}
	return f.frame(ctx, func() error {
		if err := f.send(ctx, header); err != nil {
			return err
		}
		return f.send(ctx, data)
	})
}

// Read sends the command header and then clocks len(buffer) dummy bytes,
// storing what the device returns.
func (f *Framer) Read(ctx context.Context, cmd Command, buffer []byte) error {
	if len(buffer) == 0 {
		return fmt.Errorf("%w: read of 0 bytes for instruction %#x", bushal.ErrInvalidLength, cmd.Instruction)
	}
	header, err := cmd.header()
	if err != nil {
		return err
	}
	return f.frame(ctx, func() error {
		if err := f.send(ctx, header); err != nil {
			return err
		}
		w := []byte{Dummy}
		for i := range buffer {
			if err := f.port.Transfer(ctx, w, buffer[i:i+1]); err != nil {
				return fmt.Errorf("read byte %d: %w", i, err)
			}
		}
		return nil
	})
}

func (f *Framer) send(ctx context.Context, data []byte) error {
	for i := range data {
		if err := f.port.Transfer(ctx, data[i:i+1], nil); err != nil {
			return fmt.Errorf("transfer byte %d: %w", i, err)
		}
	}
	return nil
}

func (f *Framer) frame(ctx context.Context, body func() error) (err error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if err := f.port.Select(ctx); err != nil {
		// the line may be half driven; release it anyway
		return errors.Join(fmt.Errorf("chip select: %w", err), f.port.Deselect(ctx))
	}
	defer func() {
		if releaseErr := f.port.Deselect(ctx); releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("chip deselect: %w", releaseErr))
		}
	}()
	err = body()
	if err != nil {
		slog.Debug("spi transaction failed", "error", err)
	}
	return err
}
