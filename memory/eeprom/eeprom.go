// Package eeprom drives Microchip 25xx serial EEPROMs (25LC256, 25AA1024)
// through a chip-select framed SPI port.
//
// Every operation is one or more whole transactions: chip-select is asserted
// for the instruction, the address and the data and released afterwards. A
// write latches the write-enable bit first and then polls the STATUS register
// until the internal write cycle finishes:
//
//	e, _ := eeprom.New(port)
//	if err := e.WriteByteAt(ctx, 0x0010, 0xAB); err != nil { ... }
//	v, _ := e.ReadByteAt(ctx, 0x0010)
//
// Datasheets: 25AA256/25LC256 (DS21822), 25AA1024 (DS21836), instruction set
// in table 2-1 and 3-1 respectively.
package eeprom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/poll"
	"github.com/mklimuk/bushal/spi"
)

const (
	cmdWRSR  = 0x01
	cmdWrite = 0x02
	cmdRead  = 0x03
	cmdWRDI  = 0x04
	cmdRDSR  = 0x05
	cmdWREN  = 0x06

	// StatusWIP is set while an internal write cycle runs.
	StatusWIP = 0x01
	// StatusWEL is the write enable latch.
	StatusWEL = 0x02
)

var ErrOutOfRange = errors.New("eeprom: access beyond device capacity")

// Model describes the geometry of a part.
type Model struct {
	Name         string
	Capacity     uint32
	PageSize     uint32
	AddressBytes int
}

var (
	Model25LC256  = Model{Name: "25LC256", Capacity: 32768, PageSize: 64, AddressBytes: 2}
	Model25AA1024 = Model{Name: "25AA1024", Capacity: 131072, PageSize: 256, AddressBytes: 3}
)

// ModelByName resolves a part number as used in configuration files.
func ModelByName(name string) (Model, error) {
	switch name {
	case "", Model25LC256.Name, "25AA256":
		return Model25LC256, nil
	case Model25AA1024.Name:
		return Model25AA1024, nil
	}
	return Model{}, fmt.Errorf("eeprom: unknown model %q", name)
}

type Config struct {
	Model        Model
	PollAttempts int
	PollInterval time.Duration
}

// DefaultConfig covers the 5 ms maximum write cycle of both parts.
var DefaultConfig = Config{
	Model:        Model25LC256,
	PollAttempts: 100,
	PollInterval: 100 * time.Microsecond,
}

type Option func(*Config)

func WithModel(model Model) Option {
	return func(c *Config) {
		c.Model = model
	}
}

func WithPollAttempts(attempts int) Option {
	return func(c *Config) {
		c.PollAttempts = attempts
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = interval
	}
}

type EEPROM struct {
	mx     sync.Mutex
	framer *spi.Framer
	config Config
}

func New(port bushal.SPIPort, opts ...Option) (*EEPROM, error) {
	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}
	if config.PollAttempts < 1 {
		return nil, fmt.Errorf("eeprom: %w: got %d", poll.ErrInvalidAttempts, config.PollAttempts)
	}
	if config.Model.Capacity == 0 || config.Model.PageSize == 0 {
		return nil, fmt.Errorf("eeprom: model %q has no geometry", config.Model.Name)
	}
	return &EEPROM{framer: spi.NewFramer(port), config: config}, nil
}

func (e *EEPROM) Model() Model {
	return e.config.Model
}

// WriteByteAt stores a single byte. On ErrTimeout the write cycle may still be
// running and the cell content is undefined.
func (e *EEPROM) WriteByteAt(ctx context.Context, address uint32, value byte) error {
	return e.Write(ctx, address, []byte{value})
}

// ReadByteAt returns the byte at address.
func (e *EEPROM) ReadByteAt(ctx context.Context, address uint32) (byte, error) {
	var buf [1]byte
	if err := e.ReadInto(ctx, address, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Read returns length bytes starting at address.
func (e *EEPROM) Read(ctx context.Context, address uint32, length int) ([]byte, error) {
	buf := make([]byte, length)
	if err := e.ReadInto(ctx, address, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto fills buffer starting at address in a single sequential read.
func (e *EEPROM) ReadInto(ctx context.Context, address uint32, buffer []byte) error {
	if err := e.checkRange(address, len(buffer)); err != nil {
		return err
	}
	e.mx.Lock()
	defer e.mx.Unlock()
	err := e.framer.Read(ctx, e.command(cmdRead, address), buffer)
	if err != nil {
		return fmt.Errorf("eeprom: read %d bytes at %#04x: %w", len(buffer), address, err)
	}
	return nil
}

// Write stores data starting at address. Data is split on page boundaries,
// each page is written and polled to completion before the next one starts.
func (e *EEPROM) Write(ctx context.Context, address uint32, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("eeprom: %w: empty write", bushal.ErrInvalidLength)
	}
	if err := e.checkRange(address, len(data)); err != nil {
		return err
	}
	e.mx.Lock()
	defer e.mx.Unlock()
	page := e.config.Model.PageSize
	for len(data) > 0 {
		space := page - address%page
		chunk := data
		if uint32(len(chunk)) > space {
			chunk = chunk[:space]
		}
		if err := e.writePage(ctx, address, chunk); err != nil {
			return err
		}
		data = data[len(chunk):]
		address += uint32(len(chunk))
	}
	return nil
}

// ReadStatus returns the STATUS register.
func (e *EEPROM) ReadStatus(ctx context.Context) (byte, error) {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.readStatus(ctx)
}

// WriteDisable clears the write enable latch.
func (e *EEPROM) WriteDisable(ctx context.Context) error {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.framer.Write(ctx, spi.Command{Instruction: cmdWRDI}, nil)
}

// WriteStatus sets the block protection bits (BP1, BP0) and WPEN.
func (e *EEPROM) WriteStatus(ctx context.Context, status byte) error {
	e.mx.Lock()
	defer e.mx.Unlock()
	if err := e.framer.Write(ctx, spi.Command{Instruction: cmdWREN}, nil); err != nil {
		return fmt.Errorf("eeprom: write enable: %w", err)
	}
	if err := e.framer.Write(ctx, spi.Command{Instruction: cmdWRSR}, []byte{status}); err != nil {
		return fmt.Errorf("eeprom: write status: %w", err)
	}
	return e.waitReady(ctx)
}

func (e *EEPROM) writePage(ctx context.Context, address uint32, chunk []byte) error {
	if err := e.framer.Write(ctx, spi.Command{Instruction: cmdWREN}, nil); err != nil {
		return fmt.Errorf("eeprom: write enable: %w", err)
	}
	if err := e.framer.Write(ctx, e.command(cmdWrite, address), chunk); err != nil {
		return fmt.Errorf("eeprom: write %d bytes at %#04x: %w", len(chunk), address, err)
	}
	slog.Debug("eeprom page written", "address", address, "length", len(chunk))
	if err := e.waitReady(ctx); err != nil {
		return fmt.Errorf("eeprom: write at %#04x: %w", address, err)
	}
	return nil
}

func (e *EEPROM) waitReady(ctx context.Context) error {
	return poll.Until(ctx, e.readStatus, func(status byte) bool {
		return status&StatusWIP == 0
	}, e.config.PollAttempts, poll.WithInterval(e.config.PollInterval))
}

func (e *EEPROM) readStatus(ctx context.Context) (byte, error) {
	var status [1]byte
	if err := e.framer.Read(ctx, spi.Command{Instruction: cmdRDSR}, status[:]); err != nil {
		return 0, fmt.Errorf("eeprom: read status: %w", err)
	}
	return status[0], nil
}

func (e *EEPROM) command(instruction byte, address uint32) spi.Command {
	return spi.Command{Instruction: instruction, Address: address, AddressBytes: e.config.Model.AddressBytes}
}

func (e *EEPROM) checkRange(address uint32, length int) error {
	if length <= 0 {
		return fmt.Errorf("eeprom: %w: got %d bytes", bushal.ErrInvalidLength, length)
	}
	if uint64(address)+uint64(length) > uint64(e.config.Model.Capacity) {
		return fmt.Errorf("%w: %d bytes at %#x, capacity %d", ErrOutOfRange, length, address, e.config.Model.Capacity)
	}
	return nil
}
