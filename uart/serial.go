package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/mklimuk/bushal"
)

var _ bushal.UARTPort = &Serial{}

// Serial is a UART exposed by the host OS (e.g. /dev/ttyUSB0).
type Serial struct {
	port io.ReadWriteCloser
}

// OpenSerial opens device with the given baud rate and frame. Reads give up
// with bushal.ErrTimeout when nothing arrives within readTimeout.
func OpenSerial(device string, baud int, frame Frame, readTimeout time.Duration) (*Serial, error) {
	config, err := serialConfig(device, baud, frame, readTimeout)
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", device, err)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already opened stream.
func NewSerial(port io.ReadWriteCloser) *Serial {
	return &Serial{port: port}
}

func serialConfig(device string, baud int, frame Frame, readTimeout time.Duration) (*serial.Config, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("%w: baud %d", ErrInvalidBaud, baud)
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	config := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
		Size:        byte(frame.DataBits),
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	switch frame.Parity {
	case ParityOdd:
		config.Parity = serial.ParityOdd
	case ParityEven:
		config.Parity = serial.ParityEven
	}
	if frame.StopBits == 2 {
		config.StopBits = serial.Stop2
	}
	return config, nil
}

func (s *Serial) Write(ctx context.Context, buffer []byte) error {
	for len(buffer) > 0 {
		n, err := s.port.Write(buffer)
		if err != nil {
			return fmt.Errorf("%w: serial write: %w", bushal.ErrBusFault, err)
		}
		buffer = buffer[n:]
	}
	return nil
}

func (s *Serial) Read(ctx context.Context, buffer []byte) error {
	read := 0
	for read < len(buffer) {
		n, err := s.port.Read(buffer[read:])
		read += n
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			return fmt.Errorf("%w: serial read: %w", bushal.ErrBusFault, err)
		case n == 0:
			return fmt.Errorf("%w: serial read got %d of %d bytes", bushal.ErrTimeout, read, len(buffer))
		}
	}
	return nil
}

func (s *Serial) Print(ctx context.Context, text string) error {
	return s.Write(ctx, []byte(text))
}

func (s *Serial) Close() error {
	return s.port.Close()
}
