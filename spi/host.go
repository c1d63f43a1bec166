package spi

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Config sets the bus timing of a host SPI port.
type Config struct {
	// Mode is the clock polarity/phase (0-3).
	Mode      int
	Frequency physic.Frequency
	LSBFirst  bool
}

// DefaultConfig is SPI mode 0, MSB first, 1 MHz.
var DefaultConfig = Config{Mode: 0, Frequency: physic.MegaHertz}

func (c Config) mode() (spi.Mode, error) {
	if c.Mode < 0 || c.Mode > 3 {
		return 0, fmt.Errorf("invalid spi mode %d", c.Mode)
	}
	// chip-select is driven on a GPIO so transactions can span transfers
	m := spi.Mode(c.Mode) | spi.NoCS
	if c.LSBFirst {
		m |= spi.LSBFirst
	}
	return m, nil
}

// HostPort is a Port backed by a periph SPI port and a GPIO chip-select.
type HostPort struct {
	*Port
	closer spi.PortCloser
}

// OpenHost opens the named SPI port (e.g. "SPI0.0") and GPIO pin (e.g. "GPIO8")
// used as chip-select. The pin is driven high before returning.
func OpenHost(portName, csPin string, config Config) (*HostPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	mode, err := config.mode()
	if err != nil {
		return nil, err
	}
	freq := config.Frequency
	if freq == 0 {
		freq = DefaultConfig.Frequency
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("could not open spi port %q: %w", portName, err)
	}
	conn, err := port.Connect(freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not connect to spi port %q: %w", portName, err)
	}
	pin := gpioreg.ByName(csPin)
	if pin == nil {
		_ = port.Close()
		return nil, fmt.Errorf("chip select pin %q not found", csPin)
	}
	if err := pin.Out(gpio.High); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not release chip select %q: %w", csPin, err)
	}
	slog.Debug("spi port opened", "port", portName, "cs", csPin, "mode", config.Mode, "freq", freq.String(), "lsb", config.LSBFirst)
	return &HostPort{Port: NewPort(conn, GPIOSelect{Pin: pin}), closer: port}, nil
}

func (p *HostPort) Close() error {
	return p.closer.Close()
}
