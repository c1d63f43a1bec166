package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/adapter"
	"github.com/mklimuk/bushal/accel"
	"github.com/mklimuk/bushal/halctx"
	"github.com/mklimuk/bushal/i2c"
	"github.com/mklimuk/bushal/memory/eeprom"
	"github.com/mklimuk/bushal/pkg/config"
	"github.com/mklimuk/bushal/spi"
	"github.com/mklimuk/bushal/uart"
)

const (
	adapterMCP2221 = "mcp2221"
	adapterHost    = "host"
	adapterNanoPi  = "nanopi"
	adapterMMIO    = "mmio"
	adapterSerial  = "serial"
	adapterSim     = "sim"
)

func adapterFlag(value string, choices ...string) cli.Flag {
	return &cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   fmt.Sprintf("bus adapter (%v)", choices),
		Value:   value,
	}
}

var verboseFlag = &cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "dump adapter traffic"}

func commandContext(c *cli.Context) context.Context {
	return halctx.SetVerbose(c.Context, c.Bool("verbose"))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openI2C returns a line to the configured bus. The closer must be called
// once the line is no longer used.
func openI2C(c *cli.Context, cfg config.Config) (bushal.I2CLine, io.Closer, error) {
	switch a := c.String("adapter"); a {
	case adapterMCP2221:
		bridge := adapter.NewMCP2221()
		if cfg.I2C.SpeedHz > 0 {
			if err := bridge.SetSpeed(commandContext(c), cfg.I2C.SpeedHz); err != nil {
				return nil, nil, fmt.Errorf("could not set bridge speed: %w", err)
			}
		}
		return i2c.NewAddressableLine(bridge), nopCloser{}, nil
	case adapterHost:
		bus, err := i2c.OpenHost(cfg.I2C.Bus, physic.Frequency(cfg.I2C.SpeedHz)*physic.Hertz)
		if err != nil {
			return nil, nil, err
		}
		return i2c.NewTxLine(bus), bus, nil
	case adapterSim:
		return simulatedMotionSensor(cfg.I2C.Address), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported i2c adapter %q", a)
	}
}

// simulatedMotionSensor answers like an MPU-6050 resting flat.
func simulatedMotionSensor(address uint8) *i2c.Target {
	t := i2c.NewTarget(address)
	t.Set(0x75, 0x68)
	t.Set(0x6B, 0x40)
	t.Set(0x3B,
		0x00, 0x10, 0xFF, 0xE0, 0x40, 0x00, // accelerometer, 1 g on Z
		0xF0, 0x00, // temperature
		0x00, 0x03, 0xFF, 0xFD, 0x00, 0x01, // gyroscope drift
	)
	return t
}

func openSPI(c *cli.Context, cfg config.Config) (bushal.SPIPort, io.Closer, error) {
	switch a := c.String("adapter"); a {
	case adapterHost:
		port, err := spi.OpenHost(cfg.SPI.Port, cfg.SPI.CS, spi.Config{
			Mode:      cfg.SPI.Mode,
			Frequency: physic.Frequency(cfg.SPI.SpeedHz) * physic.Hertz,
			LSBFirst:  cfg.SPI.LSBFirst,
		})
		if err != nil {
			return nil, nil, err
		}
		return port, port, nil
	case adapterNanoPi:
		board := nanopi.NewNeoAdaptor()
		if err := board.Connect(); err != nil {
			return nil, nil, fmt.Errorf("could not connect nanopi adaptor: %w", err)
		}
		port := spi.NewGobotPort(board, board, cfg.SPI.CS, cfg.SPI.Mode, cfg.SPI.SpeedHz)
		if err := port.Start(); err != nil {
			_ = board.Finalize()
			return nil, nil, err
		}
		return port, closerFunc(func() error {
			_ = port.Halt()
			return board.Finalize()
		}), nil
	case adapterSim:
		model, err := eeprom.ModelByName(cfg.EEPROM.Model)
		if err != nil {
			return nil, nil, err
		}
		sim := eeprom.NewSimulator(model)
		sim.BusyReads = 3
		return sim, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported spi adapter %q", a)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// uartPort is a UART transport that can also print to the console sink.
type uartPort interface {
	bushal.UARTPort
	bushal.Sink
}

func openUART(c *cli.Context, cfg config.Config) (uartPort, io.Closer, error) {
	frame, err := uartFrame(cfg.UART)
	if err != nil {
		return nil, nil, err
	}
	switch a := c.String("adapter"); a {
	case adapterSerial:
		port, err := uart.OpenSerial(cfg.UART.Device, cfg.UART.Baud, frame, cfg.UART.ReadTimeout)
		if err != nil {
			return nil, nil, err
		}
		return port, port, nil
	case adapterMMIO, adapterSim:
		var regs uart.RegisterFile
		opts := []uart.Opt{
			uart.WithBaud(physic.Frequency(cfg.UART.ClockHz)*physic.Hertz, cfg.UART.Baud),
			uart.WithFrame(frame),
		}
		if a == adapterSim {
			fake := uart.NewFakeRegisters()
			fake.Feed([]byte("ping\r\n")...)
			regs = fake
			opts = append(opts, uart.WithMaxWait(1000))
		} else {
			pl011, err := uart.MapPL011(cfg.UART.Base)
			if err != nil {
				return nil, nil, err
			}
			regs = pl011
		}
		u := uart.New(regs, opts...)
		if err := u.Init(commandContext(c)); err != nil {
			return nil, nil, err
		}
		return u, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported uart adapter %q", a)
	}
}

func uartFrame(cfg config.UART) (uart.Frame, error) {
	parity, err := uart.ParseParity(cfg.Parity)
	if err != nil {
		return uart.Frame{}, err
	}
	frame := uart.Frame{DataBits: cfg.DataBits, Parity: parity, StopBits: cfg.StopBits, FIFO: true}
	return frame, frame.Validate()
}

func openEEPROM(c *cli.Context, cfg config.Config) (*eeprom.EEPROM, io.Closer, error) {
	model, err := eeprom.ModelByName(cfg.EEPROM.Model)
	if err != nil {
		return nil, nil, err
	}
	port, closer, err := openSPI(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	e, err := eeprom.New(port,
		eeprom.WithModel(model),
		eeprom.WithPollAttempts(cfg.EEPROM.PollAttempts),
		eeprom.WithPollInterval(cfg.EEPROM.PollInterval),
	)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return e, closer, nil
}

func openMPU6050(c *cli.Context, cfg config.Config) (*accel.MPU6050, io.Closer, error) {
	line, closer, err := openI2C(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	m, err := accel.NewMPU6050(line, accel.WithMPU6050Address(cfg.I2C.Address))
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return m, closer, nil
}
