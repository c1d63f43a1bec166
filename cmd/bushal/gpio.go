package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/adapter"
	"github.com/mklimuk/bushal/cmd/bushal/console"
	"github.com/mklimuk/bushal/gpio"
	"github.com/mklimuk/bushal/i2c"
)

var gpioFlags = []cli.Flag{
	adapterFlag(adapterMCP2221, adapterMCP2221, adapterHost, adapterSim),
	&cli.UintFlag{Name: "address", Usage: "expander address", Value: gpio.DefaultMCP23017Address},
	&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "I/O set (A, B)", Value: "A"},
	verboseFlag,
}

var gpioCmd = cli.Command{
	Name:  "gpio",
	Usage: "MCP23017 port expander operations",
	Subcommands: cli.Commands{
		&gpioReadCmd,
		&gpioWriteCmd,
		&gpioStatusCmd,
	},
}

func parsePort(s string) (gpio.Port, error) {
	switch s {
	case "A", "a":
		return gpio.PortA, nil
	case "B", "b":
		return gpio.PortB, nil
	}
	return 0, fmt.Errorf("unknown port %q", s)
}

func withExpander(c *cli.Context, fn func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error) error {
	port, err := parsePort(c.String("port"))
	if err != nil {
		return console.Fail("invalid port", err)
	}
	address := uint8(c.Uint("address"))
	var exp *gpio.MCP23017
	var closer io.Closer = nopCloser{}
	switch c.String("adapter") {
	case adapterMCP2221:
		bridge := adapter.NewMCP2221()
		exp, err = gpio.NewMCP23017(i2c.NewAddressableLine(bridge), address, gpio.WithBusRelease(bridge, 3))
	case adapterSim:
		exp, err = gpio.NewMCP23017(i2c.NewTarget(address), address)
	default:
		cfg := loadConfig(c)
		cfg.I2C.Address = address
		var line bushal.I2CLine
		line, closer, err = openI2C(c, cfg)
		if err == nil {
			exp, err = gpio.NewMCP23017(line, address)
		}
	}
	if err != nil {
		return console.Fail("could not open expander", err)
	}
	defer closer.Close()
	return fn(commandContext(c), exp, port)
}

var gpioReadCmd = cli.Command{
	Name:  "read",
	Usage: "configure the set as inputs and read it",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "pull-up", Usage: "enable pull-ups on all pins"},
	}, gpioFlags...),
	Action: func(c *cli.Context) error {
		return withExpander(c, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			if err := exp.SetDirection(ctx, port, 0xFF); err != nil {
				return console.Fail("could not initialize gpio", err)
			}
			if c.Bool("pull-up") {
				if err := exp.PullUp(ctx, port, 0xFF); err != nil {
					return console.Fail("could not enable pull-ups", err)
				}
			}
			v, err := exp.Read(ctx, port)
			if err != nil {
				return console.Fail("could not read gpio", err)
			}
			console.Printf("I/O %s: %#08b\n", port, v)
			return nil
		})
	},
}

var gpioWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "configure the set as outputs and drive it",
	ArgsUsage: "<value>",
	Flags:     gpioFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		value, err := strconv.ParseUint(c.Args().First(), 0, 8)
		if err != nil {
			return console.Fail("invalid value", err)
		}
		return withExpander(c, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			if err := exp.Write(ctx, port, byte(value)); err != nil {
				return console.Fail("could not set latch", err)
			}
			if err := exp.SetDirection(ctx, port, 0x00); err != nil {
				return console.Fail("could not configure outputs", err)
			}
			return nil
		})
	},
}

var gpioStatusCmd = cli.Command{
	Name:  "status",
	Usage: "read the IOCON register",
	Flags: gpioFlags,
	Action: func(c *cli.Context) error {
		return withExpander(c, func(ctx context.Context, exp *gpio.MCP23017, port gpio.Port) error {
			data, err := exp.ReadSettings(ctx)
			if err != nil {
				return console.Fail("could not read settings", err)
			}
			console.Printf("IOCON content: %#X\n", data)
			return nil
		})
	},
}
