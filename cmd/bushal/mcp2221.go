package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/bushal/adapter"
	"github.com/mklimuk/bushal/cmd/bushal/console"
	"github.com/mklimuk/bushal/halctx"
)

var mcp2221Flags = []cli.Flag{
	verboseFlag,
	&cli.IntFlag{Name: "device", Aliases: []string{"d"}, Usage: "bridge index when several are attached (see usb detect)", Value: -1},
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB to I2C bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

func bridgeContext(c *cli.Context) *cli.Context {
	ctx := commandContext(c)
	if id := c.Int("device"); id >= 0 {
		ctx = halctx.SetDeviceIndex(ctx, id)
	}
	c.Context = ctx
	return c
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(v); err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: mcp2221Flags,
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221()
		status, err := a.Status(bridgeContext(c).Context)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: mcp2221Flags,
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221()
		status, err := a.ReleaseBus(bridgeContext(c).Context)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:  "speed",
	Usage: "set the I2C clock",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "hz", Value: 100_000},
	}, mcp2221Flags...),
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221()
		if err := a.SetSpeed(bridgeContext(c).Context, c.Int("hz")); err != nil {
			return console.Fail("could not set speed", err)
		}
		console.PInfof(console.PictoChip, "I2C clock set to %d Hz", c.Int("hz"))
		return nil
	},
}
