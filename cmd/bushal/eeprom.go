package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/cmd/bushal/console"
	"github.com/mklimuk/bushal/memory/eeprom"
)

var eepromFlags = []cli.Flag{
	adapterFlag(adapterHost, adapterHost, adapterNanoPi, adapterSim),
	&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "memory part (25LC256, 25AA1024)"},
	verboseFlag,
}

var eepromCmd = cli.Command{
	Name:    "eeprom",
	Aliases: []string{"mem"},
	Usage:   "SPI EEPROM operations",
	Subcommands: cli.Commands{
		&eepromReadCmd,
		&eepromWriteCmd,
		&eepromStatusCmd,
		&eepromTestCmd,
	},
}

func withEEPROM(c *cli.Context, fn func(ctx context.Context, e *eeprom.EEPROM) error) error {
	cfg := loadConfig(c)
	if model := c.String("model"); model != "" {
		cfg.EEPROM.Model = model
	}
	e, closer, err := openEEPROM(c, cfg)
	if err != nil {
		return console.Fail("could not open memory", err)
	}
	defer closer.Close()
	return fn(commandContext(c), e)
}

var eepromReadCmd = cli.Command{
	Name:  "read",
	Usage: "dump memory contents",
	Flags: append([]cli.Flag{
		&cli.UintFlag{Name: "address", Usage: "memory address to read", Required: true},
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 16},
	}, eepromFlags...),
	Action: func(c *cli.Context) error {
		return withEEPROM(c, func(ctx context.Context, e *eeprom.EEPROM) error {
			data, err := e.Read(ctx, uint32(c.Uint("address")), c.Int("length"))
			if err != nil {
				return console.Fail("read failed", err)
			}
			console.Print(hex.Dump(data))
			return nil
		})
	},
}

var eepromWriteCmd = cli.Command{
	Name:  "write",
	Usage: "write hex bytes to memory",
	Flags: append([]cli.Flag{
		&cli.UintFlag{Name: "address", Usage: "memory address to write", Required: true},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')", Required: true},
	}, eepromFlags...),
	Action: func(c *cli.Context) error {
		data, err := hexStringToBytes(c.String("data"))
		if err != nil {
			return console.Fail("invalid data hex string", err)
		}
		return withEEPROM(c, func(ctx context.Context, e *eeprom.EEPROM) error {
			address := uint32(c.Uint("address"))
			if err := e.Write(ctx, address, data); err != nil {
				return console.Fail("write failed", err)
			}
			console.PInfof(console.PictoMemory, "wrote %d bytes to %s 0x%05X: % X", len(data), e.Model().Name, address, data)
			return nil
		})
	},
}

var eepromStatusCmd = cli.Command{
	Name:  "status",
	Usage: "read the STATUS register",
	Flags: eepromFlags,
	Action: func(c *cli.Context) error {
		return withEEPROM(c, func(ctx context.Context, e *eeprom.EEPROM) error {
			status, err := e.ReadStatus(ctx)
			if err != nil {
				return console.Fail("status read failed", err)
			}
			console.Printf("status: %#08b write in progress: %s write enabled: %s\n", status,
				console.Bool(status&eeprom.StatusWIP != 0), console.Bool(status&eeprom.StatusWEL != 0))
			return nil
		})
	},
}

var eepromTestCmd = cli.Command{
	Name:  "test",
	Usage: "write a test pattern and read it back",
	Flags: append([]cli.Flag{
		&cli.UintFlag{Name: "address", Value: selfTestAddress},
		&cli.UintFlag{Name: "value", Value: selfTestValue},
	}, eepromFlags...),
	Action: func(c *cli.Context) error {
		return withEEPROM(c, func(ctx context.Context, e *eeprom.EEPROM) error {
			ok, err := selfTest(ctx, e, console.Sink{}, uint32(c.Uint("address")), byte(c.Uint("value")))
			if err != nil {
				return console.Fail("self test failed", err)
			}
			if !ok {
				return console.Exit(2, "read back mismatch")
			}
			return nil
		})
	},
}

const (
	selfTestAddress = 0x0010
	selfTestValue   = 0xAB
)

type byteMemory interface {
	WriteByteAt(ctx context.Context, address uint32, value byte) error
	ReadByteAt(ctx context.Context, address uint32) (byte, error)
}

// selfTest writes value at address, reads it back and reports the outcome to
// the sink.
func selfTest(ctx context.Context, mem byteMemory, sink bushal.Sink, address uint32, value byte) (bool, error) {
	if err := mem.WriteByteAt(ctx, address, value); err != nil {
		return false, errors.Join(err, sink.Print(ctx, "EEPROM Test: FAILED (write)\r\n"))
	}
	got, err := mem.ReadByteAt(ctx, address)
	if err != nil {
		return false, errors.Join(err, sink.Print(ctx, "EEPROM Test: FAILED (read)\r\n"))
	}
	if got != value {
		return false, sink.Print(ctx, fmt.Sprintf("EEPROM Test: FAILED (wrote 0x%02X, read 0x%02X)\r\n", value, got))
	}
	return true, sink.Print(ctx, "EEPROM Test: SUCCESS\r\n")
}

func hexStringToBytes(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", "0x", "", ":", "").Replace(s)
	if s == "" {
		return nil, fmt.Errorf("no data")
	}
	return hex.DecodeString(s)
}
