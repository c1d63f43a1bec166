package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/cmd/bushal/console"
	"github.com/mklimuk/bushal/uart"
)

var uartFlags = []cli.Flag{
	adapterFlag(adapterSerial, adapterSerial, adapterMMIO, adapterSim),
	&cli.IntFlag{Name: "baud", Aliases: []string{"b"}, Usage: "override configured baud rate"},
	verboseFlag,
}

var uartCmd = cli.Command{
	Name:  "uart",
	Usage: "UART operations",
	Subcommands: cli.Commands{
		&uartBaudCmd,
		&uartEchoCmd,
		&uartSendCmd,
	},
}

func withUART(c *cli.Context, fn func(ctx context.Context, port uartPort) error) error {
	cfg := loadConfig(c)
	if baud := c.Int("baud"); baud > 0 {
		cfg.UART.Baud = baud
	}
	port, closer, err := openUART(c, cfg)
	if err != nil {
		return console.Fail("could not open uart", err)
	}
	defer closer.Close()
	return fn(commandContext(c), port)
}

var uartBaudCmd = cli.Command{
	Name:  "baud",
	Usage: "compute PL011 divisor registers",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "clock", Usage: "UART reference clock in Hz", Value: 16_000_000},
		&cli.IntFlag{Name: "baud", Aliases: []string{"b"}, Value: 9600},
	},
	Action: func(c *cli.Context) error {
		b := uart.BaudConfig{Clock: physic.Frequency(c.Int64("clock")) * physic.Hertz, Baud: c.Int("baud")}
		ibrd, fbrd, err := b.Divisor()
		if err != nil {
			return console.Fail("invalid configuration", err)
		}
		actual, err := b.Actual()
		if err != nil {
			return console.Fail("invalid configuration", err)
		}
		errPct := (actual - float64(b.Baud)) / float64(b.Baud) * 100
		console.Printf("IBRD: %s FBRD: %s actual: %.1f baud (%+.3f%%)\n",
			console.Cyan(ibrd), console.Cyan(fbrd), actual, errPct)
		return nil
	},
}

var uartEchoCmd = cli.Command{
	Name:  "echo",
	Usage: "send a greeting periodically and echo received bytes",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "greeting", Value: "hello\r\n"},
		&cli.DurationFlag{Name: "every", Usage: "greeting period", Value: time.Second},
		&cli.DurationFlag{Name: "for", Usage: "stop after this long, 0 runs until interrupted"},
	}, uartFlags...),
	Action: func(c *cli.Context) error {
		return withUART(c, func(ctx context.Context, port uartPort) error {
			if d := c.Duration("for"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			n, err := echo(ctx, port, c.String("greeting"), c.Duration("every"))
			console.Infof("echoed %d bytes", n)
			if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				return console.Fail("echo stopped", err)
			}
			return nil
		})
	},
}

var uartSendCmd = cli.Command{
	Name:      "send",
	Usage:     "send text, prompting for it when no argument is given",
	ArgsUsage: "[text]",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "frame", Usage: "send as a checksummed frame"},
	}, uartFlags...),
	Action: func(c *cli.Context) error {
		text := c.Args().First()
		if text == "" {
			var err error
			text, err = console.Prompt("text> ")
			if err != nil {
				return console.Fail("no input", err)
			}
		}
		return withUART(c, func(ctx context.Context, port uartPort) error {
			link := uart.NewLink(port)
			var err error
			if c.Bool("frame") {
				err = link.SendFrame(ctx, []byte(text))
			} else {
				err = link.Print(ctx, text+"\r\n")
			}
			if err != nil {
				return console.Fail("send failed", err)
			}
			console.PInfof(console.PictoOK, "sent %d bytes", len(text))
			return nil
		})
	},
}

// echo transmits greeting every period and writes back each received byte
// until ctx is done. Receive timeouts are not errors.
func echo(ctx context.Context, port bushal.UARTPort, greeting string, period time.Duration) (int, error) {
	if period <= 0 {
		return 0, fmt.Errorf("invalid greeting period %s", period)
	}
	next := time.Now()
	echoed := 0
	buf := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return echoed, err
		}
		if !time.Now().Before(next) {
			if err := port.Write(ctx, []byte(greeting)); err != nil {
				return echoed, fmt.Errorf("greeting: %w", err)
			}
			next = time.Now().Add(period)
		}
		err := port.Read(ctx, buf)
		if errors.Is(err, bushal.ErrTimeout) {
			continue
		}
		if err != nil {
			return echoed, fmt.Errorf("receive: %w", err)
		}
		if err := port.Write(ctx, buf); err != nil {
			return echoed, fmt.Errorf("echo: %w", err)
		}
		echoed++
	}
}
