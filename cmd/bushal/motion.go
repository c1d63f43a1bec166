package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/accel"
	"github.com/mklimuk/bushal/cmd/bushal/console"
	"github.com/mklimuk/bushal/uart"
)

const (
	sensorMPU6050 = "mpu6050"
	sensorBMA220  = "bma220"
)

var motionFlags = []cli.Flag{
	adapterFlag(adapterMCP2221, adapterMCP2221, adapterHost, adapterSim),
	&cli.StringFlag{
		Name:    "sensor",
		Aliases: []string{"s"},
		Value:   sensorMPU6050,
	},
	verboseFlag,
}

var motionCmd = cli.Command{
	Name:  "motion",
	Usage: "motion sensor operations",
	Subcommands: cli.Commands{
		&motionInitCmd,
		&motionReadCmd,
		&motionWhoAmICmd,
		&motionCheckCmd,
		&motionResetCmd,
	},
}

var motionInitCmd = cli.Command{
	Name:  "init",
	Usage: "wake the sensor (mpu6050) or enable slope detection (bma220)",
	Flags: motionFlags,
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg := loadConfig(c)
		switch c.String("sensor") {
		case sensorMPU6050:
			m, closer, err := openMPU6050(c, cfg)
			if err != nil {
				return console.Fail("could not open sensor", err)
			}
			defer closer.Close()
			if err := m.Init(ctx); err != nil {
				return console.Fail("error initializing MPU6050", err)
			}
		case sensorBMA220:
			s, closer, err := openBMA220(c)
			if err != nil {
				return console.Fail("could not open sensor", err)
			}
			defer closer.Close()
			if err := s.InitMotionDetection(ctx); err != nil {
				return console.Fail("error initializing BMA220", err)
			}
		default:
			return console.Exit(1, "unsupported sensor %s", console.Red(c.String("sensor")))
		}
		console.PInfof(console.PictoOK, "%s initialized", c.String("sensor"))
		return nil
	},
}

var motionWhoAmICmd = cli.Command{
	Name:  "whoami",
	Usage: "read the MPU6050 identity register",
	Flags: motionFlags,
	Action: func(c *cli.Context) error {
		m, closer, err := openMPU6050(c, loadConfig(c))
		if err != nil {
			return console.Fail("could not open sensor", err)
		}
		defer closer.Close()
		id, err := m.WhoAmI(commandContext(c))
		if err != nil {
			return console.Fail("could not read identity", err)
		}
		console.PInfof(console.PictoChip, "WHO_AM_I: %s", console.Cyan(fmt.Sprintf("%#02x", id)))
		return nil
	},
}

var motionReadCmd = cli.Command{
	Name:  "read",
	Usage: "stream MPU6050 samples",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "number of samples, 0 reads until interrupted", Value: 1},
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "delay between samples", Value: 500 * time.Millisecond},
		&cli.BoolFlag{Name: "binary", Usage: "emit checksummed binary frames"},
		&cli.StringFlag{Name: "out", Usage: "output (console, uart)", Value: "console"},
		&cli.StringFlag{Name: "out-adapter", Usage: "uart adapter for --out uart", Value: adapterSerial},
		&cli.BoolFlag{Name: "no-init", Usage: "do not wake the sensor first"},
	}, motionFlags...),
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg := loadConfig(c)
		m, closer, err := openMPU6050(c, cfg)
		if err != nil {
			return console.Fail("could not open sensor", err)
		}
		defer closer.Close()
		if !c.Bool("no-init") {
			if err := m.Init(ctx); err != nil {
				return console.Fail("error initializing MPU6050", err)
			}
		}
		var out telemetry = consoleTelemetry{}
		if c.String("out") == "uart" {
			if err := c.Set("adapter", c.String("out-adapter")); err != nil {
				return err
			}
			port, uartCloser, err := openUART(c, cfg)
			if err != nil {
				return console.Fail("could not open uart", err)
			}
			defer uartCloser.Close()
			out = uart.NewLink(port)
		}
		err = streamSamples(ctx, m, out, sampling{
			count:    c.Int("count"),
			interval: c.Duration("interval"),
			binary:   c.Bool("binary"),
		})
		if err != nil {
			return console.Fail("sampling stopped", err)
		}
		return nil
	},
}

var motionCheckCmd = cli.Command{
	Name:  "check",
	Usage: "check the BMA220 motion interrupt",
	Flags: motionFlags,
	Action: func(c *cli.Context) error {
		s, closer, err := openBMA220(c)
		if err != nil {
			return console.Fail("could not open sensor", err)
		}
		defer closer.Close()
		motion, err := s.CheckMotionInterrupt(commandContext(c))
		if err != nil {
			return console.Fail("error checking motion detection on BMA220", err)
		}
		console.Printf("motion interrupt: %s\n", console.Bool(motion))
		return nil
	},
}

var motionResetCmd = cli.Command{
	Name:  "reset",
	Usage: "reset the BMA220 motion interrupt latch",
	Flags: motionFlags,
	Action: func(c *cli.Context) error {
		s, closer, err := openBMA220(c)
		if err != nil {
			return console.Fail("could not open sensor", err)
		}
		defer closer.Close()
		if err := s.ResetMotionInterrupt(commandContext(c)); err != nil {
			return console.Fail("error resetting motion detection on BMA220", err)
		}
		return nil
	},
}

func openBMA220(c *cli.Context) (*accel.BMA220, io.Closer, error) {
	cfg := loadConfig(c)
	cfg.I2C.Address = accel.BMA220DefaultAddress
	line, closer, err := openI2C(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := accel.NewBMA220(line)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return s, closer, nil
}

type sampler interface {
	ReadSample(ctx context.Context) (accel.Sample, error)
}

// telemetry receives text lines and binary frames.
type telemetry interface {
	bushal.Sink
	SendFrame(ctx context.Context, payload []byte) error
}

type consoleTelemetry struct {
	console.Sink
}

func (t consoleTelemetry) SendFrame(ctx context.Context, payload []byte) error {
	return t.Print(ctx, hex.EncodeToString(uart.EncodeFrame(payload))+"\n")
}

type sampling struct {
	count    int
	interval time.Duration
	binary   bool
}

func streamSamples(ctx context.Context, sensor sampler, out telemetry, s sampling) error {
	ticker := time.NewTicker(max(s.interval, time.Millisecond))
	defer ticker.Stop()
	for n := 0; s.count <= 0 || n < s.count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		sample, err := sensor.ReadSample(ctx)
		if err != nil {
			return fmt.Errorf("sample %d: %w", n+1, err)
		}
		if s.binary {
			err = out.SendFrame(ctx, sample.Bytes())
		} else {
			err = out.Print(ctx, sample.String()+"\r\n")
		}
		if err != nil {
			return fmt.Errorf("sample %d output: %w", n+1, err)
		}
	}
	return nil
}
