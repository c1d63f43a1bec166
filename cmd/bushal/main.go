package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/bushal/pkg/config"
)

var commit string
var date string

const metaConfig = "config"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := cli.NewApp()
	app.Name = "bushal"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", config.Version, date, commit)
	app.Usage = "I2C, SPI and UART bus tool"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "bus configuration file",
			Value:   "bushal.yaml",
			EnvVars: []string{"BUSHAL_CONFIG"},
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		cfg, err := config.Load(ctx.String("config"))
		if err != nil {
			return err
		}
		if ctx.App.Metadata == nil {
			ctx.App.Metadata = map[string]any{}
		}
		ctx.App.Metadata[metaConfig] = cfg
		return nil
	}
	app.Commands = cli.Commands{
		&motionCmd,
		&eepromCmd,
		&uartCmd,
		&gpioCmd,
		&mcp2221Cmd,
		&usbCmd,
	}
	// exit codes are returned from run instead of terminating inside app.Run
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}

func loadConfig(c *cli.Context) config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(config.Config); ok {
		return cfg
	}
	return config.Default()
}
