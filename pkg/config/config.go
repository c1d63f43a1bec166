// Package config holds the bus settings read by the bushal command.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is injected at build time.
var Version = "dev"

type I2C struct {
	Bus     string `yaml:"bus"`
	SpeedHz int    `yaml:"speed_hz"`
	Address uint8  `yaml:"address"`
}

type SPI struct {
	Port     string `yaml:"port"`
	CS       string `yaml:"cs"`
	Mode     int    `yaml:"mode"`
	SpeedHz  int64  `yaml:"speed_hz"`
	LSBFirst bool   `yaml:"lsb_first"`
}

type UART struct {
	// Device is a host serial port; when empty the PL011 at Base is used.
	Device      string        `yaml:"device"`
	Base        uint64        `yaml:"base"`
	ClockHz     int64         `yaml:"clock_hz"`
	Baud        int           `yaml:"baud"`
	DataBits    int           `yaml:"data_bits"`
	Parity      string        `yaml:"parity"`
	StopBits    int           `yaml:"stop_bits"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type EEPROM struct {
	Model        string        `yaml:"model"`
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	I2C    I2C    `yaml:"i2c"`
	SPI    SPI    `yaml:"spi"`
	UART   UART   `yaml:"uart"`
	EEPROM EEPROM `yaml:"eeprom"`
}

func Default() Config {
	return Config{
		I2C: I2C{
			Bus:     "",
			SpeedHz: 100_000,
			Address: 0x68,
		},
		SPI: SPI{
			Port:    "SPI0.0",
			CS:      "GPIO8",
			Mode:    0,
			SpeedHz: 1_000_000,
		},
		UART: UART{
			Base:        0x3F201000,
			ClockHz:     16_000_000,
			Baud:        9600,
			DataBits:    8,
			Parity:      "none",
			StopBits:    1,
			ReadTimeout: time.Second,
		},
		EEPROM: EEPROM{
			Model:        "25LC256",
			PollAttempts: 100,
			PollInterval: 100 * time.Microsecond,
		},
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return config, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return config, nil
}
