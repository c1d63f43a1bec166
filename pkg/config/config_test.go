package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bushal.yaml")
	err := os.WriteFile(path, []byte(`
i2c:
  bus: "1"
  address: 0x69
spi:
  mode: 3
uart:
  device: /dev/ttyUSB0
  baud: 115200
  parity: even
eeprom:
  model: 25AA1024
  poll_interval: 1ms
`), 0o600)
	require.NoError(t, err)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1", c.I2C.Bus)
	assert.Equal(t, uint8(0x69), c.I2C.Address)
	assert.Equal(t, 100_000, c.I2C.SpeedHz)
	assert.Equal(t, 3, c.SPI.Mode)
	assert.Equal(t, "GPIO8", c.SPI.CS)
	assert.Equal(t, "/dev/ttyUSB0", c.UART.Device)
	assert.Equal(t, 115200, c.UART.Baud)
	assert.Equal(t, "even", c.UART.Parity)
	assert.Equal(t, 8, c.UART.DataBits)
	assert.Equal(t, "25AA1024", c.EEPROM.Model)
	assert.Equal(t, time.Millisecond, c.EEPROM.PollInterval)
	assert.Equal(t, 100, c.EEPROM.PollAttempts)
}

func TestLoad_Missing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bushal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("i2c:\n  sped: 10\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
