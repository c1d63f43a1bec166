package i2c

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// StandardMode is the default I2C clock rate.
const StandardMode = 100 * physic.KiloHertz

// HostBus is an I2C controller exposed by the host OS (e.g. /dev/i2c-1).
type HostBus struct {
	bus i2c.BusCloser
}

// OpenHost initializes periph host drivers, opens the named bus and sets its
// clock rate. A zero speed selects StandardMode.
func OpenHost(name string, speed physic.Frequency) (*HostBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %q: %w", name, err)
	}
	if speed == 0 {
		speed = StandardMode
	}
	if err := bus.SetSpeed(speed); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("could not set i2c bus speed to %s: %w", speed, err)
	}
	slog.Debug("i2c bus opened", "bus", bus.String(), "speed", speed.String())
	return &HostBus{bus: bus}, nil
}

func (b *HostBus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

func (b *HostBus) String() string {
	return b.bus.String()
}

func (b *HostBus) Close() error {
	return b.bus.Close()
}
