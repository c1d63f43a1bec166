package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/bushal"
)

var (
	_ bushal.I2CLine = &Target{}
	_ sync.Locker    = &Target{}
)

// Target is an in-memory I2C line with one register-addressed device behind
// it. The first byte written after addressing sets the register pointer,
// which auto-increments on every data byte. Transfers to any other address
// are not acknowledged.
type Target struct {
	owner     sync.Mutex
	mx        sync.Mutex
	address   uint8
	registers [256]byte

	// Log records every primitive: "S", "Sr", "W <hex>", "R <n>", "P".
	Log    []string
	Starts int
	Stops  int

	started    bool
	addressed  bool
	read       bool
	pointer    uint8
	pointerSet bool
}

func NewTarget(address uint8) *Target {
	return &Target{address: address}
}

// Set preloads registers starting at reg.
func (t *Target) Set(reg uint8, data ...byte) {
	t.mx.Lock()
	defer t.mx.Unlock()
	for i, b := range data {
		t.registers[reg+uint8(i)] = b
	}
}

func (t *Target) Register(reg uint8) byte {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.registers[reg]
}

// Lock reserves the line for one transaction.
func (t *Target) Lock() { t.owner.Lock() }

func (t *Target) Unlock() { t.owner.Unlock() }

func (t *Target) Start(ctx context.Context) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.Starts++
	if t.started {
		t.Log = append(t.Log, "Sr")
	} else {
		t.Log = append(t.Log, "S")
	}
	t.started = true
	t.addressed = false
	return nil
}

func (t *Target) Write(ctx context.Context, buffer []byte) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.Log = append(t.Log, fmt.Sprintf("W % x", buffer))
	if !t.started {
		return fmt.Errorf("%w: write before start", ErrSequence)
	}
	if !t.addressed {
		if len(buffer) == 0 {
			return fmt.Errorf("%w: missing address byte", ErrSequence)
		}
		if buffer[0]>>1 != t.address {
			return fmt.Errorf("%w: no acknowledge from %#x", bushal.ErrBusFault, buffer[0]>>1)
		}
		t.read = buffer[0]&0x01 == 1
		t.addressed = true
		t.pointerSet = false
		buffer = buffer[1:]
	}
	if t.read && len(buffer) > 0 {
		return fmt.Errorf("%w: data written in read phase", ErrSequence)
	}
	for _, b := range buffer {
		if !t.pointerSet {
			t.pointer = b
			t.pointerSet = true
			continue
		}
		t.registers[t.pointer] = b
		t.pointer++
	}
	return nil
}

func (t *Target) Read(ctx context.Context, buffer []byte) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.Log = append(t.Log, fmt.Sprintf("R %d", len(buffer)))
	if !t.started || !t.addressed || !t.read {
		return fmt.Errorf("%w: read without read address", ErrSequence)
	}
	for i := range buffer {
		buffer[i] = t.registers[t.pointer]
		t.pointer++
	}
	return nil
}

func (t *Target) Stop(ctx context.Context) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.Stops++
	t.Log = append(t.Log, "P")
	t.started = false
	t.addressed = false
	return nil
}
