package bushal

import (
	"context"
)

// I2CLine exposes the raw framing primitives of an I2C controller. A Start on
// an already started line is a repeated start. The first byte written after
// every Start is the address byte (address<<1 | rw).
type I2CLine interface {
	Start(ctx context.Context) error
	Write(ctx context.Context, buffer []byte) error
	Read(ctx context.Context, buffer []byte) error
	Stop(ctx context.Context) error
}

// SPIPort is a full-duplex SPI controller with explicit chip-select control.
// Transfer clocks out w and, when r is not nil, stores the bytes clocked in;
// r must then be as long as w.
type SPIPort interface {
	Select(ctx context.Context) error
	Transfer(ctx context.Context, w, r []byte) error
	Deselect(ctx context.Context) error
}

// UARTPort is a half-duplex byte stream.
type UARTPort interface {
	Write(ctx context.Context, buffer []byte) error
	Read(ctx context.Context, buffer []byte) error
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is implemented by bridges that only offer whole addressed transfers
// (e.g. USB to I2C adapters).
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Sink receives human readable status and telemetry lines.
type Sink interface {
	Print(ctx context.Context, text string) error
}
