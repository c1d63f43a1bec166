package bushal

import "fmt"

type Direction uint8

const (
	DirWrite Direction = iota
	DirRead
)

func (d Direction) String() string {
	if d == DirRead {
		return "read"
	}
	return "write"
}

// Transaction describes a single register access on an addressed bus.
// It lives for the duration of one call.
type Transaction struct {
	Device    uint8
	Register  uint8
	Direction Direction
	Length    int
}

func ReadTx(device, register uint8, length int) Transaction {
	return Transaction{Device: device, Register: register, Direction: DirRead, Length: length}
}

func WriteTx(device, register uint8, length int) Transaction {
	return Transaction{Device: device, Register: register, Direction: DirWrite, Length: length}
}

// Validate checks the descriptor against the payload buffer it will be used with.
func (t Transaction) Validate(payload []byte) error {
	if t.Length <= 0 {
		return fmt.Errorf("%w: %s of %d bytes", ErrInvalidLength, t.Direction, t.Length)
	}
	if len(payload) != t.Length {
		return fmt.Errorf("%w: descriptor wants %d bytes, buffer has %d", ErrInvalidLength, t.Length, len(payload))
	}
	return nil
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s %#02x reg %#02x len %d", t.Direction, t.Device, t.Register, t.Length)
}
