package bushal

import "errors"

var (
	// ErrTimeout is returned when a status poll runs out of attempts.
	ErrTimeout = errors.New("device not ready: poll attempts exhausted")
	// ErrInvalidLength is returned for zero-length or register-map violating transfers.
	ErrInvalidLength = errors.New("invalid transaction length")
	// ErrBusFault wraps acknowledgement and transfer failures reported by hardware.
	ErrBusFault = errors.New("bus fault")
	// ErrInvalidAddress is returned for reserved or out of range device addresses.
	ErrInvalidAddress = errors.New("invalid device address")
	ErrBusBusy        = errors.New("I2C engine is busy (command not completed)")
)
