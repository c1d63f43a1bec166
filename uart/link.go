package uart

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/sigurn/crc16"

	"github.com/mklimuk/bushal"
)

// ErrChecksum is returned for telemetry frames failing the CRC check.
var ErrChecksum = errors.New("uart: frame checksum mismatch")

const (
	frameHeader  = 4
	frameTrailer = 2
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Link is the UART counterpart of the I2C and SPI framers. UART needs no
// framing so Send and Receive pass bytes straight through.
type Link struct {
	mx   sync.Mutex
	port bushal.UARTPort
}

func NewLink(port bushal.UARTPort) *Link {
	return &Link{port: port}
}

func (l *Link) Send(ctx context.Context, payload []byte) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.port.Write(ctx, payload)
}

func (l *Link) Receive(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: receive of %d bytes", bushal.ErrInvalidLength, n)
	}
	l.mx.Lock()
	defer l.mx.Unlock()
	buf := make([]byte, n)
	if err := l.port.Read(ctx, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (l *Link) Print(ctx context.Context, text string) error {
	return l.Send(ctx, []byte(text))
}

// SendFrame sends payload as a telemetry frame (see EncodeFrame).
func (l *Link) SendFrame(ctx context.Context, payload []byte) error {
	return l.Send(ctx, EncodeFrame(payload))
}

// ReceiveFrame reads one telemetry frame carrying at most maxLen payload bytes.
func (l *Link) ReceiveFrame(ctx context.Context, maxLen int) ([]byte, error) {
	l.mx.Lock()
	defer l.mx.Unlock()
	header := make([]byte, frameHeader)
	if err := l.port.Read(ctx, header); err != nil {
		return nil, fmt.Errorf("frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header)
	if size == 0 || int64(size) > int64(maxLen) {
		return nil, fmt.Errorf("%w: frame of %d bytes (max %d)", bushal.ErrInvalidLength, size, maxLen)
	}
	rest := make([]byte, int(size)+frameTrailer)
	if err := l.port.Read(ctx, rest); err != nil {
		return nil, fmt.Errorf("frame body: %w", err)
	}
	return DecodeFrame(append(header, rest...))
}

// EncodeFrame returns | length u32 BE | payload | CRC16/MODBUS u16 BE |.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, frameHeader, frameHeader+len(payload)+frameTrailer)
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	frame = append(frame, payload...)
	return binary.BigEndian.AppendUint16(frame, crc16.Checksum(payload, crcTable))
}

// DecodeFrame validates a complete frame and returns its payload.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeader+frameTrailer {
		return nil, fmt.Errorf("%w: frame of %d bytes", bushal.ErrInvalidLength, len(frame))
	}
	size := binary.BigEndian.Uint32(frame)
	if int64(size) != int64(len(frame)-frameHeader-frameTrailer) {
		return nil, fmt.Errorf("%w: header says %d bytes, frame carries %d", bushal.ErrInvalidLength, size, len(frame)-frameHeader-frameTrailer)
	}
	payload := frame[frameHeader : frameHeader+int(size)]
	expected := binary.BigEndian.Uint16(frame[frameHeader+int(size):])
	if got := crc16.Checksum(payload, crcTable); got != expected {
		return nil, fmt.Errorf("%w: expected %#04x, got %#04x", ErrChecksum, expected, got)
	}
	return payload, nil
}
