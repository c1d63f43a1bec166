package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/bushal"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// ReportSize is the length of every HID report exchanged with the bridge.
const ReportSize = 64

// MaxTransfer is the largest I2C payload a single report can carry.
const MaxTransfer = 60

// bridge clock used by the speed divider
const clockHz = 12_000_000

const (
	cmdStatusSetParams = 0x10
	cmdI2CWrite        = 0x90
	cmdI2CRead         = 0x91
	cmdI2CGetData      = 0x40

	paramCancel   = 0x10
	paramSetSpeed = 0x20

	statusBusy    = 0x01
	readDataError = 0x41
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")

var _ bushal.I2CBus = &MCP2221{}

// Transport exchanges one request report for one response report.
type Transport interface {
	Exchange(ctx context.Context, request, response []byte) error
}

// MCP2221 is the Microchip USB to I2C bridge. It only offers whole addressed
// transfers; wrap it with i2c.NewAddressableLine to drive register devices.
type MCP2221 struct {
	mx        sync.Mutex
	transport Transport
	request   []byte
	response  []byte
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent"`
	ReadPending            int    `yaml:"read_pending"`
}

// NewMCP2221 talks to the first attached bridge over USB HID.
func NewMCP2221() *MCP2221 {
	return NewMCP2221WithTransport(NewHIDTransport(VendorID, ProductID))
}

func NewMCP2221WithTransport(transport Transport) *MCP2221 {
	return &MCP2221{
		transport: transport,
		request:   make([]byte, ReportSize),
		response:  make([]byte, ReportSize),
	}
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > MaxTransfer {
		return fmt.Errorf("%w: %d bytes exceed bridge report of %d", bushal.ErrInvalidLength, len(buffer), MaxTransfer)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWrite
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == statusBusy {
		return bushal.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) == 0 || len(buffer) > MaxTransfer {
		return fmt.Errorf("%w: read of %d bytes", bushal.ErrInvalidLength, len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CRead
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == statusBusy {
		return bushal.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == readDataError {
		return fmt.Errorf("%w: error reading the I2C slave data from the I2C engine", bushal.ErrBusFault)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("%w: invalid data size byte; expected %d, got %d", bushal.ErrBusFault, len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// SetSpeed programs the I2C clock divider.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	if hz <= 0 {
		return fmt.Errorf("speed %d Hz is out of bridge range", hz)
	}
	divider := clockHz/hz - 3
	if divider < 1 || divider > 0xFF {
		return fmt.Errorf("speed %d Hz is out of bridge range", hz)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[3] = paramSetSpeed
	d.request[4] = byte(divider)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	// speed can not be set while a transfer is in progress
	if d.response[3] != paramSetSpeed {
		return ErrCommandFailed
	}
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels the current transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[2] = paramCancel
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	err := d.transport.Exchange(ctx, d.request, d.response)
	if err != nil {
		return err
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("%w: response to %#x echoes %#x", ErrCommandUnsupported, d.request[0], d.response[0])
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
