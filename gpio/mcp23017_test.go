package gpio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/i2c"
	"github.com/mklimuk/bushal/spi"
)

func TestRegisterAddress(t *testing.T) {
	assert.Equal(t, byte(0x00), IODIR.address(PortA))
	assert.Equal(t, byte(0x01), IODIR.address(PortB))
	assert.Equal(t, byte(0x0C), GPPU.address(PortA))
	assert.Equal(t, byte(0x13), GPIO.address(PortB))
	assert.Equal(t, byte(0x14), OLAT.address(PortA))
	assert.Equal(t, byte(0x0A), IOCON.address(PortA))
}

func TestMCP23017_ReadWrite(t *testing.T) {
	target := i2c.NewTarget(DefaultMCP23017Address)
	target.Set(0x12, 0x5A, 0xA5)
	m, err := NewMCP23017(target, DefaultMCP23017Address)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.SetDirection(ctx, PortA, 0xFF))
	require.NoError(t, m.PullUp(ctx, PortB, 0x0F))
	a, err := m.Read(ctx, PortA)
	require.NoError(t, err)
	b, err := m.Read(ctx, PortB)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), a)
	assert.Equal(t, byte(0xA5), b)
	assert.Equal(t, byte(0xFF), target.Register(0x00))
	assert.Equal(t, byte(0x0F), target.Register(0x0D))

	require.NoError(t, m.Write(ctx, PortB, 0x80))
	require.NoError(t, m.SetPin(ctx, PortB, 0, true))
	assert.Equal(t, byte(0x81), target.Register(0x15))
	assert.Error(t, m.SetPin(ctx, PortB, 8, true))
}

func TestMCP23017_ChipSelect(t *testing.T) {
	target := i2c.NewTarget(DefaultMCP23017Address)
	target.Set(0x00, 0xFF, 0xFF) // all inputs after reset
	m, err := NewMCP23017(target, DefaultMCP23017Address)
	require.NoError(t, err)

	cs, err := m.ChipSelect(context.Background(), PortA, 3)
	require.NoError(t, err)
	assert.Equal(t, byte(0xF7), target.Register(0x00))
	assert.Equal(t, byte(0x08), target.Register(0x14))

	port := spi.NewPort(nopConn{}, cs)
	require.NoError(t, port.Select(context.Background()))
	assert.Equal(t, byte(0x00), target.Register(0x14))
	require.NoError(t, port.Deselect(context.Background()))
	assert.Equal(t, byte(0x08), target.Register(0x14))
}

type nopConn struct{}

func (nopConn) Tx(w, r []byte) error { return nil }

type MockBridge struct {
	mock.Mock
}

func (m *MockBridge) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(address, buffer).Error(0)
}

func (m *MockBridge) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(address, buffer).Error(0)
}

func (m *MockBridge) Release(ctx context.Context) error {
	return m.Called().Error(0)
}

func TestMCP23017_BusyRetry(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("WriteToAddr", byte(DefaultMCP23017Address), []byte{0x00, 0xFF}).Return(bushal.ErrBusBusy).Once()
	bridge.On("WriteToAddr", byte(DefaultMCP23017Address), []byte{0x00, 0xFF}).Return(nil).Once()
	bridge.On("Release").Return(nil).Once()

	m, err := NewMCP23017(i2c.NewAddressableLine(bridge), DefaultMCP23017Address, WithBusRelease(bridge, 3))
	require.NoError(t, err)
	require.NoError(t, m.SetDirection(context.Background(), PortA, 0xFF))
	bridge.AssertExpectations(t)
}

func TestMCP23017_BusyExhausted(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("WriteToAddr", mock.Anything, mock.Anything).Return(bushal.ErrBusBusy)
	bridge.On("Release").Return(nil)

	m, err := NewMCP23017(i2c.NewAddressableLine(bridge), DefaultMCP23017Address, WithBusRelease(bridge, 2))
	require.NoError(t, err)
	err = m.PullUp(context.Background(), PortA, 0x01)
	assert.ErrorIs(t, err, bushal.ErrBusBusy)
	bridge.AssertNumberOfCalls(t, "WriteToAddr", 2)
}
