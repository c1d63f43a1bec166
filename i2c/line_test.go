package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal"
)

type mockTxer struct {
	mock.Mock
}

func (m *mockTxer) Tx(addr uint16, w, r []byte) error {
	args := m.Called(addr, w, r)
	if data, ok := args.Get(0).([]byte); ok {
		copy(r, data)
	}
	return args.Error(1)
}

// MockI2CBus is a mock implementation of bushal.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestTxLine_Read(t *testing.T) {
	bus := new(mockTxer)
	bus.On("Tx", uint16(0x68), []byte{0x3B}, mock.Anything).Return([]byte{0xFF, 0xFE}, nil).Once()
	dev, err := NewDevice(NewTxLine(bus), 0x68)
	require.NoError(t, err)

	buf := make([]byte, 2)
	require.NoError(t, dev.ReadRegister(context.Background(), 0x3B, buf))
	assert.Equal(t, []byte{0xFF, 0xFE}, buf)
	bus.AssertExpectations(t)
}

func TestTxLine_Write(t *testing.T) {
	bus := new(mockTxer)
	bus.On("Tx", uint16(0x68), []byte{0x6B, 0x00}, []byte(nil)).Return(nil, nil).Once()
	dev, err := NewDevice(NewTxLine(bus), 0x68)
	require.NoError(t, err)

	require.NoError(t, dev.WriteRegister(context.Background(), 0x6B, 0x00))
	bus.AssertExpectations(t)
	bus.AssertNumberOfCalls(t, "Tx", 1)
}

func TestTxLine_Fault(t *testing.T) {
	nack := errors.New("i2c: nack")
	bus := new(mockTxer)
	bus.On("Tx", uint16(0x68), []byte{0x3B}, mock.Anything).Return(nil, nack).Once()
	dev, err := NewDevice(NewTxLine(bus), 0x68)
	require.NoError(t, err)

	err = dev.ReadRegister(context.Background(), 0x3B, make([]byte, 14))
	assert.ErrorIs(t, err, bushal.ErrBusFault)
	assert.ErrorIs(t, err, nack)
	bus.AssertNumberOfCalls(t, "Tx", 1)
}

func TestLine_Sequence(t *testing.T) {
	ctx := context.Background()
	line := NewTxLine(new(mockTxer))

	assert.ErrorIs(t, line.Write(ctx, []byte{0xD0}), ErrSequence)
	require.NoError(t, line.Start(ctx))
	assert.ErrorIs(t, line.Read(ctx, make([]byte, 1)), ErrSequence)
	require.NoError(t, line.Write(ctx, []byte{0xD0, 0x3B}))
	require.NoError(t, line.Start(ctx))
	assert.ErrorIs(t, line.Write(ctx, []byte{0xD3}), ErrSequence, "repeated start to another target")
	require.NoError(t, line.Stop(ctx))
	// stop on an idle line is harmless
	require.NoError(t, line.Stop(ctx))
}

func TestAddressableLine(t *testing.T) {
	ctx := context.Background()
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x68), []byte{0x75}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x68), mock.Anything).Return([]byte{0x68}, nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(0x68), []byte{0x6B, 0x00}).Return(nil).Once()

	dev, err := NewDevice(NewAddressableLine(bus), 0x68)
	require.NoError(t, err)

	buf := make([]byte, 1)
	require.NoError(t, dev.ReadRegister(ctx, 0x75, buf))
	assert.Equal(t, byte(0x68), buf[0])
	require.NoError(t, dev.WriteRegister(ctx, 0x6B, 0x00))
	bus.AssertExpectations(t)
}

func TestAddressableLine_Busy(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x0A), []byte{0x22, 0x03}).Return(bushal.ErrBusBusy).Once()
	dev, err := NewDevice(NewAddressableLine(bus), 0x0A)
	require.NoError(t, err)

	err = dev.WriteRegister(context.Background(), 0x22, 0x03)
	assert.ErrorIs(t, err, bushal.ErrBusBusy)
	assert.ErrorIs(t, err, bushal.ErrBusFault)
}
