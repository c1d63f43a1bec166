package eeprom

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/poll"
	"github.com/mklimuk/bushal/spi"
)

func newTestEEPROM(t *testing.T, sim *Simulator, opts ...Option) *EEPROM {
	t.Helper()
	opts = append([]Option{WithModel(sim.model), WithPollInterval(0)}, opts...)
	e, err := New(sim, opts...)
	require.NoError(t, err)
	return e
}

func TestEEPROM_WriteReadByte(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	sim.BusyReads = 3
	e := newTestEEPROM(t, sim)
	ctx := context.Background()

	require.NoError(t, e.WriteByteAt(ctx, 0x0010, 0xAB))
	// WREN, WRITE and four status reads, the last one reporting ready
	assert.Equal(t, 6, sim.Selects)
	assert.Equal(t, 6, sim.Deselects)
	assert.Equal(t, 4, sim.StatusReads)
	assert.Equal(t, byte(0xAB), sim.Peek(0x0010))

	v, err := e.ReadByteAt(ctx, 0x0010)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v)
	assert.Equal(t, 7, sim.Selects)
	assert.Equal(t, 7, sim.Deselects)
}

func TestEEPROM_WriteTimeout(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	sim.Stuck = true
	e := newTestEEPROM(t, sim, WithPollAttempts(5))

	err := e.WriteByteAt(context.Background(), 0x0020, 0x01)
	assert.ErrorIs(t, err, bushal.ErrTimeout)
	assert.Equal(t, 5, sim.StatusReads)
	assert.Equal(t, sim.Selects, sim.Deselects)
}

func TestEEPROM_PagedWrite(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	e := newTestEEPROM(t, sim)
	ctx := context.Background()

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, e.Write(ctx, 0x30, data))
	// pages 0x30-0x3f, 0x40-0x7f and 0x80-0x93, three transactions each
	assert.Equal(t, 9, sim.Selects)

	got, err := e.Read(ctx, 0x30, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, byte(0xFF), sim.Peek(0x2F))
	assert.Equal(t, byte(0xFF), sim.Peek(0x94))
}

func TestEEPROM_LargeModelAddressing(t *testing.T) {
	sim := NewSimulator(Model25AA1024)
	e := newTestEEPROM(t, sim)
	ctx := context.Background()

	require.NoError(t, e.WriteByteAt(ctx, 0x10000, 0x5A))
	assert.Equal(t, byte(0x5A), sim.Peek(0x10000))
	assert.Equal(t, byte(0xFF), sim.Peek(0x0000))

	v, err := e.ReadByteAt(ctx, 0x10000)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), v)
}

func TestEEPROM_OutOfRange(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	e := newTestEEPROM(t, sim)
	ctx := context.Background()

	_, err := e.ReadByteAt(ctx, 32768)
	assert.ErrorIs(t, err, ErrOutOfRange)
	err = e.Write(ctx, 32760, make([]byte, 10))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = e.Read(ctx, 0, 0)
	assert.ErrorIs(t, err, bushal.ErrInvalidLength)
	assert.Zero(t, sim.Selects)
}

func TestEEPROM_WriteStatus(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	sim.BusyReads = 1
	e := newTestEEPROM(t, sim)
	ctx := context.Background()

	require.NoError(t, e.WriteStatus(ctx, 0x0C))
	status, err := e.ReadStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x0C), status)

	require.NoError(t, e.WriteDisable(ctx))
	status, err = e.ReadStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status&StatusWEL)
}

type faultyPort struct {
	*Simulator
	failAfter int
	transfers int
}

func (p *faultyPort) Transfer(ctx context.Context, w, r []byte) error {
	p.transfers++
	if p.transfers > p.failAfter {
		return errors.New("clock stuck")
	}
	return p.Simulator.Transfer(ctx, w, r)
}

func TestEEPROM_TransferFailureReleasesChip(t *testing.T) {
	port := &faultyPort{Simulator: NewSimulator(Model25LC256), failAfter: 2}
	e, err := New(port, WithPollInterval(0))
	require.NoError(t, err)

	_, err = e.ReadByteAt(context.Background(), 0x0100)
	assert.Error(t, err)
	assert.Equal(t, 1, port.Selects)
	assert.Equal(t, 1, port.Deselects)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(NewSimulator(Model25LC256), WithPollAttempts(0))
	assert.ErrorIs(t, err, poll.ErrInvalidAttempts)
	_, err = New(NewSimulator(Model25LC256), WithModel(Model{Name: "empty"}))
	assert.Error(t, err)
}

func TestModelByName(t *testing.T) {
	for name, want := range map[string]Model{
		"":         Model25LC256,
		"25LC256":  Model25LC256,
		"25AA1024": Model25AA1024,
	} {
		got, err := ModelByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ModelByName("24C02")
	assert.Error(t, err)
}

func TestSimulator_PageWrap(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	framer := spi.NewFramer(sim)
	ctx := context.Background()

	require.NoError(t, framer.Write(ctx, spi.Command{Instruction: cmdWREN}, nil))
	cmd := spi.Command{Instruction: cmdWrite, Address: 62, AddressBytes: 2}
	require.NoError(t, framer.Write(ctx, cmd, []byte{1, 2, 3, 4}))

	assert.Equal(t, []byte{1, 2}, []byte{sim.Peek(62), sim.Peek(63)})
	assert.Equal(t, []byte{3, 4}, []byte{sim.Peek(0), sim.Peek(1)})
	assert.Equal(t, byte(0xFF), sim.Peek(64))
}

func TestSimulator_WriteNeedsLatch(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	framer := spi.NewFramer(sim)
	ctx := context.Background()

	cmd := spi.Command{Instruction: cmdWrite, Address: 0x10, AddressBytes: 2}
	require.NoError(t, framer.Write(ctx, cmd, []byte{0x00}))
	assert.Equal(t, byte(0xFF), sim.Peek(0x10))

	buf := make([]byte, 4)
	require.NoError(t, framer.Read(ctx, spi.Command{Instruction: cmdRead, Address: 0x0E, AddressBytes: 2}, buf))
	assert.True(t, bytes.Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF}, buf))
}

func TestSimulator_BusyIgnoresInstructions(t *testing.T) {
	sim := NewSimulator(Model25LC256)
	sim.BusyReads = 2
	framer := spi.NewFramer(sim)
	ctx := context.Background()

	require.NoError(t, framer.Write(ctx, spi.Command{Instruction: cmdWREN}, nil))
	require.NoError(t, framer.Write(ctx, spi.Command{Instruction: cmdWrite, Address: 0, AddressBytes: 2}, []byte{0x11}))
	// rejected while the cycle runs
	require.NoError(t, framer.Write(ctx, spi.Command{Instruction: cmdWREN}, nil))
	assert.Equal(t, byte(StatusWIP), sim.Status())

	status := make([]byte, 3)
	require.NoError(t, framer.Read(ctx, spi.Command{Instruction: cmdRDSR}, status))
	assert.Equal(t, []byte{StatusWIP, StatusWIP, 0x00}, status)
	assert.Equal(t, byte(0x11), sim.Peek(0))
}

// Addressed byte access takes a context and address, so it must not be
// mistaken for the io byte stream interfaces.
func TestEEPROM_NotByteStream(t *testing.T) {
	e := newTestEEPROM(t, NewSimulator(Model25LC256))
	var v any = e
	_, isWriter := v.(io.ByteWriter)
	_, isReader := v.(io.ByteReader)
	assert.False(t, isWriter)
	assert.False(t, isReader)
}
