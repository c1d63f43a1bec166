package spi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal"
)

type loopConn struct {
	written []byte
	err     error
}

func (c *loopConn) Tx(w, r []byte) error {
	if c.err != nil {
		return c.err
	}
	c.written = append(c.written, w...)
	// echo the inverted byte back
	for i := range r {
		r[i] = ^w[i]
	}
	return nil
}

type tinyPin struct {
	levels []bool
}

func (p *tinyPin) High() { p.levels = append(p.levels, true) }
func (p *tinyPin) Low()  { p.levels = append(p.levels, false) }

func TestPort_PinSelect(t *testing.T) {
	conn := &loopConn{}
	pin := &tinyPin{}
	f := NewFramer(NewPort(conn, PinSelect{Pin: pin}))

	buf := make([]byte, 1)
	require.NoError(t, f.Read(context.Background(), Command{Instruction: 0x05}, buf))
	assert.Equal(t, []byte{0x05, Dummy}, conn.written)
	assert.Equal(t, byte(0x00), buf[0])
	assert.Equal(t, []bool{false, true}, pin.levels)
}

func TestPort_Errors(t *testing.T) {
	port := NewPort(&loopConn{err: errors.New("ioctl failed")}, PinSelect{Pin: &tinyPin{}})
	err := port.Transfer(context.Background(), []byte{0x01}, nil)
	assert.ErrorIs(t, err, bushal.ErrBusFault)

	port = NewPort(&loopConn{}, PinSelect{Pin: &tinyPin{}})
	err = port.Transfer(context.Background(), []byte{0x01, 0x02}, make([]byte, 1))
	assert.ErrorIs(t, err, bushal.ErrInvalidLength)
}

func TestConfig_Mode(t *testing.T) {
	_, err := Config{Mode: 4}.mode()
	assert.Error(t, err)
	m, err := Config{Mode: 3, LSBFirst: true}.mode()
	require.NoError(t, err)
	assert.NotZero(t, m)
}
