package spi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/bushal"
)

// recordingPort logs every primitive and answers reads from a queue.
type recordingPort struct {
	log       []string
	selects   int
	deselects int
	replies   []byte
	failAt    int // fail the n-th transfer (1-based), 0 disables
	transfers int
}

func (p *recordingPort) Select(ctx context.Context) error {
	p.selects++
	p.log = append(p.log, "CS")
	return nil
}

func (p *recordingPort) Deselect(ctx context.Context) error {
	p.deselects++
	p.log = append(p.log, "/CS")
	return nil
}

func (p *recordingPort) Transfer(ctx context.Context, w, r []byte) error {
	p.transfers++
	if p.failAt == p.transfers {
		return errors.New("wire cut")
	}
	p.log = append(p.log, fmt.Sprintf("%x", w))
	for i := range r {
		if len(p.replies) > 0 {
			r[i] = p.replies[0]
			p.replies = p.replies[1:]
		}
	}
	return nil
}

func TestFramer_WriteOrder(t *testing.T) {
	port := &recordingPort{}
	f := NewFramer(port)
	err := f.Write(context.Background(), Command{Instruction: 0x02, Address: 0x1234, AddressBytes: 2}, []byte{0xAB})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS", "02", "12", "34", "ab", "/CS"}, port.log)
}

func TestFramer_InstructionOnly(t *testing.T) {
	port := &recordingPort{}
	require.NoError(t, NewFramer(port).Write(context.Background(), Command{Instruction: 0x06}, nil))
	assert.Equal(t, []string{"CS", "06", "/CS"}, port.log)
}

func TestFramer_ReadClocksDummies(t *testing.T) {
	port := &recordingPort{replies: []byte{0xDE, 0xAD, 0xBE}}
	buf := make([]byte, 3)
	err := NewFramer(port).Read(context.Background(), Command{Instruction: 0x03, Address: 0x010203, AddressBytes: 3}, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE}, buf)
	assert.Equal(t, "CS 03 01 02 03 ff ff ff /CS", strings.Join(port.log, " "))
}

func TestFramer_SingleChipSelectPerCall(t *testing.T) {
	for _, n := range []int{1, 2, 16, 64} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			port := &recordingPort{}
			f := NewFramer(port)
			require.NoError(t, f.Write(context.Background(), Command{Instruction: 0x02, AddressBytes: 2}, make([]byte, n)))
			require.NoError(t, f.Read(context.Background(), Command{Instruction: 0x03, AddressBytes: 2}, make([]byte, n)))
			assert.Equal(t, 2, port.selects)
			assert.Equal(t, 2, port.deselects)
		})
	}
}

func TestFramer_ReleasesOnFailure(t *testing.T) {
	port := &recordingPort{failAt: 3}
	err := NewFramer(port).Write(context.Background(), Command{Instruction: 0x02, Address: 0x10, AddressBytes: 2}, []byte{0x01})
	assert.Error(t, err)
	assert.Equal(t, 1, port.selects)
	assert.Equal(t, 1, port.deselects)
	assert.Equal(t, "/CS", port.log[len(port.log)-1])
}

func TestFramer_InvalidRequests(t *testing.T) {
	port := &recordingPort{}
	f := NewFramer(port)
	assert.ErrorIs(t, f.Read(context.Background(), Command{Instruction: 0x03, AddressBytes: 2}, nil), bushal.ErrInvalidLength)
	assert.ErrorIs(t, f.Write(context.Background(), Command{Instruction: 0x02, AddressBytes: 5}, []byte{1}), ErrAddressWidth)
	assert.Empty(t, port.log)
}
