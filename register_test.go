package bushal

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt16(t *testing.T) {
	tests := []struct {
		given    []byte
		expected int16
	}{
		{[]byte{0x12, 0x34}, 4660},
		{[]byte{0xFF, 0xFF}, -1},
		{[]byte{0x80, 0x00}, -32768},
		{[]byte{0x7F, 0xFF}, 32767},
		{[]byte{0x00, 0x00}, 0},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, Int16(test.given))
		})
	}
}

func TestSplitAddress(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34}, SplitAddress(0x1234, 2))
	assert.Equal(t, []byte{0x01, 0x23, 0x45}, SplitAddress(0x012345, 3))
	assert.Equal(t, []byte{0x34}, SplitAddress(0x1234, 1))
	assert.Empty(t, SplitAddress(0x1234, 0))
}

func TestTransaction_Validate(t *testing.T) {
	assert.NoError(t, ReadTx(0x68, 0x3B, 14).Validate(make([]byte, 14)))
	assert.ErrorIs(t, ReadTx(0x68, 0x3B, 0).Validate(nil), ErrInvalidLength)
	assert.ErrorIs(t, WriteTx(0x68, 0x6B, 1).Validate([]byte{0x00, 0x01}), ErrInvalidLength)
	assert.Equal(t, "read 0x68 reg 0x3b len 14", ReadTx(0x68, 0x3B, 14).String())
}
