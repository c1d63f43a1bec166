package bushal

import "encoding/binary"

// Int16 reconstructs a signed register pair sent high byte first.
func Int16(pair []byte) int16 {
	return int16(binary.BigEndian.Uint16(pair))
}

// SplitAddress returns the n low bytes of address, most significant first.
func SplitAddress(address uint32, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(address)
		address >>= 8
	}
	return out
}
