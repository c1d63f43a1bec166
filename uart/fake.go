package uart

import (
	"sync"
)

var _ RegisterFile = &FakeRegisters{}

// FakeRegisters is an in-memory register file behaving like a looped back
// PL011: stores to DR are collected in TX, loads from DR pop bytes queued
// with Feed and FR reflects the queue.
type FakeRegisters struct {
	mx     sync.Mutex
	values map[Register]uint32
	rx     []byte
	tx     []byte
	// Stores lists every non-data register write in order.
	Stores []Store
	// TXBusyReads makes the next n flag reads report a full transmit FIFO.
	TXBusyReads int
	FlagReads   int
}

type Store struct {
	Register Register
	Value    uint32
}

func NewFakeRegisters() *FakeRegisters {
	return &FakeRegisters{values: make(map[Register]uint32)}
}

// Feed queues bytes as if received on the line.
func (f *FakeRegisters) Feed(data ...byte) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.rx = append(f.rx, data...)
}

// Transmitted returns everything written to the data register.
func (f *FakeRegisters) Transmitted() []byte {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]byte(nil), f.tx...)
}

func (f *FakeRegisters) Load(r Register) uint32 {
	f.mx.Lock()
	defer f.mx.Unlock()
	switch r {
	case RegDR:
		if len(f.rx) == 0 {
			return 0
		}
		b := f.rx[0]
		f.rx = f.rx[1:]
		return uint32(b)
	case RegFR:
		f.FlagReads++
		var fr uint32
		if len(f.rx) == 0 {
			fr |= FlagRXFE
		}
		if f.TXBusyReads > 0 {
			f.TXBusyReads--
			fr |= FlagTXFF
		}
		return fr
	}
	return f.values[r]
}

func (f *FakeRegisters) Store(r Register, value uint32) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if r == RegDR {
		f.tx = append(f.tx, byte(value))
		return
	}
	f.values[r] = value
	f.Stores = append(f.Stores, Store{Register: r, Value: value})
}
