package eeprom

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/bushal"
)

var _ bushal.SPIPort = &Simulator{}

type simPhase int

const (
	phaseInstruction simPhase = iota
	phaseAddress
	phaseData
	phaseIgnore
)

// Simulator emulates a 25xx EEPROM behind a chip-select framed port. Writes
// take effect when chip-select is released and need the write enable latch.
// After a write the WIP bit stays set for BusyReads status reads.
type Simulator struct {
	mx     sync.Mutex
	model  Model
	memory []byte
	status byte

	// BusyReads is the number of status reads reporting WIP after a write.
	BusyReads int
	// Stuck keeps WIP set forever.
	Stuck bool

	Selects     int
	Deselects   int
	StatusReads int

	selected    bool
	phase       simPhase
	instruction byte
	address     uint32
	addrLeft    int
	pending     []byte
	busyLeft    int
}

func NewSimulator(model Model) *Simulator {
	memory := make([]byte, model.Capacity)
	// erased cells read as 0xFF
	for i := range memory {
		memory[i] = 0xFF
	}
	return &Simulator{model: model, memory: memory}
}

// Peek returns the stored byte without going through the bus.
func (s *Simulator) Peek(address uint32) byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.memory[address%s.model.Capacity]
}

func (s *Simulator) Status() byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.currentStatus()
}

func (s *Simulator) Select(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.selected {
		return fmt.Errorf("%w: chip already selected", bushal.ErrBusFault)
	}
	s.Selects++
	s.selected = true
	s.phase = phaseInstruction
	s.instruction = 0
	s.pending = s.pending[:0]
	return nil
}

func (s *Simulator) Transfer(ctx context.Context, w, r []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !s.selected {
		return fmt.Errorf("%w: transfer without chip select", bushal.ErrBusFault)
	}
	if r != nil && len(r) != len(w) {
		return fmt.Errorf("%w: rx %d bytes for tx %d bytes", bushal.ErrInvalidLength, len(r), len(w))
	}
	for i, b := range w {
		out := s.clock(b)
		if r != nil {
			r[i] = out
		}
	}
	return nil
}

func (s *Simulator) Deselect(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !s.selected {
		return nil
	}
	s.Deselects++
	s.selected = false
	if s.busy() {
		return nil
	}
	switch s.instruction {
	case cmdWREN:
		s.status |= StatusWEL
	case cmdWRDI:
		s.status &^= StatusWEL
	case cmdWrite:
		s.commit()
	case cmdWRSR:
		if s.status&StatusWEL != 0 && len(s.pending) > 0 {
			// only WPEN, BP1 and BP0 are writable
			s.status = s.status&^0x8C | s.pending[0]&0x8C
			s.startCycle()
		}
	}
	return nil
}

func (s *Simulator) clock(b byte) byte {
	switch s.phase {
	case phaseInstruction:
		s.instruction = b
		s.phase = phaseIgnore
		if s.busy() && b != cmdRDSR {
			// only RDSR is accepted during a write cycle
			s.instruction = 0
			return 0xFF
		}
		switch b {
		case cmdRead, cmdWrite:
			s.address = 0
			s.addrLeft = s.model.AddressBytes
			s.phase = phaseAddress
		case cmdRDSR, cmdWRSR:
			s.phase = phaseData
		}
		return 0xFF
	case phaseAddress:
		s.address = s.address<<8 | uint32(b)
		s.addrLeft--
		if s.addrLeft == 0 {
			s.address %= s.model.Capacity
			s.phase = phaseData
		}
		return 0xFF
	case phaseData:
		switch s.instruction {
		case cmdRead:
			out := s.memory[s.address]
			s.address = (s.address + 1) % s.model.Capacity
			return out
		case cmdRDSR:
			s.StatusReads++
			out := s.currentStatus()
			if s.busyLeft > 0 {
				s.busyLeft--
			}
			return out
		case cmdWrite, cmdWRSR:
			s.pending = append(s.pending, b)
		}
	}
	return 0xFF
}

func (s *Simulator) commit() {
	if s.status&StatusWEL == 0 || len(s.pending) == 0 {
		return
	}
	page := s.model.PageSize
	base := s.address - s.address%page
	offset := s.address % page
	for i, b := range s.pending {
		// writes past the page end wrap to the page start
		s.memory[base+(offset+uint32(i))%page] = b
	}
	s.startCycle()
}

func (s *Simulator) startCycle() {
	s.status &^= StatusWEL
	s.busyLeft = s.BusyReads
}

func (s *Simulator) busy() bool {
	return s.Stuck || s.busyLeft > 0
}

func (s *Simulator) currentStatus() byte {
	status := s.status
	if s.busy() {
		status |= StatusWIP
	}
	return status
}
