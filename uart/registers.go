package uart

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/host/v3/pmem"
)

// Register is the byte offset of a PL011 register from the block base.
type Register uintptr

const (
	RegDR   Register = 0x00
	RegRSR  Register = 0x04
	RegFR   Register = 0x18
	RegILPR Register = 0x20
	RegIBRD Register = 0x24
	RegFBRD Register = 0x28
	RegLCRH Register = 0x2C
	RegCR   Register = 0x30
)

func (r Register) String() string {
	switch r {
	case RegDR:
		return "DR"
	case RegRSR:
		return "RSR"
	case RegFR:
		return "FR"
	case RegILPR:
		return "ILPR"
	case RegIBRD:
		return "IBRD"
	case RegFBRD:
		return "FBRD"
	case RegLCRH:
		return "LCRH"
	case RegCR:
		return "CR"
	default:
		return fmt.Sprintf("reg(%#x)", uintptr(r))
	}
}

// Flag register bits.
const (
	FlagBusy = 1 << 3
	FlagRXFE = 1 << 4
	FlagTXFF = 1 << 5
)

// Control register bits.
const (
	CtlEnable   = 1 << 0
	CtlTXEnable = 1 << 8
	CtlRXEnable = 1 << 9
)

// RegisterFile gives access to the UART control, status and data registers.
type RegisterFile interface {
	Load(r Register) uint32
	Store(r Register, value uint32)
}

// PL011 is the register block layout; it is mapped directly onto device
// memory by MapPL011.
type PL011 struct {
	DR   uint32
	RSR  uint32
	_    [4]uint32
	FR   uint32
	_    uint32
	ILPR uint32
	IBRD uint32
	FBRD uint32
	LCRH uint32
	CR   uint32
}

var _ RegisterFile = &PL011{}

// MapPL011 maps the register block at physical address base (e.g. 0x4000C000).
// It requires access to /dev/mem.
func MapPL011(base uint64) (*PL011, error) {
	var regs *PL011
	if err := pmem.MapAsPOD(base, &regs); err != nil {
		return nil, fmt.Errorf("could not map uart registers at %#x: %w", base, err)
	}
	return regs, nil
}

func (p *PL011) field(r Register) *uint32 {
	switch r {
	case RegDR:
		return &p.DR
	case RegRSR:
		return &p.RSR
	case RegFR:
		return &p.FR
	case RegILPR:
		return &p.ILPR
	case RegIBRD:
		return &p.IBRD
	case RegFBRD:
		return &p.FBRD
	case RegLCRH:
		return &p.LCRH
	case RegCR:
		return &p.CR
	}
	return nil
}

func (p *PL011) Load(r Register) uint32 {
	f := p.field(r)
	if f == nil {
		return 0
	}
	return atomic.LoadUint32(f)
}

func (p *PL011) Store(r Register, value uint32) {
	if f := p.field(r); f != nil {
		atomic.StoreUint32(f, value)
	}
}
