// Package regs describes the HPET memory-mapped register block: where each
// register lives and how its bits are laid out.
//
// Layout follows section 2.3 of the IA-PC HPET 1.0a document.
package regs

import "unsafe"

// Byte offsets of the general registers.
const (
	OffsetCapabilities    = 0x000 // RO
	OffsetConfig          = 0x010 // RW
	OffsetInterruptStatus = 0x020 // RW, write 1 to clear
	OffsetMainCounter     = 0x0F0 // RW while halted
	OffsetTimers          = 0x100
)

// Byte offsets within one timer block.
const (
	TimerOffsetConfig     = 0x00 // mixed RO/RW
	TimerOffsetComparator = 0x08 // RW
	TimerOffsetFSBRoute   = 0x10 // RW

	TimerStride = 0x20
)

const (
	// MaxTimers is the number of timer blocks the layout reserves room for.
	// Only NUM_TIM_CAP+1 of them are backed by hardware.
	MaxTimers = 32

	// BlockSize is the number of bytes a mapping must cover.
	BlockSize = OffsetTimers + MaxTimers*TimerStride
)

// Reserved8 is an 8-byte hole in the register map. It must never be read.
type Reserved8 [0x08]byte

// Reserved028 is the hole between the interrupt status register and the
// main counter.
type Reserved028 [0xC8]byte

// TimerBlock is the register block of a single comparator.
type TimerBlock struct {
	Config     TimerConfig
	Comparator uint64
	FSBRoute   FSBRoute
	_          Reserved8
}

// Block is the whole HPET register map.
//
// There is room for 32 timers, but there are not always 32 timers
// physically present. Check the timer count before touching a timer block.
type Block struct {
	Capabilities    Capabilities
	_               Reserved8
	Config          GeneralConfig
	_               Reserved8
	InterruptStatus InterruptStatus
	_               Reserved028
	MainCounter     uint64
	_               Reserved8
	Timers          [MaxTimers]TimerBlock
}

// TimerOffset returns the byte offset of register reg (one of the
// TimerOffset constants) of timer index.
func TimerOffset(index int, reg uintptr) uintptr {
	return OffsetTimers + uintptr(index)*TimerStride + reg
}

// The constants above are the wire contract; these fail to compile if the
// struct ever drifts from them.
var (
	_ [BlockSize - unsafe.Sizeof(Block{})]struct{}
	_ [unsafe.Sizeof(Block{}) - BlockSize]struct{}
	_ [TimerStride - unsafe.Sizeof(TimerBlock{})]struct{}
	_ [unsafe.Sizeof(TimerBlock{}) - TimerStride]struct{}

	_ [unsafe.Offsetof(Block{}.Config) - OffsetConfig]struct{}
	_ [OffsetConfig - unsafe.Offsetof(Block{}.Config)]struct{}
	_ [unsafe.Offsetof(Block{}.InterruptStatus) - OffsetInterruptStatus]struct{}
	_ [OffsetInterruptStatus - unsafe.Offsetof(Block{}.InterruptStatus)]struct{}
	_ [unsafe.Offsetof(Block{}.MainCounter) - OffsetMainCounter]struct{}
	_ [OffsetMainCounter - unsafe.Offsetof(Block{}.MainCounter)]struct{}
	_ [unsafe.Offsetof(Block{}.Timers) - OffsetTimers]struct{}
	_ [OffsetTimers - unsafe.Offsetof(Block{}.Timers)]struct{}

	_ [unsafe.Offsetof(TimerBlock{}.Comparator) - TimerOffsetComparator]struct{}
	_ [TimerOffsetComparator - unsafe.Offsetof(TimerBlock{}.Comparator)]struct{}
	_ [unsafe.Offsetof(TimerBlock{}.FSBRoute) - TimerOffsetFSBRoute]struct{}
	_ [TimerOffsetFSBRoute - unsafe.Offsetof(TimerBlock{}.FSBRoute)]struct{}
)
