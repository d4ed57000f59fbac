// Package mmio provides volatile access to memory-mapped device registers.
//
// Every access is a single 64-bit load or store performed with sync/atomic,
// which the compiler never elides, merges with neighbouring accesses or
// moves across other atomic operations. Device memory must be mapped
// uncacheable by whoever hands it to this package.
package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Region is a window of device registers addressed by byte offset.
//
// Implementations must perform exactly one device access per call.
type Region interface {
	Load64(off uintptr) uint64
	Store64(off uintptr, val uint64)

	// Size returns the length of the window in bytes.
	Size() uintptr
}

// U64 is a 64-bit device register.
type U64 struct {
	r uint64
}

//go:nosplit
func (r *U64) Load() uint64 { return atomic.LoadUint64(&r.r) }

//go:nosplit
func (r *U64) Store(val uint64) { atomic.StoreUint64(&r.r, val) }

// Pointer is a Region over memory that has already been mapped into the
// address space, typically with uncacheable attributes.
type Pointer struct {
	base unsafe.Pointer
	size uintptr
}

// NewPointer returns a Region covering size bytes starting at base. The
// caller guarantees the mapping stays valid for the lifetime of the Region.
func NewPointer(base unsafe.Pointer, size uintptr) *Pointer {
	return &Pointer{base: base, size: size}
}

func (p *Pointer) reg(off uintptr) *U64 {
	if off%8 != 0 || off+8 > p.size {
		panic(fmt.Sprintf("mmio: register offset %#x outside window of %#x bytes", off, p.size))
	}
	return (*U64)(unsafe.Add(p.base, off))
}

func (p *Pointer) Load64(off uintptr) uint64 { return p.reg(off).Load() }

func (p *Pointer) Store64(off uintptr, val uint64) { p.reg(off).Store(val) }

func (p *Pointer) Size() uintptr { return p.size }

var (
	_ Region = (*Pointer)(nil)
)
