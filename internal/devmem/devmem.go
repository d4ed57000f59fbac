// Package devmem maps physical device memory into the process through a
// memory device such as /dev/mem.
package devmem

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/tinyrange/hpet/internal/mmio"
)

// DefaultPath is the Linux physical memory device.
const DefaultPath = "/dev/mem"

var ErrUnsupportedPlatform = errors.New("devmem: mapping physical memory is not supported on this platform")

// Mapping is a mapped physical range. It implements mmio.Region over the
// requested range only, even though whole pages are mapped.
type Mapping struct {
	*mmio.Pointer

	phys uint64
	mem  []byte
}

// Phys returns the physical address the Region starts at.
func (m *Mapping) Phys() uint64 { return m.phys }

// Map maps size bytes of physical memory starting at phys from the device at
// path. O_SYNC on the device makes the kernel map the range uncacheable.
func Map(path string, phys uint64, size uintptr) (*Mapping, error) {
	if size == 0 {
		return nil, fmt.Errorf("devmem: zero-length mapping at %#x", phys)
	}
	pageSize := uint64(pageSize())
	start := phys &^ (pageSize - 1)
	delta := phys - start
	length := (delta + uint64(size) + pageSize - 1) &^ (pageSize - 1)

	mem, err := mapPhys(path, start, int(length))
	if err != nil {
		return nil, err
	}
	base := unsafe.Add(unsafe.Pointer(unsafe.SliceData(mem)), delta)
	return &Mapping{
		Pointer: mmio.NewPointer(base, size),
		phys:    phys,
		mem:     mem,
	}, nil
}

// Close unmaps the range. The Region must not be used afterwards.
func (m *Mapping) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unmap(m.mem)
	m.mem = nil
	return err
}

var (
	_ mmio.Region = (*Mapping)(nil)
)
