package devmem

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func pageSize() int { return unix.Getpagesize() }

func mapPhys(path string, start uint64, length int) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: open %s: %w", path, err)
	}
	// The mapping keeps its own reference to the device.
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), int64(start), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("devmem: mmap %#x+%#x: %w", start, length, err)
	}
	return mem, nil
}

func unmap(mem []byte) error {
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("devmem: munmap: %w", err)
	}
	return nil
}
