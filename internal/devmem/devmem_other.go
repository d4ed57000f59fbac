//go:build !linux

package devmem

import "os"

func pageSize() int { return os.Getpagesize() }

func mapPhys(path string, start uint64, length int) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

func unmap(mem []byte) error { return ErrUnsupportedPlatform }
