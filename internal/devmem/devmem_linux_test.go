package devmem

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// A regular file stands in for /dev/mem: the mapping logic is the same.
func TestMapFile(t *testing.T) {
	page := pageSize()
	data := make([]byte, 2*page)
	binary.LittleEndian.PutUint64(data[page+8:], 0x0098_9680_8086_A201)

	path := filepath.Join(t.TempDir(), "mem")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write backing file: %v", err)
	}

	m, err := Map(path, uint64(page+8), 16)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	defer m.Close()

	if m.Phys() != uint64(page+8) || m.Size() != 16 {
		t.Fatalf("mapping at %#x size %d", m.Phys(), m.Size())
	}
	if got := m.Load64(0); got != 0x0098_9680_8086_A201 {
		t.Fatalf("load = %#x", got)
	}
	m.Store64(8, 0x1122_3344_5566_7788)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if v := binary.LittleEndian.Uint64(got[page+16:]); v != 0x1122_3344_5566_7788 {
		t.Fatalf("store not visible in file: %#x", v)
	}
}

func TestMapErrors(t *testing.T) {
	if _, err := Map(filepath.Join(t.TempDir(), "missing"), 0, 8); err == nil {
		t.Fatalf("mapping a missing device succeeded")
	}
	if _, err := Map(DefaultPath, 0, 0); err == nil {
		t.Fatalf("zero-length mapping succeeded")
	}
}
