package acpi

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildHPETRoundTrip(t *testing.T) {
	b := BuildHPET(HPETConfig{Address: 0xFED00000, Number: 1})
	if len(b) != HPETTableSize {
		t.Fatalf("table length %d, want %d", len(b), HPETTableSize)
	}
	if sum(b) != 0 {
		t.Fatalf("checksum mismatch")
	}

	tbl, err := ParseHPET(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Address != 0xFED00000 || tbl.Number != 1 || tbl.MinimumTick != 0x80 {
		t.Fatalf("decoded %+v", tbl)
	}
	if tbl.VendorID() != 0x8086 || tbl.NumTimers() != 3 || tbl.RegisterBitWidth != 64 {
		t.Fatalf("block ID decoded wrong: %+v", tbl)
	}
	if tbl.OEMID != "TINYR" || tbl.OEMTableID != "TINYRHPT" || tbl.Revision != 1 {
		t.Fatalf("header decoded wrong: %+v", tbl)
	}
}

func TestParseHPETErrors(t *testing.T) {
	good := BuildHPET(HPETConfig{Address: 0xFED00000})

	if _, err := ParseHPET(good[:20]); !errors.Is(err, ErrShortTable) {
		t.Fatalf("short header: %v", err)
	}

	notHPET := append([]byte{}, good...)
	copy(notHPET, "APIC")
	if _, err := ParseHPET(notHPET); !errors.Is(err, ErrNotHPET) {
		t.Fatalf("wrong signature: %v", err)
	}

	if _, err := ParseHPET(good[:50]); !errors.Is(err, ErrShortTable) {
		t.Fatalf("truncated body: %v", err)
	}

	corrupt := append([]byte{}, good...)
	corrupt[44] ^= 0xff
	if _, err := ParseHPET(corrupt); !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("corrupt table: %v", err)
	}

	io := append([]byte{}, good...)
	io[40] = 1
	io[9] = 0
	io[9] = checksum(io)
	if _, err := ParseHPET(io); !errors.Is(err, ErrNotSystemSpace) {
		t.Fatalf("I/O space base: %v", err)
	}
}

func TestParseHPETIgnoresTrailingBytes(t *testing.T) {
	b := append(BuildHPET(HPETConfig{Address: 0x1000}), 0xAA, 0xBB)
	tbl, err := ParseHPET(b)
	if err != nil || tbl.Address != 0x1000 {
		t.Fatalf("parse with trailing bytes: %+v %v", tbl, err)
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != HPETTableSize {
		t.Fatalf("length field %d", got)
	}
}

func TestReadSystemTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HPET")
	if err := os.WriteFile(path, BuildHPET(HPETConfig{Address: 0xFED00000}), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	tbl, err := ReadSystemTable(path)
	if err != nil || tbl.Address != 0xFED00000 {
		t.Fatalf("read: %+v %v", tbl, err)
	}
	if _, err := ReadSystemTable(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing table: %v", err)
	}
}

func sum(b []byte) byte {
	var total byte
	for _, v := range b {
		total += v
	}
	return total
}
