// Package acpi builds and parses the ACPI HPET description table, which is
// how firmware reports where the HPET register block lives.
package acpi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// SystemTablePath is where Linux exposes the firmware's HPET table.
const SystemTablePath = "/sys/firmware/acpi/tables/HPET"

// HPETTableSize is the length of a revision 1 HPET table.
const HPETTableSize = 56

const addressSpaceSystemMemory = 0

var (
	ErrNotHPET        = errors.New("acpi: not an HPET table")
	ErrShortTable     = errors.New("acpi: table truncated")
	ErrBadChecksum    = errors.New("acpi: table checksum mismatch")
	ErrNotSystemSpace = errors.New("acpi: HPET base is not in system memory")
)

// Table is a decoded HPET description table.
type Table struct {
	Revision          uint8
	OEMID             string
	OEMTableID        string
	EventTimerBlockID uint32
	AddressSpace      uint8
	RegisterBitWidth  uint8
	Address           uint64
	Number            uint8
	MinimumTick       uint16
	PageProtection    uint8
}

// VendorID is the PCI vendor from the event timer block ID.
func (t Table) VendorID() uint16 { return uint16(t.EventTimerBlockID >> 16) }

// NumTimers is the comparator count from the event timer block ID.
func (t Table) NumTimers() int { return int(t.EventTimerBlockID>>8&0x1f) + 1 }

// BuildHPET returns a complete HPET table, header and checksum included.
func BuildHPET(cfg HPETConfig) []byte {
	cfg.normalize()
	return buildTable(tableParams{
		Signature:  sig("HPET"),
		Revision:   1,
		OEMTableID: tableID("TINYRHPT"),
		Body:       buildHPETBody(&cfg),
	}, cfg.OEM)
}

func buildHPETBody(cfg *HPETConfig) []byte {
	buf := &bytes.Buffer{}

	binary.Write(buf, binary.LittleEndian, cfg.EventTimerBlockID)
	buf.WriteByte(addressSpaceSystemMemory)
	buf.WriteByte(64) // register bit width
	buf.WriteByte(0)  // register bit offset
	buf.WriteByte(0)  // access size
	binary.Write(buf, binary.LittleEndian, cfg.Address)
	buf.WriteByte(cfg.Number)
	binary.Write(buf, binary.LittleEndian, cfg.MinimumTick)
	buf.WriteByte(cfg.PageProtection)

	return buf.Bytes()
}

// ParseHPET decodes and validates an HPET table.
func ParseHPET(b []byte) (Table, error) {
	if len(b) < headerSize {
		return Table{}, ErrShortTable
	}
	if string(b[:4]) != "HPET" {
		return Table{}, fmt.Errorf("%w: signature %q", ErrNotHPET, b[:4])
	}
	length := int(binary.LittleEndian.Uint32(b[4:8]))
	if length < HPETTableSize || length > len(b) {
		return Table{}, fmt.Errorf("%w: length %d, have %d bytes", ErrShortTable, length, len(b))
	}
	b = b[:length]
	if checksum(b) != 0 {
		return Table{}, ErrBadChecksum
	}

	t := Table{
		Revision:          b[8],
		OEMID:             string(bytes.TrimRight(b[10:16], " \x00")),
		OEMTableID:        string(bytes.TrimRight(b[16:24], " \x00")),
		EventTimerBlockID: binary.LittleEndian.Uint32(b[36:40]),
		AddressSpace:      b[40],
		RegisterBitWidth:  b[41],
		Address:           binary.LittleEndian.Uint64(b[44:52]),
		Number:            b[52],
		MinimumTick:       binary.LittleEndian.Uint16(b[53:55]),
		PageProtection:    b[55],
	}
	if t.AddressSpace != addressSpaceSystemMemory {
		return t, fmt.Errorf("%w: address space %d", ErrNotSystemSpace, t.AddressSpace)
	}
	return t, nil
}

// ReadSystemTable reads and parses the HPET table at path, usually
// SystemTablePath.
func ReadSystemTable(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("acpi: read HPET table: %w", err)
	}
	return ParseHPET(b)
}
