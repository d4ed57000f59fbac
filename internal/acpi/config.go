package acpi

// HPETConfig describes an HPET ACPI table.
type HPETConfig struct {
	// Address is the physical base of the register block.
	Address uint64
	// EventTimerBlockID mirrors the low 32 bits of the capabilities
	// register. Zero selects an Intel, 3-timer, 64-bit, legacy capable
	// block.
	EventTimerBlockID uint32
	// Number is the HPET sequence number.
	Number uint8
	// MinimumTick is the smallest periodic tick, in counter ticks, the
	// block supports without losing interrupts.
	MinimumTick    uint16
	PageProtection uint8

	OEM OEMInfo
}

// OEMInfo mirrors the ACPI table header OEM fields.
type OEMInfo struct {
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       [4]byte
	CreatorRevision uint32
}

// DefaultOEMInfo returns the table header metadata used when none is set.
func DefaultOEMInfo() OEMInfo {
	return OEMInfo{
		OEMID:           [6]byte{'T', 'I', 'N', 'Y', 'R', ' '},
		OEMTableID:      [8]byte{'T', 'I', 'N', 'Y', 'R', 'D', 'E', 'F'},
		OEMRevision:     1,
		CreatorID:       [4]byte{'T', 'R', 'Y', 'N'},
		CreatorRevision: 1,
	}
}

func (c *HPETConfig) normalize() {
	if c.EventTimerBlockID == 0 {
		c.EventTimerBlockID = 0x8086A201
	}
	if c.MinimumTick == 0 {
		c.MinimumTick = 0x0080
	}
	if c.OEM == (OEMInfo{}) {
		c.OEM = DefaultOEMInfo()
	}
}
