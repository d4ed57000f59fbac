package acpi

import (
	"bytes"
	"encoding/binary"
)

const headerSize = 36

type tableParams struct {
	Signature  [4]byte
	Revision   uint8
	OEMTableID [8]byte
	Body       []byte
}

// buildTable prepends a System Description Table header to params.Body and
// fills in the length and checksum.
func buildTable(params tableParams, oem OEMInfo) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(params.Body))

	header := make([]byte, headerSize)
	copy(header[:4], params.Signature[:])
	copy(header[10:16], oem.OEMID[:])

	tableID := params.OEMTableID
	if tableID == ([8]byte{}) {
		tableID = oem.OEMTableID
	}
	copy(header[16:24], tableID[:])

	binary.LittleEndian.PutUint32(header[24:28], oem.OEMRevision)
	binary.LittleEndian.PutUint32(header[28:32], binary.LittleEndian.Uint32(oem.CreatorID[:]))
	binary.LittleEndian.PutUint32(header[32:36], oem.CreatorRevision)
	header[8] = params.Revision

	buf.Write(header)
	buf.Write(params.Body)

	table := buf.Bytes()
	binary.LittleEndian.PutUint32(table[4:8], uint32(len(table)))
	table[9] = checksum(table)
	return table
}

func checksum(b []byte) byte {
	var sum uint8
	for _, v := range b {
		sum += v
	}
	return byte(0 - sum)
}

func sig(name string) [4]byte {
	var out [4]byte
	copy(out[:], []byte(name))
	return out
}

func tableID(name string) [8]byte {
	var out [8]byte
	copy(out[:], []byte(name))
	return out
}
