// Package bootrom constructs the tiny five-instruction stub this core's
// mask ROM is seeded with. The stub puts the hart ID in a0, points a1 at
// the start of the ROM (the dtb-pointer slot, offset 0), loads the entry
// address stored in the ROM right after the stub, and jumps to it. A
// firmware dynamic-info block in the OpenSBI FW_DYNAMIC layout follows
// that entry address.
package bootrom

import "encoding/binary"

// FwMagic identifies the OpenSBI dynamic-firmware-info block.
const FwMagic = 0x4942534f

// Privilege-mode encodings used by NextMode, duplicated here rather than
// imported from pkg/hart to keep this package free of a hart dependency.
const (
	NextModeSupervisor = uint64(1)
)

// Build returns the boot ROM image: a 5-instruction stub, a 4-byte pad,
// the 8-byte entry address (entryPC) it jumps through, and a 48-byte
// firmware-dynamic-info descriptor whose next_addr field is 0.
func Build(entryPC uint64) []byte {
	words := []uint32{
		0x00000297, // auipc t0, 0
		0x00028593, // addi  a1, t0, <dtb offset, patched to 0>
		0xf1401573, // csrrw a0, mhartid, x0
		0x0182b283, // ld    t0, 24(t0)
		0x00028067, // jalr  x0, 0(t0)
	}

	buf := make([]byte, 0, len(words)*4+4+8+48)
	for _, w := range words {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], w)
		buf = append(buf, b[:]...)
	}

	// The stub's ld reads the entry dword at offset 24; the five
	// instructions end at 20, so pad one word to line the data up with the
	// load.
	buf = append(buf, 0, 0, 0, 0)

	var entry [8]byte
	binary.LittleEndian.PutUint64(entry[:], entryPC)
	buf = append(buf, entry[:]...)

	info := make([]byte, 48)
	binary.LittleEndian.PutUint64(info[0:8], FwMagic)
	binary.LittleEndian.PutUint64(info[8:16], 2) // version
	binary.LittleEndian.PutUint64(info[16:24], 0) // next_addr: unused, entry comes from the stub's ld
	binary.LittleEndian.PutUint64(info[24:32], NextModeSupervisor)
	binary.LittleEndian.PutUint64(info[32:40], 0) // options
	binary.LittleEndian.PutUint64(info[40:48], 0) // boot_hart
	buf = append(buf, info...)

	return buf
}
