// Package device implements the memory-mapped peripherals on the system
// bus: DRAM, the mask ROM, the UART 16550A, the PLIC, and the test finisher.
package device

import "github.com/rv64emu/rv64emu/pkg/trap"

// MinDRAMSize is the smallest backing store the boot flow assumes.
const MinDRAMSize = 512 * 1024

// DRAM is a byte-addressable little-endian backing store.
type DRAM struct {
	mem []byte
}

// NewDRAM allocates a DRAM of the given size in bytes. Sizes below
// MinDRAMSize are rounded up.
func NewDRAM(size int) *DRAM {
	if size < MinDRAMSize {
		size = MinDRAMSize
	}
	return &DRAM{mem: make([]byte, size)}
}

// Size returns the DRAM's capacity in bytes.
func (d *DRAM) Size() int { return len(d.mem) }

// Load copies img into DRAM starting at byte offset off, truncating if img
// would overrun the backing store.
func (d *DRAM) Load(off int, img []byte) {
	copy(d.mem[off:], img)
}

// Read performs a size-typed (1/2/4/8 byte) little-endian load at the given
// offset within DRAM.
func (d *DRAM) Read(off uint64, size int) (uint64, error) {
	o := int(off)
	if o < 0 || o+size > len(d.mem) {
		return 0, trap.ErrLoadAccessFault(off)
	}
	return readLE(d.mem[o:o+size], size), nil
}

// Write performs a size-typed little-endian store at the given offset
// within DRAM.
func (d *DRAM) Write(off uint64, size int, value uint64) error {
	o := int(off)
	if o < 0 || o+size > len(d.mem) {
		return trap.ErrStoreAccessFault(off)
	}
	writeLE(d.mem[o:o+size], size, value)
	return nil
}

func readLE(b []byte, size int) uint64 {
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

func writeLE(b []byte, size int, value uint64) {
	for i := 0; i < size; i++ {
		b[i] = byte(value)
		value >>= 8
	}
}
