package device

import "github.com/rv64emu/rv64emu/pkg/trap"

// ROM is a read-only byte-addressable backing store. Writes always fault.
type ROM struct {
	mem []byte
}

// NewROM wraps img as a read-only device. img is not copied.
func NewROM(img []byte) *ROM {
	return &ROM{mem: img}
}

// Read performs a size-typed little-endian load at the given offset. The
// ROM window is wider than its programmed content; reads past the image
// fault rather than returning phantom zeroes.
func (r *ROM) Read(off uint64, size int) (uint64, error) {
	o := int(off)
	if o < 0 || o+size > len(r.mem) {
		return 0, trap.ErrLoadAccessFault(off)
	}
	return readLE(r.mem[o:o+size], size), nil
}

// Write always fails: the mask ROM is read-only.
func (r *ROM) Write(off uint64, size int, value uint64) error {
	return trap.ErrStoreAccessFault(off)
}
