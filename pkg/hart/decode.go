package hart

// Opcode values (bits [6:0] of the instruction word).
const (
	opLoad    = 0b0000011
	opMiscMem = 0b0001111
	opOpImm   = 0b0010011
	opAUIPC   = 0b0010111
	opOpImm32 = 0b0011011
	opStore   = 0b0100011
	opAMO     = 0b0101111
	opOp      = 0b0110011
	opLUI     = 0b0110111
	opOp32    = 0b0111011
	opBranch  = 0b1100011
	opJALR    = 0b1100111
	opJAL     = 0b1101111
	opSystem  = 0b1110011
)

// instruction is a decoded instruction word's field view. Not every field is
// meaningful for a given opcode; each executor reads only the fields its
// format defines.
type instruction struct {
	raw uint32

	opcode uint32
	rd     uint32
	funct3 uint32
	rs1    uint32
	rs2    uint32
	funct7 uint32
}

func decode(raw uint32) instruction {
	return instruction{
		raw:    raw,
		opcode: raw & 0x7F,
		rd:     (raw >> 7) & 0x1F,
		funct3: (raw >> 12) & 0x7,
		rs1:    (raw >> 15) & 0x1F,
		rs2:    (raw >> 20) & 0x1F,
		funct7: (raw >> 25) & 0x7F,
	}
}

// iImm sign-extends the I-type immediate, bits [31:20].
func (i instruction) iImm() int64 {
	return int64(int32(i.raw)) >> 20
}

// sImm sign-extends the S-type immediate: imm[11:5]=raw[31:25], imm[4:0]=raw[11:7].
func (i instruction) sImm() int64 {
	hi := (i.raw >> 25) & 0x7F
	lo := (i.raw >> 7) & 0x1F
	v := (hi << 5) | lo
	return signExtend(uint64(v), 12)
}

// bImm sign-extends the B-type immediate (branch target offset).
func (i instruction) bImm() int64 {
	raw := i.raw
	b12 := (raw >> 31) & 0x1
	b11 := (raw >> 7) & 0x1
	b10_5 := (raw >> 25) & 0x3F
	b4_1 := (raw >> 8) & 0xF
	v := (b12 << 12) | (b11 << 11) | (b10_5 << 5) | (b4_1 << 1)
	return signExtend(uint64(v), 13)
}

// uImm returns the U-type immediate (already shifted into bits [31:12]).
func (i instruction) uImm() int64 {
	return int64(int32(i.raw & 0xFFFFF000))
}

// jImm sign-extends the J-type immediate (JAL target offset).
func (i instruction) jImm() int64 {
	raw := i.raw
	b20 := (raw >> 31) & 0x1
	b19_12 := (raw >> 12) & 0xFF
	b11 := (raw >> 20) & 0x1
	b10_1 := (raw >> 21) & 0x3FF
	v := (b20 << 20) | (b19_12 << 12) | (b11 << 11) | (b10_1 << 1)
	return signExtend(uint64(v), 21)
}

// shamt6 returns the 6-bit shift amount used by RV64's shift-immediate
// encodings (bits [25:20]).
func (i instruction) shamt6() uint32 {
	return (i.raw >> 20) & 0x3F
}

// shamt5 returns the 5-bit shift amount used by the *W shift-immediate
// encodings (bits [24:20]).
func (i instruction) shamt5() uint32 {
	return (i.raw >> 20) & 0x1F
}

// csrAddr returns the 12-bit CSR address encoded in bits [31:20].
func (i instruction) csrAddr() uint32 {
	return i.raw >> 20
}

func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}
