package hart

// Minimal instruction encoders used only by tests, so scenario programs can
// be written as assembly-shaped Go calls instead of opaque hex literals.

func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeI(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeS(imm int32, rs2, rs1, funct3, opcode uint32) uint32 {
	u := uint32(imm)
	hi := (u >> 5) & 0x7F
	lo := u & 0x1F
	return (hi << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (lo << 7) | opcode
}

func encodeB(imm int32, rs2, rs1, funct3, opcode uint32) uint32 {
	u := uint32(imm)
	b12 := (u >> 12) & 0x1
	b11 := (u >> 11) & 0x1
	b10_5 := (u >> 5) & 0x3F
	b4_1 := (u >> 1) & 0xF
	return (b12 << 31) | (b10_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (b4_1 << 8) | (b11 << 7) | opcode
}

func addi(rd, rs1 uint32, imm int32) uint32 {
	return encodeI(imm, rs1, 0b000, rd, opOpImm)
}

func add(rd, rs1, rs2 uint32) uint32 {
	return encodeR(0b0000000, rs2, rs1, 0b000, rd, opOp)
}

func sub(rd, rs1, rs2 uint32) uint32 {
	return encodeR(0b0100000, rs2, rs1, 0b000, rd, opOp)
}

func sra(rd, rs1, rs2 uint32) uint32 {
	return encodeR(0b0100000, rs2, rs1, 0b101, rd, opOp)
}

func divu(rd, rs1, rs2 uint32) uint32 {
	return encodeR(0b0000001, rs2, rs1, 0b101, rd, opOp)
}

func sb(rs2, rs1 uint32, imm int32) uint32 {
	return encodeS(imm, rs2, rs1, 0b000, opStore)
}

func lb(rd, rs1 uint32, imm int32) uint32 {
	return encodeI(imm, rs1, 0b000, rd, opLoad)
}

func beq(rs1, rs2 uint32, imm int32) uint32 {
	return encodeB(imm, rs2, rs1, 0b000, opBranch)
}

func mret() uint32 {
	return encodeI(0x302, 0, 0b000, 0, opSystem)
}

func ecall() uint32 {
	return encodeI(0, 0, 0b000, 0, opSystem)
}

func wfi() uint32 {
	return encodeI(0x105, 0, 0b000, 0, opSystem)
}

func lrd(rd, rs1 uint32) uint32 {
	return encodeR(amoLR<<2, 0, rs1, 0b011, rd, opAMO)
}

func scd(rd, rs2, rs1 uint32) uint32 {
	return encodeR(amoSC<<2, rs2, rs1, 0b011, rd, opAMO)
}
