package hart

import "github.com/rv64emu/rv64emu/pkg/trap"

// execLUI implements LUI: rd = sign-extend(imm[31:12] << 12).
func (h *Hart) execLUI(i instruction) {
	h.Reg.Write(i.rd, uint64(i.uImm()))
}

// execAUIPC implements AUIPC: rd = pc + sign-extend(imm[31:12] << 12).
func (h *Hart) execAUIPC(i instruction, pc uint64) {
	h.Reg.Write(i.rd, pc+uint64(i.uImm()))
}

// execJAL implements JAL: rd = pc+4, pc = pc + imm. The target must be
// 4-byte aligned since this core has no C extension.
func (h *Hart) execJAL(i instruction, pc uint64) error {
	target := pc + uint64(i.jImm())
	if target&0x3 != 0 {
		return trap.ErrInstructionAddressMisaligned(target)
	}
	h.Reg.Write(i.rd, pc+4)
	h.pc = target
	return nil
}

// execJALR implements JALR: rd = pc+4, pc = (rs1 + imm) & ~1.
func (h *Hart) execJALR(i instruction, pc uint64) error {
	target := (h.Reg.Read(i.rs1) + uint64(i.iImm())) &^ 1
	if target&0x3 != 0 {
		return trap.ErrInstructionAddressMisaligned(target)
	}
	h.Reg.Write(i.rd, pc+4)
	h.pc = target
	return nil
}

// execBranch implements the BRANCH opcode's six conditional-branch forms.
// The target is computed from pc, the instruction's own address, matching
// the B-type immediate's definition as an offset from the branch
// instruction itself.
func (h *Hart) execBranch(i instruction, pc uint64) error {
	rs1 := h.Reg.Read(i.rs1)
	rs2 := h.Reg.Read(i.rs2)

	var taken bool
	switch i.funct3 {
	case 0b000: // BEQ
		taken = rs1 == rs2
	case 0b001: // BNE
		taken = rs1 != rs2
	case 0b100: // BLT
		taken = int64(rs1) < int64(rs2)
	case 0b101: // BGE
		taken = int64(rs1) >= int64(rs2)
	case 0b110: // BLTU
		taken = rs1 < rs2
	case 0b111: // BGEU
		taken = rs1 >= rs2
	default:
		return trap.ErrIllegalInstruction()
	}

	if !taken {
		h.pc = pc + 4
		return nil
	}
	target := pc + uint64(i.bImm())
	if target&0x3 != 0 {
		return trap.ErrInstructionAddressMisaligned(target)
	}
	h.pc = target
	return nil
}
