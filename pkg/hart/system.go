package hart

import "github.com/rv64emu/rv64emu/pkg/trap"

// execSystem implements the SYSTEM opcode: the privileged ECALL/EBREAK/
// SRET/MRET/WFI family (funct3 == 0) and the Zicsr instructions
// (funct3 != 0).
func (h *Hart) execSystem(i instruction, pc uint64) error {
	if i.funct3 != 0 {
		return h.execCSR(i)
	}

	switch i.csrAddr() {
	case 0x000: // ECALL
		return trap.ErrEnvironmentCall(h.mode)
	case 0x001: // EBREAK
		return trap.ErrBreakpoint(pc)
	case 0x102: // SRET
		return h.sret()
	case 0x302: // MRET
		return h.mret()
	case 0x105: // WFI
		if h.mode != ModeMachine && h.csr.MSTATUS()&mstatusTW != 0 {
			return trap.ErrIllegalInstruction()
		}
		h.Idle = true
		return nil
	default:
		// SFENCE.VMA (funct7 == 0001001) is a no-op: this core's MMU
		// consults the page table fresh on every translation. TVM traps
		// it when executed in S-mode.
		if i.funct7 == 0b0001001 {
			if h.mode == ModeSupervisor && h.csr.MSTATUS()&mstatusTVM != 0 {
				return trap.ErrIllegalInstruction()
			}
			return nil
		}
		return trap.ErrIllegalInstruction()
	}
}

// execCSR implements the Zicsr instructions: CSRRW/CSRRS/CSRRC and their
// rs1-as-5-bit-immediate variants. A CSRRS/CSRRC with rs1==0 (or the
// immediate-form equivalent) reads without writing, so read-only CSRs may
// still be used as a pure read.
func (h *Hart) execCSR(i instruction) error {
	addr := i.csrAddr()
	if addr == CsrSATP && h.mode == ModeSupervisor && h.csr.MSTATUS()&mstatusTVM != 0 {
		return trap.ErrIllegalInstruction()
	}
	old := h.csr.Read(addr)

	var operand uint64
	if i.funct3&0b100 != 0 {
		operand = uint64(i.rs1) // *I variants encode a 5-bit immediate in rs1
	} else {
		operand = h.Reg.Read(i.rs1)
	}

	op := i.funct3 & 0b011
	if op == 0 {
		return trap.ErrIllegalInstruction()
	}
	writes := op == 0b01 || operand != 0

	if writes {
		var newVal uint64
		switch op {
		case 0b01: // W
			newVal = operand
		case 0b10: // S
			newVal = old | operand
		case 0b11: // C
			newVal = old &^ operand
		}
		h.csr.Write(addr, newVal)
	}

	h.Reg.Write(i.rd, old)
	return nil
}
