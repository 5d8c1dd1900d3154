package hart

import "github.com/rv64emu/rv64emu/pkg/trap"

// execute decodes and runs a single instruction word. It is responsible
// for advancing h.pc: executors that branch/jump set it directly, every
// other opcode falls through to pc+4 at the end.
func (h *Hart) execute(raw uint32) error {
	pc := h.pc
	i := decode(raw)

	switch i.opcode {
	case opLoad:
		if err := h.execLoad(i); err != nil {
			return err
		}
	case opMiscMem:
		// FENCE and FENCE.I: no-ops. This core executes instructions
		// in program order against a single bus with no caching.
	case opOpImm:
		if err := h.execOpImm(i); err != nil {
			return err
		}
	case opAUIPC:
		h.execAUIPC(i, pc)
	case opOpImm32:
		if err := h.execOpImm32(i); err != nil {
			return err
		}
	case opStore:
		if err := h.execStore(i); err != nil {
			return err
		}
	case opAMO:
		if err := h.execAMO(i); err != nil {
			return err
		}
	case opOp:
		if err := h.execOp(i); err != nil {
			return err
		}
	case opLUI:
		h.execLUI(i)
	case opOp32:
		if err := h.execOp32(i); err != nil {
			return err
		}
	case opBranch:
		return h.execBranch(i, pc) // sets h.pc itself, both taken and not
	case opJALR:
		return h.execJALR(i, pc) // sets h.pc itself
	case opJAL:
		return h.execJAL(i, pc) // sets h.pc itself
	case opSystem:
		isXRET := i.funct3 == 0 && (i.csrAddr() == 0x102 || i.csrAddr() == 0x302)
		if err := h.execSystem(i, pc); err != nil {
			return err
		}
		if isXRET {
			return nil // SRET/MRET already set h.pc
		}
	default:
		return trap.ErrIllegalInstruction()
	}

	h.pc = pc + 4
	return nil
}
