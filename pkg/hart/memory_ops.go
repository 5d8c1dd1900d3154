package hart

import "github.com/rv64emu/rv64emu/pkg/trap"

// execLoad implements the LOAD opcode: funct3 selects width and signedness.
func (h *Hart) execLoad(i instruction) error {
	addr := h.Reg.Read(i.rs1) + uint64(i.iImm())

	var size int
	var signed bool
	switch i.funct3 {
	case 0b000:
		size, signed = 1, true // LB
	case 0b001:
		size, signed = 2, true // LH
	case 0b010:
		size, signed = 4, true // LW
	case 0b011:
		size, signed = 8, false // LD
	case 0b100:
		size, signed = 1, false // LBU
	case 0b101:
		size, signed = 2, false // LHU
	case 0b110:
		size, signed = 4, false // LWU
	default:
		return trap.ErrIllegalInstruction()
	}

	phys, err := h.Translate(addr, AccessLoad)
	if err != nil {
		return err
	}
	raw, err := h.bus.Read(phys, size)
	if err != nil {
		return err
	}

	val := raw
	if signed {
		val = uint64(signExtend(raw, uint(size*8)))
	}
	h.Reg.Write(i.rd, val)
	return nil
}

// execStore implements the STORE opcode: funct3 selects width.
func (h *Hart) execStore(i instruction) error {
	addr := h.Reg.Read(i.rs1) + uint64(i.sImm())
	val := h.Reg.Read(i.rs2)

	var size int
	switch i.funct3 {
	case 0b000:
		size = 1 // SB
	case 0b001:
		size = 2 // SH
	case 0b010:
		size = 4 // SW
	case 0b011:
		size = 8 // SD
	default:
		return trap.ErrIllegalInstruction()
	}

	phys, err := h.Translate(addr, AccessStore)
	if err != nil {
		return err
	}
	return h.bus.Write(phys, size, val)
}
