package hart

import "github.com/rv64emu/rv64emu/pkg/trap"

// AMO funct5 values (bits [31:27] of the instruction word).
const (
	amoLR   = 0b00010
	amoSC   = 0b00011
	amoSWAP = 0b00001
	amoADD  = 0b00000
	amoXOR  = 0b00100
	amoAND  = 0b01100
	amoOR   = 0b01000
	amoMIN  = 0b10000
	amoMAX  = 0b10100
	amoMINU = 0b11000
	amoMAXU = 0b11100
)

// execAMO implements the AMO opcode: LR.W/D, SC.W/D, and the AMO*.W/D
// read-modify-write ops. funct3 selects width: 0b010 = 32-bit
// (sign-extended), 0b011 = 64-bit.
func (h *Hart) execAMO(i instruction) error {
	if i.funct3 != 0b010 && i.funct3 != 0b011 {
		return trap.ErrIllegalInstruction()
	}
	size := 4
	if i.funct3 == 0b011 {
		size = 8
	}

	addr := h.Reg.Read(i.rs1)
	if addr&uint64(size-1) != 0 {
		return trap.ErrLoadAddressMisaligned(addr)
	}

	funct5 := i.funct7 >> 2

	if funct5 == amoLR {
		phys, err := h.Translate(addr, AccessLoad)
		if err != nil {
			return err
		}
		raw, err := h.bus.Read(phys, size)
		if err != nil {
			return err
		}
		h.reservationValid = true
		h.reservationAddr = addr
		h.Reg.Write(i.rd, signExtendLoad(raw, size))
		return nil
	}

	if funct5 == amoSC {
		rs2 := h.Reg.Read(i.rs2)
		// Any SC invalidates the reservation, whether or not it succeeds.
		matched := h.reservationValid && h.reservationAddr == addr
		h.reservationValid = false
		if !matched {
			// 0 = success, 1 = failure.
			h.Reg.Write(i.rd, 1)
			return nil
		}
		phys, err := h.Translate(addr, AccessStore)
		if err != nil {
			return err
		}
		if err := h.bus.Write(phys, size, truncateStore(rs2, size)); err != nil {
			return err
		}
		h.Reg.Write(i.rd, 0)
		return nil
	}

	// Read-modify-write AMOs: load, rd = old value, store new value.
	phys, err := h.Translate(addr, AccessLoad)
	if err != nil {
		return err
	}
	oldRaw, err := h.bus.Read(phys, size)
	if err != nil {
		return err
	}
	old := signExtendLoad(oldRaw, size)
	rs2 := h.Reg.Read(i.rs2)
	if size == 4 {
		rs2 = signExtendLoad(uint64(uint32(rs2)), 4)
	}

	var newVal uint64
	switch funct5 {
	case amoSWAP:
		newVal = rs2
	case amoADD:
		newVal = old + rs2
	case amoXOR:
		newVal = old ^ rs2
	case amoAND:
		newVal = old & rs2
	case amoOR:
		newVal = old | rs2
	case amoMIN:
		if int64(rs2) < int64(old) {
			newVal = rs2
		} else {
			newVal = old
		}
	case amoMAX:
		if int64(rs2) > int64(old) {
			newVal = rs2
		} else {
			newVal = old
		}
	case amoMINU:
		if rs2 < old {
			newVal = rs2
		} else {
			newVal = old
		}
	case amoMAXU:
		if rs2 > old {
			newVal = rs2
		} else {
			newVal = old
		}
	default:
		return trap.ErrIllegalInstruction()
	}

	storePhys, err := h.Translate(addr, AccessStore)
	if err != nil {
		return err
	}
	if err := h.bus.Write(storePhys, size, truncateStore(newVal, size)); err != nil {
		return err
	}
	h.Reg.Write(i.rd, old)
	return nil
}

func signExtendLoad(raw uint64, size int) uint64 {
	if size == 4 {
		return uint64(signExtend(raw, 32))
	}
	return raw
}

func truncateStore(v uint64, size int) uint64 {
	if size == 4 {
		return uint64(uint32(v))
	}
	return v
}
