package hart

import "github.com/rv64emu/rv64emu/pkg/trap"

// AccessType distinguishes why an address is being translated, since each
// kind faults with a different exception and is checked against a different
// PTE permission bit.
type AccessType int

const (
	AccessInstruction AccessType = iota
	AccessLoad
	AccessStore
)

const (
	pteV = uint64(1) << 0
	pteR = uint64(1) << 1
	pteW = uint64(1) << 2
	pteX = uint64(1) << 3
	pteU = uint64(1) << 4
	pteG = uint64(1) << 5
	pteA = uint64(1) << 6
	pteD = uint64(1) << 7

	pteLevels       = 3
	pteBitsPerLevel = 9
	pteSize         = 8
	pageBits        = 12
	pageSize        = uint64(1) << pageBits
)

// Translate converts a virtual address va to a physical address for the
// given access type, walking the Sv39 three-level page table rooted at
// satp when translation is enabled, and updating the leaf PTE's A/D bits
// on a successful walk.
//
// Machine mode bypasses translation outright, as does any SATP.MODE other
// than Sv39 (bare / identity mapping). The MPRV/MPP-adjusted effective
// mode applies only to the privilege checks within the walk.
func (h *Hart) Translate(va uint64, access AccessType) (uint64, error) {
	if h.mode == ModeMachine {
		return va, nil
	}
	mode, _, ppn := h.csr.SATP()
	if mode != SatpModeSv39 {
		return va, nil
	}
	effectiveMode := h.mode
	if access != AccessInstruction && h.csr.MSTATUS()&mstatusMPRV != 0 {
		effectiveMode = (h.csr.MSTATUS() & mstatusMPPMask) >> mstatusMPPShift
	}

	mxr := h.csr.MSTATUS()&mstatusMXR != 0
	sum := h.csr.MSTATUS()&mstatusSUM != 0

	vpn := [pteLevels]uint64{
		(va >> 12) & 0x1FF,
		(va >> 21) & 0x1FF,
		(va >> 30) & 0x1FF,
	}

	pageFault := func() error {
		switch access {
		case AccessInstruction:
			return trap.ErrInstructionPageFault(va)
		case AccessStore:
			return trap.ErrStorePageFault(va)
		default:
			return trap.ErrLoadPageFault(va)
		}
	}

	// accessFault reports a bus-level I/O failure during the walk itself
	// (the PTE read or the A/D write-back), distinct from a page fault
	// raised by the PTE's own content.
	accessFault := func() error {
		switch access {
		case AccessInstruction:
			return trap.ErrInstructionAccessFault(va)
		case AccessStore:
			return trap.ErrStoreAccessFault(va)
		default:
			return trap.ErrLoadAccessFault(va)
		}
	}

	a := ppn * pageSize
	var pte uint64
	var ptePhys uint64
	level := pteLevels - 1
	for {
		ptePhys = a + vpn[level]*pteSize
		raw, err := h.bus.Read(ptePhys, 8)
		if err != nil {
			return 0, accessFault()
		}
		pte = raw

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, pageFault()
		}
		if pte&(pteR|pteX) != 0 {
			break // leaf PTE
		}
		level--
		if level < 0 {
			return 0, pageFault()
		}
		a = ((pte >> 10) & ((uint64(1) << 44) - 1)) * pageSize
	}

	// Permission checks.
	switch access {
	case AccessInstruction:
		if pte&pteX == 0 {
			return 0, pageFault()
		}
	case AccessLoad:
		if pte&pteR == 0 && !(mxr && pte&pteX != 0) {
			return 0, pageFault()
		}
	case AccessStore:
		if pte&pteW == 0 {
			return 0, pageFault()
		}
	}
	if pte&pteU != 0 {
		if effectiveMode == ModeUser {
			// ok
		} else if effectiveMode == ModeSupervisor && !(sum && access != AccessInstruction) {
			return 0, pageFault()
		}
	} else if effectiveMode == ModeUser {
		return 0, pageFault()
	}

	// Superpage alignment: a non-final-level leaf must have its lower PPN
	// fields zero.
	ppnFields := (pte >> 10) & ((uint64(1) << 44) - 1)
	for i := 0; i < level; i++ {
		shift := uint(pteBitsPerLevel * i)
		if (ppnFields>>shift)&0x1FF != 0 {
			return 0, pageFault()
		}
	}

	if pte&pteA == 0 || (access == AccessStore && pte&pteD == 0) {
		pte |= pteA
		if access == AccessStore {
			pte |= pteD
		}
		if err := h.bus.Write(ptePhys, 8, pte); err != nil {
			return 0, accessFault()
		}
	}

	pageOffset := va & (pageSize - 1)
	physPPN := ppnFields
	for i := 0; i < level; i++ {
		shift := uint(pteBitsPerLevel * i)
		physPPN &^= uint64(0x1FF) << shift
		physPPN |= vpn[i] << shift
	}
	return (physPPN << pageBits) | pageOffset, nil
}
