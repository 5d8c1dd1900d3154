package hart

import (
	"github.com/rv64emu/rv64emu/pkg/trap"
	"go.uber.org/zap"
)

// pendingInterrupt selects the highest-priority interrupt that is both
// pending (MIP) and enabled (MIE), and deliverable to the current privilege
// mode under MSTATUS.xIE and delegation.
func (h *Hart) pendingInterrupt() (uint64, bool) {
	mip := h.csr.Read(CsrMIP)
	mie := h.csr.Read(CsrMIE)
	mideleg := h.csr.Read(CsrMIDELEG)
	pending := mip & mie
	if pending == 0 {
		return 0, false
	}

	mstatus := h.csr.MSTATUS()
	globalM := mstatus&mstatusMIE != 0
	globalS := mstatus&mstatusSIE != 0

	for _, cause := range trap.InterruptPriority {
		bit := uint64(1) << cause
		if pending&bit == 0 {
			continue
		}
		delegatedToS := mideleg&bit != 0
		if delegatedToS {
			// An interrupt delegated to S is never taken while already in
			// M (M is always at least as privileged), requires SIE in S
			// mode, and is always taken from U mode.
			if h.mode == ModeMachine || (h.mode == ModeSupervisor && !globalS) {
				continue
			}
		} else if h.mode == ModeMachine && !globalM {
			continue
		}
		return cause, true
	}
	return 0, false
}

func (h *Hart) deliverInterrupt(cause uint64) {
	h.log.Debug("interrupt", zap.Uint64("cause", cause), zap.Uint64("pc", h.pc))
	h.takeTrap(cause|trap.InterruptMSB, 0, h.pc)
}

func (h *Hart) deliverException(exc *trap.Exception, faultPC uint64) {
	h.log.Debug("exception", zap.Uint64("cause", exc.Cause), zap.Uint64("tval", exc.Tval), zap.Uint64("pc", faultPC))
	h.takeTrap(exc.Cause, exc.Tval, faultPC)
}

// takeTrap implements the shared exception/interrupt delivery sequence:
// pick the target privilege mode via delegation, save xEPC/xCAUSE/xTVAL,
// update xPP/xPIE/xIE, and vector to xTVEC.
func (h *Hart) takeTrap(cause, tval, pc uint64) {
	isInterrupt := cause&trap.InterruptMSB != 0
	code := cause &^ trap.InterruptMSB

	deleg := h.csr.Read(CsrMEDELEG)
	if isInterrupt {
		deleg = h.csr.Read(CsrMIDELEG)
	}
	delegated := h.mode != ModeMachine && deleg&(uint64(1)<<code) != 0

	if delegated {
		h.csr.WriteRaw(CsrSEPC, pc&^1)
		h.csr.WriteRaw(CsrSCAUSE, cause)
		h.csr.WriteRaw(CsrSTVAL, tval)

		mstatus := h.csr.MSTATUS()
		sie := mstatus&mstatusSIE != 0
		mstatus &^= mstatusSPIE
		if sie {
			mstatus |= mstatusSPIE
		}
		mstatus &^= mstatusSIE
		mstatus &^= mstatusSPP
		if h.mode == ModeSupervisor {
			mstatus |= mstatusSPP
		}
		h.csr.SetMSTATUS(mstatus)

		h.mode = ModeSupervisor
		h.pc = h.vector(h.csr.Read(CsrSTVEC), code, isInterrupt)
		return
	}

	// Undelegated traps are always taken in Machine mode.
	h.csr.WriteRaw(CsrMEPC, pc&^1)
	h.csr.WriteRaw(CsrMCAUSE, cause)
	h.csr.WriteRaw(CsrMTVAL, tval)

	mstatus := h.csr.MSTATUS()
	mie := mstatus&mstatusMIE != 0
	mstatus &^= mstatusMPIE
	if mie {
		mstatus |= mstatusMPIE
	}
	mstatus &^= mstatusMIE
	mstatus &^= mstatusMPPMask
	mstatus |= (h.mode << mstatusMPPShift) & mstatusMPPMask
	h.csr.SetMSTATUS(mstatus)

	h.mode = ModeMachine
	h.pc = h.vector(h.csr.Read(CsrMTVEC), code, isInterrupt)
}

// vector applies the xTVEC MODE field: 0 = direct (always base), 1 =
// vectored (base + 4*cause, interrupts only).
func (h *Hart) vector(tvec, code uint64, isInterrupt bool) uint64 {
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && isInterrupt {
		return base + 4*code
	}
	return base
}

// MRET returns from a machine-mode trap handler: restores MIE from MPIE,
// sets MPIE, restores the privilege mode from MPP, and resets MPP to U.
func (h *Hart) mret() error {
	if h.mode != ModeMachine {
		return trap.ErrIllegalInstruction()
	}
	mstatus := h.csr.MSTATUS()
	mpie := mstatus&mstatusMPIE != 0
	mpp := (mstatus & mstatusMPPMask) >> mstatusMPPShift

	mstatus &^= mstatusMIE
	if mpie {
		mstatus |= mstatusMIE
	}
	mstatus |= mstatusMPIE
	mstatus &^= mstatusMPPMask
	mstatus |= ModeUser << mstatusMPPShift
	if mpp != ModeMachine {
		mstatus &^= mstatusMPRV
	}
	h.csr.SetMSTATUS(mstatus)

	h.mode = mpp
	h.pc = h.csr.Read(CsrMEPC)
	return nil
}

// SRET returns from a supervisor-mode trap handler, analogous to mret but
// restricted to the {U,S} subset of privilege and the SIE/SPIE/SPP fields.
func (h *Hart) sret() error {
	if h.mode == ModeUser {
		return trap.ErrIllegalInstruction()
	}
	if h.mode == ModeSupervisor && h.csr.MSTATUS()&mstatusTSR != 0 {
		return trap.ErrIllegalInstruction()
	}
	mstatus := h.csr.MSTATUS()
	spie := mstatus&mstatusSPIE != 0
	spp := uint64(ModeUser)
	if mstatus&mstatusSPP != 0 {
		spp = ModeSupervisor
	}

	mstatus &^= mstatusSIE
	if spie {
		mstatus |= mstatusSIE
	}
	mstatus |= mstatusSPIE
	mstatus &^= mstatusSPP
	// SRET's restored mode is always U or S, never Machine, so MPRV
	// unconditionally clears.
	mstatus &^= mstatusMPRV
	h.csr.SetMSTATUS(mstatus)

	h.mode = spp
	h.pc = h.csr.Read(CsrSEPC)
	return nil
}
