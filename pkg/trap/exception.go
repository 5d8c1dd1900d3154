// Package trap defines the exception and interrupt taxonomy shared by the
// bus, devices, MMU, and the hart's trap-delivery state machine. It is kept
// separate from package hart so that the bus and devices (which raise
// exceptions) do not need to import the hart core (which delivers them).
package trap

import "fmt"

// Cause codes for synchronous exceptions, per the privileged architecture's
// mcause/scause encoding (bit 63 clear).
const (
	CauseInstructionAddressMisaligned = uint64(0)
	CauseInstructionAccessFault       = uint64(1)
	CauseIllegalInstruction           = uint64(2)
	CauseBreakpoint                   = uint64(3)
	CauseLoadAddressMisaligned        = uint64(4)
	CauseLoadAccessFault              = uint64(5)
	CauseStoreAddressMisaligned       = uint64(6)
	CauseStoreAccessFault             = uint64(7)
	CauseEnvironmentCallFromUMode     = uint64(8)
	CauseEnvironmentCallFromSMode     = uint64(9)
	CauseEnvironmentCallFromMMode     = uint64(11)
	CauseInstructionPageFault         = uint64(12)
	CauseLoadPageFault                = uint64(13)
	CauseStorePageFault               = uint64(15)
)

// Cause codes for interrupts. The trap unit sets InterruptMSB in mcause/
// scause when delivering one of these.
const (
	CauseSupervisorSoftware = uint64(1)
	CauseMachineSoftware    = uint64(3)
	CauseSupervisorTimer    = uint64(5)
	CauseMachineTimer       = uint64(7)
	CauseSupervisorExternal = uint64(9)
	CauseMachineExternal    = uint64(11)
)

// InterruptMSB marks a cause value as an interrupt rather than an exception
// when it is written to mcause/scause.
const InterruptMSB = uint64(1) << 63

// InterruptPriority lists deliverable interrupt causes from highest to
// lowest priority.
var InterruptPriority = []uint64{
	CauseMachineExternal,
	CauseMachineSoftware,
	CauseMachineTimer,
	CauseSupervisorExternal,
	CauseSupervisorSoftware,
	CauseSupervisorTimer,
}

// Exception is a synchronous trap raised by decode, memory access,
// translation, or an explicit instruction. It unwinds the current tick
// and is handed to the trap unit, never recovered by an executor.
type Exception struct {
	Cause uint64
	Tval  uint64
}

func (e *Exception) Error() string {
	return fmt.Sprintf("exception: cause=%#x tval=%#x", e.Cause, e.Tval)
}

func newException(cause uint64) *Exception {
	return &Exception{Cause: cause}
}

func newExceptionWithTval(cause, tval uint64) *Exception {
	return &Exception{Cause: cause, Tval: tval}
}

// ErrInstructionAddressMisaligned reports a misaligned fetch target.
func ErrInstructionAddressMisaligned(addr uint64) *Exception {
	return newExceptionWithTval(CauseInstructionAddressMisaligned, addr)
}

// ErrInstructionAccessFault reports a bus fault on instruction fetch.
func ErrInstructionAccessFault(addr uint64) *Exception {
	return newExceptionWithTval(CauseInstructionAccessFault, addr)
}

// ErrIllegalInstruction reports an undecodable or disallowed instruction word.
func ErrIllegalInstruction() *Exception {
	return newException(CauseIllegalInstruction)
}

// ErrBreakpoint reports an EBREAK, tval set to the instruction's address.
func ErrBreakpoint(addr uint64) *Exception {
	return newExceptionWithTval(CauseBreakpoint, addr)
}

// ErrLoadAddressMisaligned reports a misaligned load target.
func ErrLoadAddressMisaligned(addr uint64) *Exception {
	return newExceptionWithTval(CauseLoadAddressMisaligned, addr)
}

// ErrLoadAccessFault reports a bus fault on a load.
func ErrLoadAccessFault(addr uint64) *Exception {
	return newExceptionWithTval(CauseLoadAccessFault, addr)
}

// ErrStoreAddressMisaligned reports a misaligned store target.
func ErrStoreAddressMisaligned(addr uint64) *Exception {
	return newExceptionWithTval(CauseStoreAddressMisaligned, addr)
}

// ErrStoreAccessFault reports a bus fault on a store.
func ErrStoreAccessFault(addr uint64) *Exception {
	return newExceptionWithTval(CauseStoreAccessFault, addr)
}

// ErrEnvironmentCall reports an ECALL from the given privilege mode (0=U,
// 1=S, 3=M).
func ErrEnvironmentCall(mode uint64) *Exception {
	switch mode {
	case 0:
		return newException(CauseEnvironmentCallFromUMode)
	case 1:
		return newException(CauseEnvironmentCallFromSMode)
	default:
		return newException(CauseEnvironmentCallFromMMode)
	}
}

// ErrInstructionPageFault reports an Sv39 page-walk failure during fetch.
func ErrInstructionPageFault(addr uint64) *Exception {
	return newExceptionWithTval(CauseInstructionPageFault, addr)
}

// ErrLoadPageFault reports an Sv39 page-walk failure during a load.
func ErrLoadPageFault(addr uint64) *Exception {
	return newExceptionWithTval(CauseLoadPageFault, addr)
}

// ErrStorePageFault reports an Sv39 page-walk failure during a store.
func ErrStorePageFault(addr uint64) *Exception {
	return newExceptionWithTval(CauseStorePageFault, addr)
}
