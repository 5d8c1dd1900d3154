// Package hart implements a single RV64GC-subset (I, M, A, Zicsr) hart:
// its register file, CSR space, Sv39 MMU, trap-delivery state machine, and
// instruction decode/execute. It is deliberately bus-agnostic: the bus
// interface below is the only thing it knows about memory-mapped devices.
package hart

import (
	"fmt"

	"github.com/rv64emu/rv64emu/pkg/trap"
	"go.uber.org/zap"
)

// bus is the physical-memory surface the hart core depends on. pkg/bus.Bus
// satisfies it; tests may supply a lighter fake.
type bus interface {
	Read(addr uint64, size int) (uint64, error)
	Write(addr uint64, size int, value uint64) error
}

// interruptSource reports the external interrupt line that Tick mirrors
// into MIP.MEIP each tick (set while pending, cleared otherwise).
// pkg/device.PLIC satisfies it: its Pending reflects context 0, which this
// core treats as the machine-mode context, so the line is MEIP, not SEIP.
type interruptSource interface {
	Pending() bool
}

// Hart is one RISC-V hart: registers, CSRs, current privilege mode, and the
// bus it executes against.
type Hart struct {
	Reg Registers
	csr *CSRFile
	bus bus
	irq interruptSource

	pc   uint64
	mode uint64

	// reservation tracks the address set by LR for a matching SC; at most
	// one is outstanding.
	reservationValid bool
	reservationAddr  uint64

	// Idle is set by WFI and cleared the next time an interrupt is pending;
	// Tick does not fetch/execute while Idle is true.
	Idle bool

	log *zap.Logger
}

// New constructs a hart reset into Machine mode at the given entry pc, with
// bus as its memory surface and irq (may be nil) as its external interrupt
// source.
func New(entry uint64, b bus, irq interruptSource, log *zap.Logger) *Hart {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hart{
		csr:  NewCSRFile(),
		bus:  b,
		irq:  irq,
		pc:   entry,
		mode: ModeMachine,
		log:  log,
	}
}

// PC returns the hart's current program counter.
func (h *Hart) PC() uint64 { return h.pc }

// Mode returns the hart's current privilege mode.
func (h *Hart) Mode() uint64 { return h.mode }

// CSR exposes the hart's CSR file, e.g. for test setup and inspection.
func (h *Hart) CSR() *CSRFile { return h.csr }

// Tick performs one step. It first checks for a deliverable interrupt; if
// one is delivered, Tick returns without executing an instruction.
// Otherwise, unless the hart is idle, it fetches and executes one
// instruction. It returns the exception, if any, that was delivered while
// fetching or executing.
func (h *Hart) Tick() error {
	if h.irq != nil {
		// MEIP mirrors the PLIC's interrupt line: it asserts while a
		// claimable source is pending and drops once the guest claims it.
		if h.irq.Pending() {
			h.setBit(CsrMIP, mipMEIP)
		} else {
			h.clearBit(CsrMIP, mipMEIP)
		}
	}
	if cause, ok := h.pendingInterrupt(); ok {
		h.Idle = false
		h.deliverInterrupt(cause)
		return nil
	}
	if h.Idle {
		return nil
	}

	startPC := h.pc
	raw, err := h.fetch(startPC)
	if err != nil {
		h.deliverException(err.(*trap.Exception), startPC)
		return err
	}

	if err := h.execute(raw); err != nil {
		exc, ok := err.(*trap.Exception)
		if !ok {
			return err
		}
		h.deliverException(exc, startPC)
		return err
	}
	return nil
}

func (h *Hart) fetch(pc uint64) (uint32, error) {
	if pc&0x3 != 0 {
		return 0, trap.ErrInstructionAddressMisaligned(pc)
	}
	phys, err := h.Translate(pc, AccessInstruction)
	if err != nil {
		return 0, err
	}
	word, err := h.bus.Read(phys, 4)
	if err != nil {
		return 0, trap.ErrInstructionAccessFault(pc)
	}
	return uint32(word), nil
}

// mipMEIP is latched via WriteRaw since an external interrupt line is not
// subject to the ordinary CSR-write mask.
const mipMEIP = uint64(1) << 11

func (h *Hart) setBit(addr uint32, bit uint64) {
	h.csr.WriteRaw(addr, h.csr.Read(addr)|bit)
}

func (h *Hart) clearBit(addr uint32, bit uint64) {
	h.csr.WriteRaw(addr, h.csr.Read(addr)&^bit)
}

func (h *Hart) String() string {
	return fmt.Sprintf("pc=%#x mode=%d", h.pc, h.mode)
}
