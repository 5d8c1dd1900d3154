package device

import "github.com/rv64emu/rv64emu/pkg/trap"

// Register offsets within the UART's 8-byte I/O window. Several offsets are
// multiplexed by LCR.DLAB (the divisor-latch access bit).
const (
	uartRegRBRTHRDLL = 0 // DLAB=0: RBR (read) / THR (write); DLAB=1: DLL
	uartRegIERDLM    = 1 // DLAB=0: IER; DLAB=1: DLM
	uartRegIIRFCR    = 2 // read: IIR; write: FCR
	uartRegLCR       = 3
	uartRegMCR       = 4
	uartRegLSR       = 5
	uartRegMSR       = 6
	uartRegSCR       = 7

	uartFIFOSize = 16
)

// IER bits.
const (
	ierRDAI  = uint8(1) << 0 // received-data-available interrupt
	ierTHREI = uint8(1) << 1 // THR-empty interrupt
	ierRLSI  = uint8(1) << 2 // receiver-line-status interrupt
	ierMSI   = uint8(1) << 3 // modem-status interrupt
)

// IIR interrupt-identification IDs (low 4 bits; bit0 doubles as the
// "no interrupt pending" flag since it is the only odd value). Combined on
// read with the FIFOs-enabled indicator in bits 6:7.
const (
	iirRLS  = uint8(0b011) << 1 // receiver line status
	iirRDA  = uint8(0b010) << 1 // received data available
	iirCTI  = uint8(0b110) << 1 // character timeout indication
	iirTHRE = uint8(0b001) << 1 // THR empty
	iirMS   = uint8(0b000) << 1 // modem status
	iirNone = uint8(0b001)      // no interrupt pending (bit0 set, rest 0)
)

// LSR bits.
const (
	lsrDR   = uint8(1) << 0 // data ready
	lsrOE   = uint8(1) << 1 // overrun error
	lsrPE   = uint8(1) << 2 // parity error
	lsrFE   = uint8(1) << 3 // framing error
	lsrBI   = uint8(1) << 4 // break interrupt
	lsrTHRE = uint8(1) << 5 // THR empty
	lsrTEMT = uint8(1) << 6 // transmitter empty
)

// MCR bits.
const (
	mcrDTR  = uint8(1) << 0
	mcrRTS  = uint8(1) << 1
	mcrOUT1 = uint8(1) << 2
	mcrOUT2 = uint8(1) << 3
	mcrLPB  = uint8(1) << 4 // loopback mode
)

// LCR bits.
const (
	lcrDLAB = uint8(1) << 7
)

// FCR bits, as accepted by a write to the IIR/FCR offset.
const (
	fcrFIFOEnable = uint8(1) << 0
	fcrRXReset    = uint8(1) << 1
	fcrTXReset    = uint8(1) << 2
	// fcrPersistMask is the set of FCR bits the 16550A retains after a write;
	// the reset bits (1, 2) are momentary and read back as zero.
	fcrPersistMask = uint8(0xC9)
)

// HostIO is the byte-stream boundary between the UART and the process
// hosting the emulator (a terminal, a pipe, a test buffer). The UART's job
// ends at the byte stream; terminal plumbing belongs to the caller.
type HostIO interface {
	// ReadByte returns a host-supplied byte and true, or false if none is
	// pending. Never blocks.
	ReadByte() (byte, bool)
	// WriteByte delivers a transmitted byte to the host.
	WriteByte(b byte)
}

// UART implements a 16550A-compatible serial port with 16-byte FIFOs,
// interrupt-priority arbitration, and loopback mode.
type UART struct {
	host HostIO

	rxFIFO []byte
	txFIFO []byte

	ier uint8
	lcr uint8
	mcr uint8
	scr uint8
	dll uint8
	dlm uint8

	fcr            uint8 // raw persisted value (fcrPersistMask bits only)
	fifoEnabled    bool
	rxTriggerLevel int

	// thrIPending is the 16550A's internal THRE-interrupt latch: set once a
	// transmit completes, cleared by writing THR or by reading IIR while
	// THRE is the reported cause.
	thrIPending bool

	// Latched LSR error bits, cleared as a group whenever LSR is read.
	lsrOE, lsrPE, lsrFE, lsrBI bool
}

// NewUART constructs a UART wired to the given host byte stream.
func NewUART(host HostIO) *UART {
	return &UART{host: host}
}

// InterruptPending reports whether the UART currently asserts its PLIC
// interrupt line, i.e. whether any interrupt source other than "none" is
// the highest-priority pending cause.
func (u *UART) InterruptPending() bool {
	return u.iirID() != iirNone
}

// Read handles a byte-sized load from the UART's register window.
func (u *UART) Read(off uint64, size int) (uint64, error) {
	if size != 1 {
		return 0, trap.ErrLoadAccessFault(off)
	}
	switch off {
	case uartRegRBRTHRDLL:
		if u.lcr&lcrDLAB != 0 {
			return uint64(u.dll), nil
		}
		return uint64(u.popRX()), nil
	case uartRegIERDLM:
		if u.lcr&lcrDLAB != 0 {
			return uint64(u.dlm), nil
		}
		return uint64(u.ier), nil
	case uartRegIIRFCR:
		// Reading the IIR clears a reported THRE cause: the 16550A treats
		// the read itself as acknowledgment of the THR-empty interrupt.
		id := u.iirID()
		if id == iirTHRE {
			u.thrIPending = false
		}
		return uint64(u.iirByte(id)), nil
	case uartRegLCR:
		return uint64(u.lcr), nil
	case uartRegMCR:
		return uint64(u.mcr), nil
	case uartRegLSR:
		v := u.lsr()
		u.lsrOE, u.lsrPE, u.lsrFE, u.lsrBI = false, false, false, false
		return uint64(v), nil
	case uartRegMSR:
		return 0, nil
	case uartRegSCR:
		return uint64(u.scr), nil
	}
	return 0, trap.ErrLoadAccessFault(off)
}

// Write handles a byte-sized store to the UART's register window.
func (u *UART) Write(off uint64, size int, value uint64) error {
	if size != 1 {
		return trap.ErrStoreAccessFault(off)
	}
	v := uint8(value)
	switch off {
	case uartRegRBRTHRDLL:
		if u.lcr&lcrDLAB != 0 {
			u.dll = v
			return nil
		}
		u.transmit(v)
	case uartRegIERDLM:
		if u.lcr&lcrDLAB != 0 {
			u.dlm = v
			return nil
		}
		old := u.ier
		u.ier = v & 0x0F
		// Toggling the THRE-interrupt enable re-evaluates the latch: THR is
		// always empty in this synchronous model, so enabling it arms the
		// interrupt immediately, disabling it disarms.
		if (old^u.ier)&ierTHREI != 0 {
			u.thrIPending = u.ier&ierTHREI != 0
		}
	case uartRegIIRFCR:
		u.writeFCR(v)
	case uartRegLCR:
		u.lcr = v
	case uartRegMCR:
		u.mcr = v & 0x1F
	case uartRegLSR, uartRegMSR:
		// Read-only in this implementation; ignore writes.
	case uartRegSCR:
		u.scr = v
	default:
		return trap.ErrStoreAccessFault(off)
	}
	return nil
}

// transmit implements the THR write. When MCR.LPB is set the UART is in
// loopback mode and the transmitted byte is looped back into the receive
// FIFO instead of reaching the host; otherwise it goes to the host byte
// stream.
//
// Transmission is modeled as synchronous (the byte reaches the host or the
// loopback FIFO immediately), so THRE/TEMT reassert and the THRE-interrupt
// latch arms right away rather than after a simulated shift-register delay.
func (u *UART) transmit(v uint8) {
	if u.mcr&mcrLPB != 0 {
		u.pushRX(v)
	} else {
		u.host.WriteByte(v)
	}
	u.pushTX(v)

	u.thrIPending = false
	if u.ier&ierTHREI != 0 {
		u.thrIPending = true
	}
}

// Tick lets the UART pull a pending host byte into its receive FIFO. Called
// once per hart tick so host input surfaces as RDA/CTI interrupts.
func (u *UART) Tick() {
	if u.mcr&mcrLPB != 0 {
		return
	}
	if b, ok := u.host.ReadByte(); ok {
		u.pushRX(b)
	}
}

// rxCapacity and txCapacity are 1 outside FIFO mode (a single holding
// register) and uartFIFOSize once FCR.FE is set.
func (u *UART) rxCapacity() int {
	if u.fifoEnabled {
		return uartFIFOSize
	}
	return 1
}

func (u *UART) txCapacity() int {
	if u.fifoEnabled {
		return uartFIFOSize
	}
	return 1
}

// pushRX appends a byte, evicting the oldest buffered byte and latching the
// overrun-error bit when the buffer is already at capacity.
func (u *UART) pushRX(b byte) {
	if len(u.rxFIFO) >= u.rxCapacity() {
		u.lsrOE = true
		u.rxFIFO = u.rxFIFO[1:]
	}
	u.rxFIFO = append(u.rxFIFO, b)
}

func (u *UART) popRX() byte {
	if len(u.rxFIFO) == 0 {
		return 0
	}
	b := u.rxFIFO[0]
	u.rxFIFO = u.rxFIFO[1:]
	return b
}

// pushTX buffers a transmitted byte in the (here, purely observational) TX
// FIFO: the byte has already reached the host synchronously, but the FIFO
// still tracks the 16550A's transmit-side buffering and capacity/reset
// behavior for FCR writes.
func (u *UART) pushTX(b byte) {
	if len(u.txFIFO) >= u.txCapacity() {
		u.txFIFO = u.txFIFO[1:]
	}
	u.txFIFO = append(u.txFIFO, b)
}

// writeFCR decodes a write to the FIFO Control Register: FIFO enable, the
// momentary RX/TX reset bits, and the receive-trigger level.
func (u *UART) writeFCR(v uint8) {
	newFIFOEnable := v&fcrFIFOEnable != 0

	// Switching between FIFO and non-FIFO mode clears both buffers, as does
	// an explicit reset bit.
	if newFIFOEnable != u.fifoEnabled {
		u.rxFIFO = nil
		u.txFIFO = nil
	}
	if v&fcrRXReset != 0 {
		u.rxFIFO = nil
	}
	if v&fcrTXReset != 0 {
		u.txFIFO = nil
	}

	u.fifoEnabled = newFIFOEnable
	u.fcr = v & fcrPersistMask

	if u.fifoEnabled {
		u.rxTriggerLevel = rxTriggerLevelFromFCR(v)
	}
}

// rxTriggerLevelFromFCR decodes FCR bits 6:7 into the receive-FIFO interrupt
// trigger level, in bytes.
func rxTriggerLevelFromFCR(v uint8) int {
	switch v >> 6 {
	case 0b00:
		return 1
	case 0b01:
		return 4
	case 0b10:
		return 8
	default:
		return 14
	}
}

func (u *UART) lsr() uint8 {
	s := lsrTHRE | lsrTEMT
	if len(u.rxFIFO) > 0 {
		s |= lsrDR
	}
	if u.lsrOE {
		s |= lsrOE
	}
	if u.lsrPE {
		s |= lsrPE
	}
	if u.lsrFE {
		s |= lsrFE
	}
	if u.lsrBI {
		s |= lsrBI
	}
	return s
}

// iirID selects the highest-priority interrupt cause in the 16550A's fixed
// priority order: receiver line status, received-data-available/character
// timeout, THR empty, modem status.
func (u *UART) iirID() uint8 {
	if u.ier&ierRLSI != 0 && (u.lsrOE || u.lsrPE || u.lsrFE || u.lsrBI) {
		return iirRLS
	}
	dataReady := len(u.rxFIFO) > 0
	rda := u.ier&ierRDAI != 0 && dataReady && (!u.fifoEnabled || len(u.rxFIFO) >= u.rxTriggerLevel)
	if rda {
		return iirRDA
	}
	// Character-timeout indication. Real hardware arms this after an
	// inactivity timeout; without a timer to model, it is approximated as
	// "receive interrupts enabled" whenever RDA above didn't already claim
	// the slot.
	if u.ier&ierRDAI != 0 {
		return iirCTI
	}
	if u.ier&ierTHREI != 0 && u.thrIPending {
		return iirTHRE
	}
	if u.ier&ierMSI != 0 {
		return iirMS
	}
	return iirNone
}

// iirByte combines an interrupt ID with the FIFOs-enabled indicator bits
// (6:7), which read back 0b11 once FCR.FE is set and 0b00 otherwise.
func (u *UART) iirByte(id uint8) uint8 {
	fe := uint8(0)
	if u.fifoEnabled {
		fe = 0b11
	}
	return fe<<6 | id
}
