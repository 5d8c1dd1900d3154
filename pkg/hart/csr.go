package hart

// CSR addresses this core gives structural meaning to. The rest of the
// 4096-entry space is a flat word array with no special behavior.
const (
	CsrSSTATUS = 0x100
	CsrSIE     = 0x104
	CsrSTVEC   = 0x105
	CsrSEPC    = 0x141
	CsrSCAUSE  = 0x142
	CsrSTVAL   = 0x143
	CsrSIP     = 0x144
	CsrSATP    = 0x180

	CsrMSTATUS = 0x300
	CsrMISA    = 0x301
	CsrMEDELEG = 0x302
	CsrMIDELEG = 0x303
	CsrMIE     = 0x304
	CsrMTVEC   = 0x305
	CsrMEPC    = 0x341
	CsrMCAUSE  = 0x342
	CsrMTVAL   = 0x343
	CsrMIP     = 0x344

	CsrMVENDORID = 0xF11
	CsrMARCHID   = 0xF12
	CsrMIMPID    = 0xF13
	CsrMHARTID   = 0xF14
)

// Bit positions/masks within MSTATUS that this core consumes. SSTATUS is a
// strict subset-view over the same backing word.
const (
	mstatusSIE  = uint64(1) << 1
	mstatusMIE  = uint64(1) << 3
	mstatusSPIE = uint64(1) << 5
	mstatusUBE  = uint64(1) << 6
	mstatusMPIE = uint64(1) << 7
	mstatusSPP  = uint64(1) << 8

	mstatusMPPShift = 11
	mstatusMPPMask  = uint64(0b11) << mstatusMPPShift

	mstatusMPRV = uint64(1) << 17
	mstatusSUM  = uint64(1) << 18
	mstatusMXR  = uint64(1) << 19
	mstatusTVM  = uint64(1) << 20
	mstatusTW   = uint64(1) << 21
	mstatusTSR  = uint64(1) << 22

	mstatusUXLShift = 32
	mstatusUXLMask  = uint64(0b11) << mstatusUXLShift
	mstatusSXLShift = 34
	mstatusSXLMask  = uint64(0b11) << mstatusSXLShift

	mstatusSBE = uint64(1) << 36
	mstatusMBE = uint64(1) << 37

	// mstatusWritable is the set of bits a direct MSTATUS write may change;
	// SXL/UXL/*BE are read-only and always report XLEN=64 / little-endian.
	mstatusWritable = mstatusSIE | mstatusMIE | mstatusSPIE | mstatusMPIE |
		mstatusSPP | mstatusMPPMask | mstatusMPRV | mstatusSUM | mstatusMXR |
		mstatusTVM | mstatusTW | mstatusTSR

	// sstatusWritable is the subset of MSTATUS bits visible and writable
	// through the SSTATUS view.
	sstatusWritable = mstatusSIE | mstatusSPIE | mstatusSPP | mstatusSUM | mstatusMXR
	sstatusReadable = sstatusWritable | mstatusUXLMask
)

// satp field layout: {MODE:4, ASID:16, PPN:44}.
const (
	satpModeShift = 60
	satpPPNMask   = (uint64(1) << 44) - 1

	// SatpModeSv39 is the only translation mode this core recognizes; any
	// other MODE value behaves as bare (identity) translation.
	SatpModeSv39 = uint64(8)
)

// Privilege modes, encoded as in MSTATUS.MPP/SPP.
const (
	ModeUser       = uint64(0b00)
	ModeSupervisor = uint64(0b01)
	ModeMachine    = uint64(0b11)
)

// CSRFile is the hart's 4096-entry control-and-status register space.
type CSRFile struct {
	regs [4096]uint64
}

// NewCSRFile constructs a CSR file with the mandatory read-only identity
// and MISA values populated.
func NewCSRFile() *CSRFile {
	c := &CSRFile{}
	// MXL=2 (XLEN=64); Extensions: A(0), I(8), M(12).
	c.regs[CsrMISA] = (uint64(2) << 62) | (1 << 0) | (1 << 8) | (1 << 12)
	// SXL = UXL = 2: SXLEN and UXLEN are fixed at 64.
	c.regs[CsrMSTATUS] = (uint64(2) << mstatusSXLShift) | (uint64(2) << mstatusUXLShift)
	return c
}

// Read returns the raw value of the CSR at addr. addr is always a 12-bit
// value coming from instruction decode, so it is always in range.
func (c *CSRFile) Read(addr uint32) uint64 {
	if addr == CsrSSTATUS {
		return c.regs[CsrMSTATUS] & sstatusReadable
	}
	return c.regs[addr&0xFFF]
}

// Write stores val into the CSR at addr, masking read-only bits where this
// core gives the address structural meaning.
func (c *CSRFile) Write(addr uint32, val uint64) {
	switch addr {
	case CsrMISA, CsrMVENDORID, CsrMARCHID, CsrMIMPID, CsrMHARTID:
		// Read-only: write is a no-op.
	case CsrMSTATUS:
		c.regs[CsrMSTATUS] = (c.regs[CsrMSTATUS] &^ mstatusWritable) | (val & mstatusWritable)
	case CsrSSTATUS:
		c.regs[CsrMSTATUS] = (c.regs[CsrMSTATUS] &^ sstatusWritable) | (val & sstatusWritable)
	default:
		c.regs[addr&0xFFF] = val
	}
}

// WriteRaw stores val into the CSR at addr without read-only masking. Used
// internally by the trap unit to update xEPC/xCAUSE/xTVAL and by the hart
// to latch MIP.MEIP.
func (c *CSRFile) WriteRaw(addr uint32, val uint64) {
	c.regs[addr&0xFFF] = val
}

// MSTATUS returns the raw MSTATUS word.
func (c *CSRFile) MSTATUS() uint64 { return c.regs[CsrMSTATUS] }

// SetMSTATUS stores the raw MSTATUS word directly, bypassing the writable
// mask. Used by the trap unit and xRET which legitimately touch bits (xIE,
// xPIE, xPP, MPRV) outside the ordinary CSR-write mask.
func (c *CSRFile) SetMSTATUS(val uint64) { c.regs[CsrMSTATUS] = val }

// SATP decodes the SATP CSR into its MODE/ASID/PPN fields.
func (c *CSRFile) SATP() (mode, asid, ppn uint64) {
	raw := c.regs[CsrSATP]
	mode = raw >> satpModeShift
	asid = (raw >> 44) & 0xFFFF
	ppn = raw & satpPPNMask
	return
}
