package device

import "github.com/rv64emu/rv64emu/pkg/trap"

// PLIC register regions, relative to the PLIC's base address.
// Register state is kept for two target contexts, the usual hart-0
// machine/supervisor pair; interrupt arbitration toward the hart is driven
// from context 0. The bus window (pkg/bus PLICSize) ends at 0x201000, so
// both contexts' enable blocks are reachable through it but only context
// 0's threshold/claim page is.
const (
	// NumSources is the number of interrupt source IDs the register file
	// covers; source 0 is reserved ("no interrupt") per the PLIC spec.
	NumSources      = 1024
	NumContexts     = 2
	numPendingWords = NumSources / 32

	plicPriorityBase  = 0x0000_0000 // priority[source], 4 bytes each
	plicPendingBase   = 0x0000_1000 // pending bitmap, one bit per source
	plicEnableBase    = 0x0000_2000 // enable bitmap, one 0x80 block per context
	plicEnableStride  = 4 * numPendingWords
	plicContextBase   = 0x0020_0000 // threshold at +0, claim/complete at +4
	plicContextStride = 0x1000

	plicThreshold = plicContextBase     // context 0 threshold
	plicClaim     = plicContextBase + 4 // context 0 claim/complete
)

// PLIC is a platform-level interrupt controller: it latches level-triggered
// source assertions, gates them by per-source priority against enable and
// threshold, and hands the highest-priority pending source to the hart on
// claim.
type PLIC struct {
	priority  [NumSources]uint32
	pending   [numPendingWords]uint32
	claimed   [numPendingWords]uint32
	enable    [NumContexts][numPendingWords]uint32
	threshold [NumContexts]uint32
}

// NewPLIC constructs an idle PLIC.
func NewPLIC() *PLIC {
	return &PLIC{}
}

// SetPending latches or clears bit irq mod 32 in pending word irq div 32.
// Called by the bus on behalf of a level-triggered device such as the UART.
func (p *PLIC) SetPending(irq uint32, asserted bool) {
	if irq == 0 || irq >= NumSources {
		return
	}
	word, bit := irq/32, uint32(1)<<(irq%32)
	if asserted {
		p.pending[word] |= bit
	} else {
		p.pending[word] &^= bit
	}
}

// Pending reports whether the PLIC has a source ready to interrupt the
// hart's external-interrupt line: enabled, pending, unclaimed, and above
// threshold in context 0.
func (p *PLIC) Pending() bool {
	return p.highestPending(0) != 0
}

// highestPending returns the source ID of the highest-priority source that
// is pending, enabled for the context, not already claimed, and whose
// priority exceeds the context's threshold, or 0 if none qualifies.
func (p *PLIC) highestPending(ctx int) uint32 {
	best := uint32(0)
	bestPriority := p.threshold[ctx]
	for word := 0; word < numPendingWords; word++ {
		ready := p.pending[word] & p.enable[ctx][word] &^ p.claimed[word]
		if ready == 0 {
			continue
		}
		for bit := 0; bit < 32; bit++ {
			if ready&(uint32(1)<<bit) == 0 {
				continue
			}
			src := uint32(word*32 + bit)
			if p.priority[src] > bestPriority {
				bestPriority = p.priority[src]
				best = src
			}
		}
	}
	return best
}

// Read handles a word-sized load from the PLIC's register window.
func (p *PLIC) Read(off uint64, size int) (uint64, error) {
	if size != 4 {
		return 0, trap.ErrLoadAccessFault(off)
	}
	word := (off & 0xFFF) / 4
	switch {
	case off >= plicPriorityBase && off < plicPriorityBase+4*NumSources:
		return uint64(p.priority[(off-plicPriorityBase)/4]), nil
	case off >= plicPendingBase && off < plicPendingBase+4*numPendingWords:
		return uint64(p.pending[word]), nil
	case off >= plicEnableBase && off < plicEnableBase+NumContexts*plicEnableStride:
		ctx := (off - plicEnableBase) / plicEnableStride
		return uint64(p.enable[ctx][(off-plicEnableBase)%plicEnableStride/4]), nil
	case off >= plicContextBase && off < plicContextBase+NumContexts*plicContextStride:
		ctx := int((off - plicContextBase) / plicContextStride)
		switch (off - plicContextBase) % plicContextStride {
		case 0:
			return uint64(p.threshold[ctx]), nil
		case 4:
			src := p.highestPending(ctx)
			if src != 0 {
				p.claimed[src/32] |= uint32(1) << (src % 32)
			}
			return uint64(src), nil
		}
	}
	return 0, trap.ErrLoadAccessFault(off)
}

// Write handles a word-sized store to the PLIC's register window.
func (p *PLIC) Write(off uint64, size int, value uint64) error {
	if size != 4 {
		return trap.ErrStoreAccessFault(off)
	}
	v := uint32(value)
	word := (off & 0xFFF) / 4
	switch {
	case off >= plicPriorityBase && off < plicPriorityBase+4*NumSources:
		p.priority[(off-plicPriorityBase)/4] = v
	case off >= plicPendingBase && off < plicPendingBase+4*numPendingWords:
		p.pending[word] = v
	case off >= plicEnableBase && off < plicEnableBase+NumContexts*plicEnableStride:
		ctx := (off - plicEnableBase) / plicEnableStride
		p.enable[ctx][(off-plicEnableBase)%plicEnableStride/4] = v
	case off >= plicContextBase && off < plicContextBase+NumContexts*plicContextStride:
		ctx := int((off - plicContextBase) / plicContextStride)
		switch (off - plicContextBase) % plicContextStride {
		case 0:
			p.threshold[ctx] = v
		case 4:
			// Complete: the hart writes back the source ID it finished
			// servicing, re-arming the gateway for that source.
			if v != 0 && v < NumSources {
				p.claimed[v/32] &^= uint32(1) << (v % 32)
				p.pending[v/32] &^= uint32(1) << (v % 32)
			}
		default:
			return trap.ErrStoreAccessFault(off)
		}
	default:
		return trap.ErrStoreAccessFault(off)
	}
	return nil
}
