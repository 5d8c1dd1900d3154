// Package bus implements the physical address space: a single dispatcher
// that routes loads and stores from the hart core to DRAM, the mask ROM,
// the UART, the PLIC, and the test finisher by address range.
package bus

import (
	"github.com/rv64emu/rv64emu/pkg/device"
	"github.com/rv64emu/rv64emu/pkg/trap"
)

// Physical memory map, following qemu's virt machine. Each region is
// half-open [Base, Base+Size).
const (
	ROMBase = 0x0000_1000
	ROMSize = 0x0000_F000

	FinisherBase = 0x0010_0000
	FinisherSize = 0x0000_1000

	PLICBase = 0x0C00_0000
	PLICSize = 0x0020_1000

	UART0Base = 0x1000_0000
	UART0Size = 0x0000_0100

	DRAMBase = 0x8000_0000
)

// UART0IRQ is the PLIC source ID wired to UART0.
const UART0IRQ = 10

// mmioDevice is the minimal interface every bus-attached peripheral
// satisfies.
type mmioDevice interface {
	Read(off uint64, size int) (uint64, error)
	Write(off uint64, size int, value uint64) error
}

// Bus owns the memory-mapped devices and dispatches physical accesses to
// them by address range.
type Bus struct {
	rom      *device.ROM
	dram     *device.DRAM
	uart     *device.UART
	plic     *device.PLIC
	finisher *device.Finisher
}

// New constructs a bus wired to the given devices. Any of rom/uart/plic may
// be nil if the configuration omits them; dram and finisher are mandatory.
func New(rom *device.ROM, dram *device.DRAM, uart *device.UART, plic *device.PLIC, finisher *device.Finisher) *Bus {
	return &Bus{rom: rom, dram: dram, uart: uart, plic: plic, finisher: finisher}
}

// DRAM returns the bus's DRAM device for image loading.
func (b *Bus) DRAM() *device.DRAM { return b.dram }

// Finisher returns the bus's test finisher for exit-reason polling.
func (b *Bus) Finisher() *device.Finisher { return b.finisher }

// PLIC returns the bus's PLIC, or nil if none is attached.
func (b *Bus) PLIC() *device.PLIC { return b.plic }

// UART returns the bus's UART, or nil if none is attached.
func (b *Bus) UART() *device.UART { return b.uart }

// Tick advances devices that need per-cycle polling (currently: pulling a
// pending host byte into the UART's receive FIFO and latching its
// interrupt line into the PLIC).
func (b *Bus) Tick() {
	if b.uart == nil {
		return
	}
	b.uart.Tick()
	if b.plic != nil {
		b.plic.SetPending(UART0IRQ, b.uart.InterruptPending())
	}
}

// Read performs a size-typed physical load at addr.
func (b *Bus) Read(addr uint64, size int) (uint64, error) {
	dev, off := b.route(addr)
	if dev == nil {
		return 0, trap.ErrLoadAccessFault(addr)
	}
	return dev.Read(off, size)
}

// Write performs a size-typed physical store at addr.
func (b *Bus) Write(addr uint64, size int, value uint64) error {
	dev, off := b.route(addr)
	if dev == nil {
		return trap.ErrStoreAccessFault(addr)
	}
	return dev.Write(off, size, value)
}

func (b *Bus) route(addr uint64) (mmioDevice, uint64) {
	switch {
	case b.rom != nil && addr >= ROMBase && addr < ROMBase+ROMSize:
		return b.rom, addr - ROMBase
	case addr >= FinisherBase && addr < FinisherBase+FinisherSize:
		return b.finisher, addr - FinisherBase
	case b.plic != nil && addr >= PLICBase && addr < PLICBase+PLICSize:
		return b.plic, addr - PLICBase
	case b.uart != nil && addr >= UART0Base && addr < UART0Base+UART0Size:
		return b.uart, addr - UART0Base
	case addr >= DRAMBase && addr < DRAMBase+uint64(b.dram.Size()):
		return b.dram, addr - DRAMBase
	}
	return nil, 0
}
