// Command rv64emu boots a firmware image (and optionally a kernel image)
// on a single emulated RV64 hart and runs until the guest signals
// completion through the test finisher.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rv64emu/rv64emu/pkg/bootrom"
	"github.com/rv64emu/rv64emu/pkg/bus"
	"github.com/rv64emu/rv64emu/pkg/device"
	"github.com/rv64emu/rv64emu/pkg/hart"
	"github.com/rv64emu/rv64emu/pkg/image"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	firmwarePath string
	kernelPath   string
	verbose      bool
	trace        bool
	maxTicks     uint64
	dramSize     int
)

func main() {
	root := &cobra.Command{
		Use:   "rv64emu",
		Short: "a functional RV64 hart emulator",
		RunE:  run,
	}
	root.Flags().StringVarP(&firmwarePath, "boot", "b", "", "firmware/SBI image to load at DRAM base (required)")
	root.Flags().StringVarP(&kernelPath, "kernel", "k", "", "kernel image to load at DRAM base + 0x4000")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.Flags().BoolVar(&trace, "trace", false, "log the pc and privilege mode at every tick")
	root.Flags().Uint64Var(&maxTicks, "max-ticks", 0, "stop after this many ticks (0 = unbounded)")
	root.Flags().IntVar(&dramSize, "dram-size", device.MinDRAMSize, "DRAM size in bytes")
	_ = root.MarkFlagRequired("boot")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(verbose || trace)
	defer log.Sync()

	dram := device.NewDRAM(dramSize)

	fp, err := os.Open(firmwarePath)
	if err != nil {
		return err
	}
	defer fp.Close()
	if err := image.LoadFirmware(fp, dram); err != nil {
		return err
	}

	if kernelPath != "" {
		kp, err := os.Open(kernelPath)
		if err != nil {
			return err
		}
		defer kp.Close()
		if err := image.LoadKernel(kp, dram); err != nil {
			return err
		}
	}

	rom := device.NewROM(bootrom.Build(bus.DRAMBase))
	host := newStdioHost()
	uart := device.NewUART(host)
	plic := device.NewPLIC()
	finisher := device.NewFinisher()
	b := bus.New(rom, dram, uart, plic, finisher)

	h := hart.New(bus.ROMBase, b, plic, log)

	for tick := uint64(0); maxTicks == 0 || tick < maxTicks; tick++ {
		if trace {
			log.Debug("tick", zap.Uint64("n", tick), zap.Uint64("pc", h.PC()), zap.Uint64("mode", h.Mode()))
		}
		if err := h.Tick(); err != nil {
			log.Info("trap", zap.Error(err))
		}
		b.Tick()

		if reason := finisher.Reason(); reason != device.ExitNone {
			fmt.Printf("exit: reason=%d\n", reason)
			if reason == device.ExitFail {
				os.Exit(1)
			}
			return nil
		}
	}

	log.Warn("stopped: max-ticks reached", zap.Uint64("max_ticks", maxTicks))
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		log = zap.NewNop()
	}
	return log
}

// stdioHost adapts the process's stdin/stdout to device.HostIO. Reads are
// pumped through a buffered channel by a background goroutine so that
// UART.Tick's ReadByte never blocks the hart loop.
type stdioHost struct {
	in  chan byte
	out *bufio.Writer
}

func newStdioHost() *stdioHost {
	h := &stdioHost{
		in:  make(chan byte, 256),
		out: bufio.NewWriter(os.Stdout),
	}
	go h.pump()
	return h
}

func (h *stdioHost) pump() {
	r := bufio.NewReader(os.Stdin)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		h.in <- b
	}
}

func (h *stdioHost) ReadByte() (byte, bool) {
	select {
	case b := <-h.in:
		return b, true
	default:
		return 0, false
	}
}

func (h *stdioHost) WriteByte(b byte) {
	h.out.WriteByte(b)
	h.out.Flush()
}
