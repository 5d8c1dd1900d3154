// Package image loads raw firmware and kernel binaries into DRAM. Images
// are raw machine code with no container format, so loading is a straight
// byte copy at a fixed offset.
package image

import (
	"io"

	"github.com/rv64emu/rv64emu/pkg/device"
)

// FirmwareOffset and KernelOffset are the DRAM-relative offsets firmware
// and an optional kernel image are loaded at.
const (
	FirmwareOffset = 0
	KernelOffset   = 0x4000
)

// LoadFirmware reads r in full and copies it into dram at FirmwareOffset.
func LoadFirmware(r io.Reader, dram *device.DRAM) error {
	return load(r, dram, FirmwareOffset)
}

// LoadKernel reads r in full and copies it into dram at KernelOffset.
func LoadKernel(r io.Reader, dram *device.DRAM) error {
	return load(r, dram, KernelOffset)
}

func load(r io.Reader, dram *device.DRAM, offset int) error {
	img, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dram.Load(offset, img)
	return nil
}
