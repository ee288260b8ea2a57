/*
rvchain Bus: static address decoder routing loads/stores to DRAM or a device.

	Copyright (c) 2024, Richard Cornwell
	Copyright (c) 2026, rvchain authors

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package bus implements the static address decoder (spec §4.3 / §9:
// "the bus holds the enumeration by value ... so there is no cyclic
// ownership") sitting between the translator and DRAM/devices.
package bus

import (
	"github.com/rvchain/engine/emu/device"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

// window is one disjoint address range routed to a device.
type window struct {
	base uint64
	size uint64
	dev  device.Device
}

// Bus owns DRAM and the device windows installed on it with Map.
type Bus struct {
	dram    *memory.DRAM
	windows []window
}

// New builds a Bus over dram with no device windows; add them with Map.
// Windows must be disjoint and must not overlap the DRAM range; Map does
// not validate this.
func New(dram *memory.DRAM) *Bus {
	return &Bus{dram: dram}
}

// Map installs dev at [base, base+size) in physical address space.
func (b *Bus) Map(base, size uint64, dev device.Device) {
	b.windows = append(b.windows, window{base: base, size: size, dev: dev})
}

// DRAM returns the bus's backing guest memory.
func (b *Bus) DRAM() *memory.DRAM {
	return b.dram
}

func (b *Bus) decode(addr uint64, width memory.Width) (device.Device, uint64, bool) {
	n := uint64(width)
	for _, w := range b.windows {
		if addr >= w.base && addr-w.base <= w.size-n && n <= w.size {
			return w.dev, addr - w.base, true
		}
	}
	return nil, 0, false
}

// Load reads a width-sized little-endian value at physical address addr,
// routing to the matching device window or falling back to DRAM.
func (b *Bus) Load(kind trap.AccessKind, addr uint64, width memory.Width) (uint64, *trap.Trap) {
	if dev, off, ok := b.decode(addr, width); ok {
		v, err := dev.Load(off, width)
		if err != nil {
			return 0, trap.ForAccess(kind, false, addr)
		}
		return v, nil
	}
	v, err := b.dram.Load(addr, width)
	if err != nil {
		return 0, trap.ForAccess(kind, false, addr)
	}
	return v, nil
}

// Store writes value (truncated to width) at physical address addr.
func (b *Bus) Store(addr uint64, width memory.Width, value uint64) *trap.Trap {
	if dev, off, ok := b.decode(addr, width); ok {
		if err := dev.Store(off, width, value); err != nil {
			return trap.ForAccess(trap.AccessStore, false, addr)
		}
		return nil
	}
	if err := b.dram.Store(addr, width, value); err != nil {
		return trap.ForAccess(trap.AccessStore, false, addr)
	}
	return nil
}

// Tick advances every mapped device by n retired instructions (spec §5:
// "Implementations SHOULD call tick once per batch of N instructions").
func (b *Bus) Tick(n int) {
	for _, w := range b.windows {
		w.dev.Tick(n)
	}
}

// Devices returns the mapped devices in installation order, for the
// interrupt router / PLIC to poll InterruptPending, and for the debugger
// to enumerate attached peripherals.
func (b *Bus) Devices() []device.Device {
	devs := make([]device.Device, len(b.windows))
	for i, w := range b.windows {
		devs[i] = w.dev
	}
	return devs
}
