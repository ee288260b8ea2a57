/*
rvchain Memory-mapped device interface.

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
package device

import (
	"fmt"

	"github.com/rvchain/engine/emu/memory"
)

// Width is the size in bytes of a device register access.
type Width = memory.Width

// Widths a device register access may use.
const (
	Byte   = memory.Byte
	Half   = memory.Half
	Word   = memory.Word
	Double = memory.Double
)

// Fault reports an access to an offset not backed by any register in a
// device's MMIO window.
type Fault struct {
	Store bool
	Dev   string
	Off   uint64
	Width Width
}

func (f *Fault) Error() string {
	op := "load"
	if f.Store {
		op = "store"
	}
	return fmt.Sprintf("device %s: %s access fault at offset 0x%x", f.Dev, op, f.Off)
}

// Device is the interface every memory-mapped peripheral exposes to the
// Bus. Offsets are relative to the device's own window, not the guest
// physical address.
type Device interface {
	// Name identifies the device for logging and Fault messages.
	Name() string

	// Load reads a width-sized little-endian value at offset off.
	Load(off uint64, width Width) (uint64, error)

	// Store writes a width-sized little-endian value at offset off.
	Store(off uint64, width Width, value uint64) error

	// Tick advances internal state by one batch of n retired instructions.
	// Devices that model real time (the timer/IPI unit) use n to derive
	// an elapsed tick count; devices with no notion of elapsed time may
	// ignore it.
	Tick(n int)

	// InterruptPending reports whether this device currently asserts any
	// of the interrupt sources it owns.
	InterruptPending() bool
}
