/*
   Guest DRAM: contiguous byte-addressable memory mapped at a fixed base.

   Copyright 2024, Richard Cornwell
   Copyright 2026, rvchain authors

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.

*/

// Package memory implements the emulator's flat guest DRAM: a single
// byte slice mapped at a fixed physical base address, accessed with
// bounds-checked, little-endian, width-addressed loads and stores.
package memory

import (
	"encoding/binary"
	"fmt"
)

// Width is the size in bytes of a DRAM access.
type Width int

// Supported access widths.
const (
	Byte   Width = 1
	Half   Width = 2
	Word   Width = 4
	Double Width = 8
)

// A Fault reports an out-of-range DRAM access.
type Fault struct {
	Store bool   // true for a store, false for a load
	Addr  uint64 // physical address attempted
	Width Width
}

func (f *Fault) Error() string {
	op := "load"
	if f.Store {
		op = "store"
	}
	return fmt.Sprintf("memory: %s access fault at 0x%x (width %d)", op, f.Addr, f.Width)
}

// DRAM is a fixed-size byte-addressable guest memory mapped at Base.
type DRAM struct {
	Base uint64
	data []byte
}

// New allocates size bytes of guest DRAM mapped starting at base.
func New(base uint64, size uint64) *DRAM {
	return &DRAM{Base: base, data: make([]byte, size)}
}

// Size returns the number of bytes of DRAM.
func (m *DRAM) Size() uint64 {
	return uint64(len(m.data))
}

// Contains reports whether the physical address range [addr, addr+n) lies
// entirely inside this DRAM.
func (m *DRAM) Contains(addr uint64, n uint64) bool {
	if addr < m.Base {
		return false
	}
	off := addr - m.Base
	return off <= m.Size() && n <= m.Size()-off
}

func (m *DRAM) off(addr uint64, width Width) (int, bool) {
	if addr < m.Base {
		return 0, false
	}
	off := addr - m.Base
	if off+uint64(width) > m.Size() {
		return 0, false
	}
	return int(off), true
}

// Load reads a little-endian value of the given width at addr.
func (m *DRAM) Load(addr uint64, width Width) (uint64, error) {
	off, ok := m.off(addr, width)
	if !ok {
		return 0, &Fault{Store: false, Addr: addr, Width: width}
	}
	switch width {
	case Byte:
		return uint64(m.data[off]), nil
	case Half:
		return uint64(binary.LittleEndian.Uint16(m.data[off:])), nil
	case Word:
		return uint64(binary.LittleEndian.Uint32(m.data[off:])), nil
	case Double:
		return binary.LittleEndian.Uint64(m.data[off:]), nil
	default:
		return 0, fmt.Errorf("memory: unsupported width %d", width)
	}
}

// Store writes the low `width` bytes of value at addr, little-endian.
func (m *DRAM) Store(addr uint64, width Width, value uint64) error {
	off, ok := m.off(addr, width)
	if !ok {
		return &Fault{Store: true, Addr: addr, Width: width}
	}
	switch width {
	case Byte:
		m.data[off] = byte(value)
	case Half:
		binary.LittleEndian.PutUint16(m.data[off:], uint16(value))
	case Word:
		binary.LittleEndian.PutUint32(m.data[off:], uint32(value))
	case Double:
		binary.LittleEndian.PutUint64(m.data[off:], value)
	default:
		return fmt.Errorf("memory: unsupported width %d", width)
	}
	return nil
}

// CopyIn copies src into DRAM starting at addr, zero-filling the next
// (memSize - len(src)) bytes. Used by the ELF loader to place a loadable
// segment whose memory size exceeds its file size (.bss tail).
func (m *DRAM) CopyIn(addr uint64, src []byte, memSize uint64) error {
	if !m.Contains(addr, memSize) {
		return &Fault{Store: true, Addr: addr, Width: Width(memSize)}
	}
	off := int(addr - m.Base)
	n := copy(m.data[off:], src)
	for i := off + n; i < off+int(memSize); i++ {
		m.data[i] = 0
	}
	return nil
}

// ReadAt implements io.ReaderAt against guest physical addresses, so a
// virtqueue walker can address DRAM the same way it would a host file.
func (m *DRAM) ReadAt(p []byte, off int64) (int, error) {
	addr := uint64(off)
	if !m.Contains(addr, uint64(len(p))) {
		return 0, &Fault{Store: false, Addr: addr, Width: Width(len(p))}
	}
	start := int(addr - m.Base)
	return copy(p, m.data[start:start+len(p)]), nil
}

// WriteAt implements io.WriterAt against guest physical addresses.
func (m *DRAM) WriteAt(p []byte, off int64) (int, error) {
	addr := uint64(off)
	if !m.Contains(addr, uint64(len(p))) {
		return 0, &Fault{Store: true, Addr: addr, Width: Width(len(p))}
	}
	start := int(addr - m.Base)
	return copy(m.data[start:start+len(p)], p), nil
}

// Bytes returns the raw backing slice itself (not a copy), used by
// emu/core to read the host I/O region without going through width
// loads. Callers must not retain the slice across a Reset.
func (m *DRAM) Bytes() []byte {
	return m.data
}

// Reset zeroes the entire DRAM, returning it to a freshly-allocated state
// so a pooled Emulator can be reused without reallocating the backing array.
func (m *DRAM) Reset() {
	clear(m.data)
}
