/*
Package loader parses a guest ELF image with the standard library's
debug/elf (grounded on the ELF-section walker in the Gopher2600 ARM
cartridge loader) and initializes a CPU/bus pair from its loadable
segments, per spec §4.9.

Copyright 2026, rvchain authors
*/
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/cpu"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/mmu"
	"github.com/rvchain/engine/emu/trap"
)

// Error is the loader's fixed closed error enumeration (spec §4.9 /
// §6: "Error(NotElf|UnsupportedMachine|SegmentOutOfDram)").
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("loader: %s: %s", e.Kind, e.Msg) }

const (
	ErrNotElf           = "NotElf"
	ErrUnsupportedMach  = "UnsupportedMachine"
	ErrSegmentOutOfDram = "SegmentOutOfDram"
)

// IOOffset is the fixed DRAM offset at which the loader places the
// caller-supplied input buffer, 8-byte little-endian length first (spec
// §4.9 step 3, §6: "guest ELF contract").
const IOOffset = 0x1000

// Load parses image, copies its loadable segments and input into dram
// through b, and returns a CPU positioned at the entry point in machine
// mode with architecturally reset CSRs (spec §4.9 step 4).
func Load(b *bus.Bus, image, input []byte) (*cpu.CPU, error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, &Error{Kind: ErrNotElf, Msg: err.Error()}
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, &Error{Kind: ErrUnsupportedMach, Msg: fmt.Sprintf("class=%v machine=%v", f.Class, f.Machine)}
	}

	dram := b.DRAM()
	base, size := dram.Base, dram.Size()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := copySegment(dram, base, size, prog, f); err != nil {
			return nil, err
		}
	}

	if err := placeInput(dram, base, size, input); err != nil {
		return nil, err
	}

	cs := csr.New()
	c := cpu.New(b, cs, mmu.New())
	c.PC = f.Entry
	c.Priv = trap.Machine
	c.SetX(2, base+size) // sp
	c.SetX(10, uint64(len(input)))
	c.SetX(11, base+IOOffset+8)
	return c, nil
}

func copySegment(dram dramWriter, base, size uint64, prog *elf.Prog, f *elf.File) error {
	if prog.Vaddr < base || prog.Vaddr+prog.Memsz > base+size {
		return &Error{Kind: ErrSegmentOutOfDram, Msg: fmt.Sprintf("vaddr=0x%x memsz=0x%x", prog.Vaddr, prog.Memsz)}
	}
	data := make([]byte, prog.Filesz)
	if _, err := io.ReadFull(prog.Open(), data); err != nil {
		return &Error{Kind: ErrNotElf, Msg: err.Error()}
	}
	return dram.CopyIn(prog.Vaddr, data, prog.Memsz)
}

func placeInput(dram dramWriter, base, size uint64, input []byte) error {
	if IOOffset+8+uint64(len(input)) > size {
		return &Error{Kind: ErrSegmentOutOfDram, Msg: "input buffer exceeds dram"}
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(input)))
	if err := dram.CopyIn(base+IOOffset, hdr[:], 8); err != nil {
		return &Error{Kind: ErrSegmentOutOfDram, Msg: err.Error()}
	}
	return dram.CopyIn(base+IOOffset+8, input, uint64(len(input)))
}

// dramWriter is the subset of *memory.DRAM the loader needs; declared
// locally so this file doesn't import emu/memory just for the type name.
type dramWriter interface {
	CopyIn(addr uint64, src []byte, memSize uint64) error
}
