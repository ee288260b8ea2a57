/*
Package cpu implements the hart executed by the run loop (spec §4.7): the
integer and floating-point register files, the decode dispatch, and one
`Step` that executes exactly one instruction and returns nil or a *trap.Trap
for the run loop to act on. Per spec §9 ("the executor never calls the trap
pipeline directly") Step never writes {m,s}epc/cause/tval itself — EnterTrap
in trap.go does that, called only from emu/core's run loop.

Copyright 2026, rvchain authors
*/
package cpu

import (
	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/decode"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/mmu"
	"github.com/rvchain/engine/emu/trap"
)

const decodeCacheSize = 4096

type cacheLine struct {
	valid bool
	pc    uint64
	in    decode.Inst
}

// Reservation is the single-entry LR/SC set (spec §9: "a single-entry set
// {address, width} on the CPU").
type Reservation struct {
	Valid bool
	Addr  uint64
	Width memory.Width
}

// CPU is one hart: registers, privilege, and the shared CSR/MMU/Bus it
// executes against.
type CPU struct {
	X [32]uint64 // x0 is hardwired to zero; writes to it are discarded
	F [32]uint64 // NaN-boxed; single-precision values live in the low 32 bits

	PC   uint64
	Priv trap.Mode

	CSR *csr.File
	MMU *mmu.Translator
	Bus *bus.Bus

	Reservation Reservation
	WFI         bool
	InstRet     uint64

	cache [decodeCacheSize]cacheLine
}

// New builds a CPU over the given shared bus/CSR file/translator, reset to
// machine mode with PC at zero; the loader overwrites PC, SP and privilege
// before first use.
func New(b *bus.Bus, cs *csr.File, tr *mmu.Translator) *CPU {
	return &CPU{Bus: b, CSR: cs, MMU: tr, Priv: trap.Machine}
}

// Reset restores a pooled CPU to its construction-time state without
// reallocating the register arrays (spec §5: "recycled by the host via an
// explicit reset that reloads program and input without reallocating
// DRAM").
func (c *CPU) Reset() {
	c.X = [32]uint64{}
	c.F = [32]uint64{}
	c.PC = 0
	c.Priv = trap.Machine
	c.Reservation = Reservation{}
	c.WFI = false
	c.InstRet = 0
	c.cache = [decodeCacheSize]cacheLine{}
}

// GetX reads integer register i; x0 always reads zero (spec §8 invariant).
func (c *CPU) GetX(i uint32) uint64 {
	if i == 0 {
		return 0
	}
	return c.X[i]
}

// SetX writes integer register i; writes to x0 are discarded.
func (c *CPU) SetX(i uint32, v uint64) {
	if i != 0 {
		c.X[i] = v
	}
}

// InvalidateFetchCache drops every cached decode, used on fence.i. A data
// store drops only the cached decodes whose bytes it overlaps (storeMem).
func (c *CPU) InvalidateFetchCache() {
	c.cache = [decodeCacheSize]cacheLine{}
}

func (c *CPU) cacheIndex(pc uint64) int {
	return int((pc >> 1) % decodeCacheSize)
}

func (c *CPU) fetch() (decode.Inst, *trap.Trap) {
	if c.PC&0x1 != 0 {
		return decode.Inst{}, trap.Misaligned(trap.AccessInstruction, c.PC)
	}

	idx := c.cacheIndex(c.PC)
	if line := &c.cache[idx]; line.valid && line.pc == c.PC {
		return line.in, nil
	}

	phys, tr := c.MMU.Translate(c.CSR, c.Bus, c.Priv, trap.AccessInstruction, c.PC)
	if tr != nil {
		return decode.Inst{}, tr
	}

	lo, tr := c.Bus.Load(trap.AccessInstruction, phys, memory.Half)
	if tr != nil {
		return decode.Inst{}, tr
	}
	if lo&0x3 != 0x3 {
		in := decode.Decode(uint32(lo))
		c.cache[idx] = cacheLine{valid: true, pc: c.PC, in: in}
		return in, nil
	}

	hi, tr := c.Bus.Load(trap.AccessInstruction, phys+2, memory.Half)
	if tr != nil {
		return decode.Inst{}, tr
	}
	raw := uint32(lo) | uint32(hi)<<16
	in := decode.Decode(raw)
	c.cache[idx] = cacheLine{valid: true, pc: c.PC, in: in}
	return in, nil
}

// Step fetches, decodes, and executes exactly one instruction, advancing
// PC on success. The returned *trap.Trap (if non-nil) has already had no
// architectural side effect beyond what had committed before the fault
// (spec §7: "no partial state is visible on error").
func (c *CPU) Step() *trap.Trap {
	in, tr := c.fetch()
	if tr != nil {
		return tr
	}
	if in.Illegal {
		return &trap.Trap{Cause: trap.IllegalInstruction, Tval: uint64(in.Raw)}
	}
	return c.execute(in)
}
