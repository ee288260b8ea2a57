/*
Package mmu implements the three-level (and up) page-walk address
translator (spec §4.5): Bare, Sv32, Sv39, Sv48, Sv57, with supervisor/user
distinction and A/D bit maintenance.

A small direct-mapped translation cache (spec §9, "Translation-cache
option") sits in front of the walker; it is flushed on sfence.vma and on a
satp write. A store to page-table memory does not flush it.

Copyright 2026, rvchain authors
*/
package mmu

import (
	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

// Mode is a satp translation mode.
type Mode int

const (
	Bare Mode = 0
	Sv32 Mode = 1
	Sv39 Mode = 8
	Sv48 Mode = 9
	Sv57 Mode = 10
)

// levels gives the number of page-table levels for each mode. spec.md §4.5
// states levels as "three, three, four, five" for Sv32/Sv39/Sv48/Sv57
// respectively; real RISC-V Sv32 is a two-level 32-bit-only format, but
// this engine only ever runs RV64 guests and spec.md is explicit about
// the level count, so Sv32 is modeled here as a degenerate three-level
// walk with the same 9-bit-per-level/4KiB-page shape as Sv39 (see
// DESIGN.md "Open Questions"). No guest image in the test corpus uses it;
// Sv39 is the mode exercised end to end.
var levels = map[Mode]int{
	Bare: 0,
	Sv32: 3,
	Sv39: 3,
	Sv48: 4,
	Sv57: 5,
}

const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7

	pageBits  = 12
	vpnBits   = 9
	pteSize   = 8
	ppnShift  = 10
	ppnMask   = (uint64(1) << 44) - 1
)

type tlbEntry struct {
	valid bool
	vpn   uint64
	asid  uint64
	mode  Mode
	ppn   uint64 // PPN of the leaf, already including superpage substitution
	level int    // level at which the leaf was found, for the offset mask
	perm  uint64 // raw PTE low byte (V/R/W/X/U/G/A/D)
}

const tlbSize = 64

// Translator is the stateless-between-calls walker described in spec
// §4.5, shadowed by a small TLB.
type Translator struct {
	tlb [tlbSize]tlbEntry
}

// New returns a translator with an empty translation cache.
func New() *Translator {
	return &Translator{}
}

// Flush invalidates the entire translation cache. Called on sfence.vma
// and on a satp CSR write; a store to a page table does not call it.
func (t *Translator) Flush() {
	for i := range t.tlb {
		t.tlb[i].valid = false
	}
}

func satpFields(satp uint64) (mode Mode, asid uint64, rootPPN uint64) {
	return Mode(satp >> 60), (satp >> 44) & 0xffff, satp & ppnMask
}

func vpn(va uint64, level int) uint64 {
	return (va >> (pageBits + vpnBits*level)) & ((1 << vpnBits) - 1)
}

// effectivePrivilege resolves the privilege level a translation must be
// checked against: for data accesses under MPRV, the stack-recorded MPP
// overrides the running mode (spec §4.5 step 1; the MPRV-applies-only-
// to-data-not-fetch refinement is the standard RISC-V rule, used here to
// resolve the ambiguity left by spec.md's mode-only wording).
func effectivePrivilege(cs *csr.File, priv trap.Mode, kind trap.AccessKind) trap.Mode {
	mstatus := cs.Get(csr.Mstatus)
	if kind != trap.AccessInstruction && priv == trap.Machine && mstatus&csr.StatusMPRV != 0 {
		switch (mstatus & csr.StatusMPPMask) >> csr.StatusMPPShift {
		case 0:
			return trap.User
		case 1:
			return trap.Supervisor
		default:
			return trap.Machine
		}
	}
	return priv
}

// Translate converts a virtual address to a physical address for the
// given access kind, per the algorithm in spec §4.5.
func (t *Translator) Translate(cs *csr.File, b *bus.Bus, priv trap.Mode, kind trap.AccessKind, va uint64) (uint64, *trap.Trap) {
	satp := cs.Get(csr.Satp)
	mode, asid, rootPPN := satpFields(satp)

	mstatus := cs.Get(csr.Mstatus)
	effPriv := effectivePrivilege(cs, priv, kind)

	if mode == Bare {
		return va, nil
	}
	if priv == trap.Machine && kind == trap.AccessInstruction {
		// Machine-mode fetches are never translated.
		return va, nil
	}
	if priv == trap.Machine && mstatus&csr.StatusMPRV == 0 {
		return va, nil
	}

	nlevels := levels[mode]
	if nlevels == 0 {
		return va, nil
	}

	vpage := va >> pageBits
	if e := t.lookup(vpage, asid, mode); e != nil {
		if !checkPerm(kind, effPriv, mstatus, e.perm) {
			return 0, trap.ForAccess(kind, true, va)
		}
		off := va & ((uint64(1) << (pageBits + vpnBits*e.level)) - 1)
		return (e.ppn << pageBits) | off, nil
	}

	const pageSize = uint64(1) << pageBits
	curPPN := rootPPN
	for level := nlevels - 1; level >= 0; level-- {
		pteAddr := curPPN*pageSize + vpn(va, level)*pteSize
		raw, fault := b.Load(trap.AccessLoad, pteAddr, memory.Double)
		if fault != nil {
			return 0, trap.ForAccess(kind, true, va)
		}

		if raw&pteV == 0 || (raw&pteR == 0 && raw&pteW != 0) {
			return 0, trap.ForAccess(kind, true, va)
		}

		if raw&(pteR|pteX) != 0 {
			// Leaf PTE.
			ppn := (raw >> ppnShift) & ppnMask
			if level > 0 {
				lowMask := (uint64(1) << (vpnBits * level)) - 1
				if ppn&lowMask != 0 {
					return 0, trap.ForAccess(kind, true, va)
				}
			}

			if !checkPerm(kind, effPriv, mstatus, raw&0xff) {
				return 0, trap.ForAccess(kind, true, va)
			}

			needD := kind == trap.AccessStore
			if raw&pteA == 0 || (needD && raw&pteD == 0) {
				newRaw := raw | pteA
				if needD {
					newRaw |= pteD
				}
				if f := b.Store(pteAddr, memory.Double, newRaw); f != nil {
					return 0, trap.ForAccess(kind, true, va)
				}
				raw = newRaw
			}

			t.insert(vpage, asid, mode, ppn, level, raw&0xff)

			off := va & ((uint64(1) << (pageBits + vpnBits*level)) - 1)
			return (ppn << pageBits) | off, nil
		}

		// Non-leaf: descend.
		if level == 0 {
			return 0, trap.ForAccess(kind, true, va)
		}
		curPPN = (raw >> ppnShift) & ppnMask
	}
	return 0, trap.ForAccess(kind, true, va)
}

// checkPerm reports whether priv may perform kind against a leaf PTE whose
// raw low byte (or cached permission bits) is pte. Callers turn a false
// result into the correctly-coded page fault via trap.ForAccess, since the
// fault's cause code depends on kind, not on anything checkPerm itself can
// express in its return value.
func checkPerm(kind trap.AccessKind, priv trap.Mode, mstatus uint64, pte uint64) bool {
	r := pte&pteR != 0
	w := pte&pteW != 0
	x := pte&pteX != 0
	u := pte&pteU != 0

	if priv == trap.User && !u {
		return false
	}
	if priv == trap.Supervisor && u {
		if kind == trap.AccessInstruction {
			return false
		}
		if mstatus&csr.StatusSUM == 0 {
			return false
		}
	}

	switch kind {
	case trap.AccessInstruction:
		return x
	case trap.AccessLoad:
		return r || (mstatus&csr.StatusMXR != 0 && x)
	case trap.AccessStore:
		return w
	}
	return false
}

func (t *Translator) tlbIndex(vpage uint64) int {
	return int(vpage % tlbSize)
}

func (t *Translator) lookup(vpage, asid uint64, mode Mode) *tlbEntry {
	e := &t.tlb[t.tlbIndex(vpage)]
	if e.valid && e.vpn == vpage && e.asid == asid && e.mode == mode {
		return e
	}
	return nil
}

func (t *Translator) insert(vpage, asid uint64, mode Mode, ppn uint64, level int, perm uint64) {
	e := &t.tlb[t.tlbIndex(vpage)]
	*e = tlbEntry{valid: true, vpn: vpage, asid: asid, mode: mode, ppn: ppn, level: level, perm: perm}
}
