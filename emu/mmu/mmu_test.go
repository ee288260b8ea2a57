package mmu

import (
	"testing"

	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

// buildSv39 writes a three-level page table rooted at physical page 0: a
// non-leaf at level 2 pointing to page 1, a non-leaf at level 1 pointing
// to page 2, and a leaf at level 0 pointing to page 3 with the given
// permission bits (R/W/X/U/A/D are the caller's to set on perm).
func buildSv39(t *testing.T, b *bus.Bus, perm uint64) {
	t.Helper()
	must := func(addr uint64, raw uint64) {
		if f := b.Store(addr, memory.Double, raw); f != nil {
			t.Fatalf("writing page table entry at 0x%x: %v", addr, f)
		}
	}
	must(0, (uint64(1)<<ppnShift)|pteV)                // level2 -> page 1
	must(4096, (uint64(2)<<ppnShift)|pteV)              // level1 -> page 2
	must(8192, (uint64(3)<<ppnShift)|pteV|perm|pteA|pteD) // level0 leaf -> page 3
}

func TestTranslateSv39Leaf(t *testing.T) {
	dram := memory.New(0, 1<<20)
	b := bus.New(dram)
	buildSv39(t, b, pteR|pteW|pteX|pteU)

	cs := csr.New()
	cs.Set(csr.Satp, uint64(Sv39)<<60)

	tr := New()
	va := uint64(0x23)
	pa, tp := tr.Translate(cs, b, trap.User, trap.AccessLoad, va)
	if tp != nil {
		t.Fatalf("unexpected trap: %v", tp)
	}
	want := uint64(3)*4096 + 0x23
	if pa != want {
		t.Fatalf("got pa 0x%x, want 0x%x", pa, want)
	}
}

func TestTranslateCachesInTLB(t *testing.T) {
	dram := memory.New(0, 1<<20)
	b := bus.New(dram)
	buildSv39(t, b, pteR|pteW|pteX|pteU)

	cs := csr.New()
	cs.Set(csr.Satp, uint64(Sv39)<<60)
	tr := New()

	if _, tp := tr.Translate(cs, b, trap.User, trap.AccessLoad, 0); tp != nil {
		t.Fatalf("first translate: %v", tp)
	}
	// Corrupt the page table directly; a cached translation must not
	// re-walk and notice.
	_ = b.Store(8192, memory.Double, 0)
	pa, tp := tr.Translate(cs, b, trap.User, trap.AccessLoad, 0)
	if tp != nil {
		t.Fatalf("cached translate should not re-walk: %v", tp)
	}
	if pa != uint64(3)*4096 {
		t.Fatalf("cached pa wrong: 0x%x", pa)
	}
}

func TestFlushDropsTLB(t *testing.T) {
	dram := memory.New(0, 1<<20)
	b := bus.New(dram)
	buildSv39(t, b, pteR|pteW|pteX|pteU)

	cs := csr.New()
	cs.Set(csr.Satp, uint64(Sv39)<<60)
	tr := New()

	if _, tp := tr.Translate(cs, b, trap.User, trap.AccessLoad, 0); tp != nil {
		t.Fatalf("first translate: %v", tp)
	}
	tr.Flush()
	_ = b.Store(8192, memory.Double, 0) // now V bit cleared
	if _, tp := tr.Translate(cs, b, trap.User, trap.AccessLoad, 0); tp == nil {
		t.Fatal("expected page fault after flush re-walks a now-invalid PTE")
	}
}

func TestTranslateDeniesWriteWithoutWPermission(t *testing.T) {
	dram := memory.New(0, 1<<20)
	b := bus.New(dram)
	buildSv39(t, b, pteR|pteX|pteU) // no W

	cs := csr.New()
	cs.Set(csr.Satp, uint64(Sv39)<<60)
	tr := New()

	if _, tp := tr.Translate(cs, b, trap.User, trap.AccessStore, 0); tp == nil {
		t.Fatal("expected store page fault without W permission")
	} else if tp.Cause != trap.StoreAMOPageFault {
		t.Fatalf("got cause %d, want StoreAMOPageFault", tp.Cause)
	}
}

func TestTranslateBarePassesThrough(t *testing.T) {
	dram := memory.New(0, 4096)
	b := bus.New(dram)
	cs := csr.New() // satp defaults to Bare

	tr := New()
	pa, tp := tr.Translate(cs, b, trap.Machine, trap.AccessLoad, 0xabcd)
	if tp != nil {
		t.Fatalf("unexpected trap in Bare mode: %v", tp)
	}
	if pa != 0xabcd {
		t.Fatalf("Bare mode must pass va through unchanged: got 0x%x", pa)
	}
}

func TestMachineFetchNeverTranslated(t *testing.T) {
	dram := memory.New(0, 1<<20)
	b := bus.New(dram)
	buildSv39(t, b, pteR|pteW|pteX|pteU)

	cs := csr.New()
	cs.Set(csr.Satp, uint64(Sv39)<<60)
	tr := New()

	pa, tp := tr.Translate(cs, b, trap.Machine, trap.AccessInstruction, 0x77)
	if tp != nil {
		t.Fatalf("unexpected trap: %v", tp)
	}
	if pa != 0x77 {
		t.Fatalf("machine-mode fetch must never be translated: got 0x%x", pa)
	}
}
