package timer

import (
	"testing"

	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/memory"
)

const mtipBit = 1 << 7
const msipBit = 1 << 3

func TestTickRaisesMTIPAtComparand(t *testing.T) {
	cs := csr.New()
	tm := New(cs, 1)
	if err := tm.Store(OffMTimeCmp, memory.Double, 5); err != nil {
		t.Fatalf("store mtimecmp: %v", err)
	}
	if cs.Get(csr.Mip)&mtipBit != 0 {
		t.Fatal("MTIP must not be set before mtime reaches mtimecmp")
	}
	tm.Tick(5)
	if cs.Get(csr.Mip)&mtipBit == 0 {
		t.Fatal("MTIP must be set once mtime reaches mtimecmp")
	}
}

func TestRaisingMTimeCmpClearsMTIP(t *testing.T) {
	cs := csr.New()
	tm := New(cs, 1)
	_ = tm.Store(OffMTimeCmp, memory.Double, 1)
	tm.Tick(1)
	if cs.Get(csr.Mip)&mtipBit == 0 {
		t.Fatal("expected MTIP set")
	}
	if err := tm.Store(OffMTimeCmp, memory.Double, 1000); err != nil {
		t.Fatalf("store: %v", err)
	}
	if cs.Get(csr.Mip)&mtipBit != 0 {
		t.Fatal("raising mtimecmp past mtime must clear MTIP")
	}
}

func TestMSIPRoundTrip(t *testing.T) {
	cs := csr.New()
	tm := New(cs, 1)
	if err := tm.Store(OffMSIP, memory.Word, 1); err != nil {
		t.Fatalf("store: %v", err)
	}
	if cs.Get(csr.Mip)&msipBit == 0 {
		t.Fatal("expected MSIP to set mip bit 3")
	}
	got, err := tm.Load(OffMSIP, memory.Word)
	if err != nil || got != 1 {
		t.Fatalf("got %d, %v, want 1, nil", got, err)
	}
	_ = tm.Store(OffMSIP, memory.Word, 0)
	if cs.Get(csr.Mip)&msipBit != 0 {
		t.Fatal("expected MSIP clear to clear mip bit 3")
	}
}

func TestMSIPMaskedToOneBit(t *testing.T) {
	cs := csr.New()
	tm := New(cs, 1)
	_ = tm.Store(OffMSIP, memory.Word, 0xff)
	got, _ := tm.Load(OffMSIP, memory.Word)
	if got != 1 {
		t.Fatalf("got %d, want msip masked to 1", got)
	}
}

func TestZeroCyclesPerInstructionDefaultsToOne(t *testing.T) {
	cs := csr.New()
	tm := New(cs, 0)
	_ = tm.Store(OffMTimeCmp, memory.Double, 3)
	tm.Tick(3)
	if !tm.InterruptPending() {
		t.Fatal("expected mtime to have advanced by at least 3 with default cyclesPerTick=1")
	}
}
