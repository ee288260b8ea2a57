package cpu

import (
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/trap"
	"testing"
)

func TestCsrrwRoundTripsThroughMscratch(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(2, 0x1234)
	// csrrw x1, mscratch, x2
	storeWord(t, c, 0, itype(uint32(csr.Mscratch), 2, 1, 1, 0x73))
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.GetX(1); got != 0 {
		t.Fatalf("rd = 0x%x, want 0 (prior mscratch value)", got)
	}
	if got := c.CSR.Get(csr.Mscratch); got != 0x1234 {
		t.Fatalf("mscratch = 0x%x, want 0x1234", got)
	}
}

func TestCsrrsWithX0SourceDoesNotWrite(t *testing.T) {
	c := newTestCPU(t)
	// csrrs x1, mvendorid, x0 — architecturally read-only use, no write attempted.
	storeWord(t, c, 0, itype(uint32(csr.Mvendorid), 0, 2, 1, 0x73))
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.GetX(1); got != 0 {
		t.Fatalf("rd = 0x%x, want 0", got)
	}
}

func TestCsrrwOnReadOnlyCSRTraps(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(2, 1)
	// csrrw x1, mvendorid, x2 — architecturally always a write, must trap.
	storeWord(t, c, 0, itype(uint32(csr.Mvendorid), 2, 1, 1, 0x73))
	tr := c.Step()
	if tr == nil || tr.Cause != trap.IllegalInstruction {
		t.Fatalf("got %v, want IllegalInstruction", tr)
	}
}

func TestCsrrwiUsesImmediateNotRegister(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(5, 0xdead) // must be ignored: csrrwi takes the 5-bit zimm, not x5
	// csrrwi x1, mscratch, 5 (zimm travels in the rs1 field)
	storeWord(t, c, 0, itype(uint32(csr.Mscratch), 5, 5, 1, 0x73))
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.CSR.Get(csr.Mscratch); got != 5 {
		t.Fatalf("mscratch = %d, want 5", got)
	}
}

func TestCsrrwWritesSatp(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(2, 0x8000000000000123)
	// csrrw x1, satp, x2
	storeWord(t, c, 0, itype(uint32(csr.Satp), 2, 1, 1, 0x73))
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.CSR.Get(csr.Satp); got != 0x8000000000000123 {
		t.Fatalf("satp = 0x%x, want the written value", got)
	}
}
