package cpu

import (
	"testing"

	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/mmu"
	"github.com/rvchain/engine/emu/trap"
)

func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	dram := memory.New(0, 4096)
	b := bus.New(dram)
	c := New(b, csr.New(), mmu.New())
	c.PC = 0
	return c
}

func storeWord(t *testing.T, c *CPU, addr uint64, word uint32) {
	t.Helper()
	if f := c.Bus.Store(addr, memory.Word, uint64(word)); f != nil {
		t.Fatalf("storing instruction word at 0x%x: %v", addr, f)
	}
}

func rtype(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func itype(imm, rs1, funct3, rd, opcode uint32) uint32 {
	return imm<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func TestStepAddiAccumulates(t *testing.T) {
	c := newTestCPU(t)
	// addi x1, x0, 5
	storeWord(t, c, 0, itype(5, 0, 0, 1, 0x13))
	// addi x1, x1, 7
	storeWord(t, c, 4, itype(7, 1, 0, 1, 0x13))

	if tr := c.Step(); tr != nil {
		t.Fatalf("step 1: %v", tr)
	}
	if tr := c.Step(); tr != nil {
		t.Fatalf("step 2: %v", tr)
	}
	if got := c.GetX(1); got != 12 {
		t.Fatalf("x1 = %d, want 12", got)
	}
	if c.PC != 8 {
		t.Fatalf("pc = %d, want 8", c.PC)
	}
}

func TestX0WritesDiscarded(t *testing.T) {
	c := newTestCPU(t)
	// addi x0, x0, 5
	storeWord(t, c, 0, itype(5, 0, 0, 0, 0x13))
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.GetX(0); got != 0 {
		t.Fatalf("x0 = %d, want 0", got)
	}
}

func TestStepAddRegisterRegister(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 3)
	c.SetX(2, 4)
	// add x3, x1, x2
	storeWord(t, c, 0, rtype(0, 2, 1, 0, 3, 0x33))
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.GetX(3); got != 7 {
		t.Fatalf("x3 = %d, want 7", got)
	}
}

func TestStepBranchTaken(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 5)
	c.SetX(2, 5)
	// beq x1, x2, +8; B-type imm layout: imm[11]=bit7, imm[4:1]=bits11:8,
	// imm[10:5]=bits30:25, imm[12]=bit31.
	const imm = 8
	raw := uint32((imm>>11)&1)<<7 | uint32((imm>>1)&0xf)<<8 | uint32((imm>>5)&0x3f)<<25 |
		uint32((imm>>12)&1)<<31 | 2<<20 | 1<<15 | 0<<12 | 0x63
	storeWord(t, c, 0, raw)
	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if c.PC != 8 {
		t.Fatalf("pc = %d, want 8 (branch taken)", c.PC)
	}
}

func TestStepLoadStoreRoundTrip(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 100) // base address
	c.SetX(2, 0xdeadbeef)
	// sw x2, 0(x1)
	// S-type encoding: imm[11:5]<<25 | rs2<<20 | rs1<<15 | funct3<<12 | imm[4:0]<<7 | opcode
	sw := uint32(0)<<25 | 2<<20 | 1<<15 | 2<<12 | 0<<7 | 0x23
	storeWord(t, c, 0, sw)
	// lw x3, 0(x1)
	storeWord(t, c, 4, itype(0, 1, 2, 3, 0x03))

	if tr := c.Step(); tr != nil {
		t.Fatalf("store step: %v", tr)
	}
	if tr := c.Step(); tr != nil {
		t.Fatalf("load step: %v", tr)
	}
	// lw sign-extends the loaded word to 64 bits.
	if got := c.GetX(3); got != 0xffffffffdeadbeef {
		t.Fatalf("x3 = 0x%x, want 0xffffffffdeadbeef", got)
	}
}

func TestStepIllegalInstructionTraps(t *testing.T) {
	c := newTestCPU(t)
	storeWord(t, c, 0, 0x7f) // unassigned opcode
	tr := c.Step()
	if tr == nil {
		t.Fatal("expected illegal-instruction trap")
	}
	if tr.Cause != trap.IllegalInstruction {
		t.Fatalf("got cause %d, want IllegalInstruction", tr.Cause)
	}
}

func TestStepMisalignedFetchTraps(t *testing.T) {
	c := newTestCPU(t)
	c.PC = 1
	tr := c.Step()
	if tr == nil || tr.Cause != trap.InstructionAddressMisaligned {
		t.Fatalf("got %v, want InstructionAddressMisaligned", tr)
	}
}

func TestResetClearsRegistersAndPC(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(5, 42)
	c.PC = 0x1000
	c.Reset()
	if c.GetX(5) != 0 || c.PC != 0 {
		t.Fatalf("reset left x5=%d pc=0x%x", c.GetX(5), c.PC)
	}
	if c.Priv != trap.Machine {
		t.Fatalf("reset must restore machine mode, got %v", c.Priv)
	}
}
