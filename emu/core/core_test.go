package core

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/cpu"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/hostcall"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/mmu"
	"github.com/rvchain/engine/emu/trap"
)

const ecall = uint32(0x73)

// buildTestELF hand-assembles the smallest valid ELF64/RISC-V executable
// carrying one PT_LOAD segment at vaddr (also the entry point), for tests
// that need a real image rather than bytes poked directly through the bus.
func buildTestELF(t *testing.T, vaddr uint64, code []byte) []byte {
	t.Helper()
	const ehsize = 64
	const phsize = 56
	phoff := uint64(ehsize)
	dataOff := phoff + phsize

	buf := make([]byte, dataOff+uint64(len(code)))
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little-endian
	buf[6] = 1 // EV_CURRENT

	le := binary.LittleEndian
	le.PutUint16(buf[16:18], 2)   // e_type = ET_EXEC
	le.PutUint16(buf[18:20], 243) // e_machine = EM_RISCV
	le.PutUint32(buf[20:24], 1)   // e_version
	le.PutUint64(buf[24:32], vaddr)
	le.PutUint64(buf[32:40], phoff)
	le.PutUint64(buf[40:48], 0)
	le.PutUint32(buf[48:52], 0)
	le.PutUint16(buf[52:54], ehsize)
	le.PutUint16(buf[54:56], phsize)
	le.PutUint16(buf[56:58], 1)
	le.PutUint16(buf[58:60], 0)
	le.PutUint16(buf[60:62], 0)
	le.PutUint16(buf[62:64], 0)

	ph := buf[phoff : phoff+phsize]
	le.PutUint32(ph[0:4], 1) // PT_LOAD
	le.PutUint32(ph[4:8], 7) // RWX
	le.PutUint64(ph[8:16], dataOff)
	le.PutUint64(ph[16:24], vaddr)
	le.PutUint64(ph[24:32], vaddr)
	le.PutUint64(ph[32:40], uint64(len(code)))
	le.PutUint64(ph[40:48], uint64(len(code)))
	le.PutUint64(ph[48:56], 4096)

	copy(buf[dataOff:], code)
	return buf
}

func newTestEmulator(t *testing.T) *Emulator {
	t.Helper()
	dram := memory.New(0, 4096)
	b := bus.New(dram)
	c := cpu.New(b, csr.New(), mmu.New())
	return New(b, c)
}

func TestStepHaltsOnReturnSelector(t *testing.T) {
	e := newTestEmulator(t)
	if err := e.Bus.Store(0, memory.Word, uint64(ecall)); err != nil {
		t.Fatalf("store ecall: %v", err)
	}
	e.CPU.SetX(5, hostcall.Return) // t0 = selector
	e.CPU.SetX(10, 1)              // a0
	e.CPU.SetX(11, 2)              // a1

	res := e.Step()
	if res == nil || res.Kind != Halted {
		t.Fatalf("got %+v, want Halted", res)
	}
	if res.A0 != 1 || res.A1 != 2 {
		t.Fatalf("got a0=%d a1=%d, want 1/2", res.A0, res.A1)
	}
}

func TestStepReportsHostCallForOtherSelectors(t *testing.T) {
	e := newTestEmulator(t)
	if err := e.Bus.Store(0, memory.Word, uint64(ecall)); err != nil {
		t.Fatalf("store ecall: %v", err)
	}
	e.CPU.SetX(5, hostcall.BlockNumber)

	res := e.Step()
	if res == nil || res.Kind != HostCall {
		t.Fatalf("got %+v, want HostCall", res)
	}
	if res.Selector != hostcall.BlockNumber {
		t.Fatalf("got selector %d, want BlockNumber", res.Selector)
	}

	// ResumeHostCall must advance past the ecall, not re-trap on it.
	e.ResumeHostCall()
	if e.CPU.PC != 4 {
		t.Fatalf("pc = %d, want 4 after resume", e.CPU.PC)
	}
}

func TestStepReportsExceptionAndEntersTrap(t *testing.T) {
	e := newTestEmulator(t)
	if err := e.Bus.Store(0, memory.Word, 0x7f); err != nil { // unassigned opcode
		t.Fatalf("store: %v", err)
	}
	res := e.Step()
	if res == nil || res.Kind != Exception {
		t.Fatalf("got %+v, want Exception", res)
	}
	if res.Cause != trap.IllegalInstruction {
		t.Fatalf("got cause %d, want IllegalInstruction", res.Cause)
	}
	if e.CPU.CSR.Get(csr.Mcause) != uint64(trap.IllegalInstruction) {
		t.Fatalf("EnterTrap did not record mcause: got %d", e.CPU.CSR.Get(csr.Mcause))
	}
}

func TestRunStopsAtBudget(t *testing.T) {
	e := newTestEmulator(t)
	// An infinite loop: jal x0, 0 (jump to self).
	if err := e.Bus.Store(0, memory.Word, 0x0000006f); err != nil {
		t.Fatalf("store: %v", err)
	}
	res := e.Run(context.Background(), 10)
	if res.Kind != TimedOut {
		t.Fatalf("got %+v, want TimedOut", res)
	}
}

func TestReadWriteIORoundTrip(t *testing.T) {
	// The I/O region sits IORegionOffsetFromTop below the top of DRAM, so
	// DRAM must be larger than that offset.
	dram := memory.New(0, 2*hostcall.IORegionOffsetFromTop)
	b := bus.New(dram)
	e := New(b, cpu.New(b, csr.New(), mmu.New()))
	e.WriteIO([]byte("hello"))
	got := e.ReadIO(5)
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestResetReZeroesDRAMBeforeReload(t *testing.T) {
	// Reset places the input length at loader.IOOffset (0x1000), so DRAM
	// must extend past it.
	dram := memory.New(0, 8192)
	b := bus.New(dram)
	e := New(b, cpu.New(b, csr.New(), mmu.New()))
	if err := e.Bus.Store(100, memory.Byte, 0xff); err != nil {
		t.Fatalf("store: %v", err)
	}

	code := []byte{0x13, 0x00, 0x00, 0x00}
	image := buildTestELF(t, 0, code)
	if err := e.Reset(image, nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, ferr := e.Bus.DRAM().Load(100, memory.Byte)
	if ferr != nil {
		t.Fatalf("load: %v", ferr)
	}
	if got != 0 {
		t.Fatalf("dram not re-zeroed across reset: got 0x%x at offset 100", got)
	}
}
