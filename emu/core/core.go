/*
Package core owns one hart end to end: CPU, bus, and the single-threaded
run loop of spec §5. There is no internal goroutine here, unlike the
multi-emulator/channel ownership the rest of this tree's device model was
originally built around — every effect of Step is fully committed before
the next begins (spec §5: "sequentially consistent").

Copyright 2026, rvchain authors
*/
package core

import (
	"context"

	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/cpu"
	"github.com/rvchain/engine/emu/hostcall"
	"github.com/rvchain/engine/emu/loader"
	"github.com/rvchain/engine/emu/trap"
)

// TickBatch is how many retired instructions elapse between device ticks
// and interrupt polls (spec §5: "typical N = 1000").
const TickBatch = 1000

// ResultKind tags the variant a Run call returns (spec §6).
type ResultKind int

const (
	Halted ResultKind = iota
	HostCall
	Exception
	TimedOut
)

// RunResult is the outer loop's report back to the host. Only the fields
// relevant to Kind are populated.
type RunResult struct {
	Kind ResultKind

	// Halted
	A0, A1 uint64

	// HostCall
	Selector uint64

	// Exception
	Cause trap.Cause
	Tval  uint64
}

// Emulator is the host-facing handle: bus, CPU, and the instruction
// counter the run loop uses to decide when to tick devices.
type Emulator struct {
	Bus *bus.Bus
	CPU *cpu.CPU

	sinceTick int
}

// New wires an already-populated bus and a CPU into a fresh Emulator; use
// loader.Load (via FromELF) to also initialize CPU state from a guest image.
func New(b *bus.Bus, c *cpu.CPU) *Emulator {
	return &Emulator{Bus: b, CPU: c}
}

// FromELF loads image/input through emu/loader and returns a ready Emulator.
func FromELF(b *bus.Bus, image, input []byte) (*Emulator, error) {
	c, err := loader.Load(b, image, input)
	if err != nil {
		return nil, err
	}
	return &Emulator{Bus: b, CPU: c}, nil
}

// Reset reloads program and input without reallocating dram or devices
// (spec §5: "pooled and recycled by the host via an explicit reset").
// It re-zeroes dram first, since loader.Load only overwrites the bytes the
// new image actually occupies.
func (e *Emulator) Reset(image, input []byte) error {
	e.Bus.DRAM().Reset()
	c, err := loader.Load(e.Bus, image, input)
	if err != nil {
		return err
	}
	e.CPU = c
	e.sinceTick = 0
	return nil
}

// Reg/SetReg/ReadIO/WriteIO implement hostcall.Regs and hostcall.IOBuffer
// so a caller can pass an *Emulator straight to hostcall.Dispatch.
func (e *Emulator) Reg(i int) uint64       { return e.CPU.GetX(uint32(i)) }
func (e *Emulator) SetReg(i int, v uint64) { e.CPU.SetX(uint32(i), v) }

func (e *Emulator) ioAddr() uint64 {
	dram := e.Bus.DRAM()
	top := dram.Base + dram.Size()
	return top - hostcall.IORegionOffsetFromTop
}

func (e *Emulator) ReadIO(n int) []byte {
	dram := e.Bus.DRAM()
	addr := e.ioAddr()
	start := addr - dram.Base
	end := start + uint64(n)
	if end > dram.Size() {
		end = dram.Size()
	}
	return append([]byte(nil), dram.Bytes()[start:end]...)
}

func (e *Emulator) WriteIO(data []byte) {
	dram := e.Bus.DRAM()
	addr := e.ioAddr()
	_ = dram.CopyIn(addr, data, uint64(len(data)))
}

// Step runs exactly one instruction, ticking devices and polling
// interrupts every TickBatch retired instructions, and entering the trap
// pipeline for anything that isn't a machine-mode environment call (spec
// §4.10: bypasses the pipeline) or a successful retirement.
func (e *Emulator) Step() *RunResult {
	if e.CPU.WFI {
		e.Bus.Tick(1)
		if e.CPU.CheckInterrupt() == nil {
			return nil
		}
		e.CPU.WFI = false
	}

	tr := e.CPU.Step()

	e.sinceTick++
	if e.sinceTick >= TickBatch {
		e.Bus.Tick(e.sinceTick)
		e.sinceTick = 0
		if tr == nil {
			if pending := e.CPU.CheckInterrupt(); pending != nil {
				tr = pending
			}
		}
	}

	if tr == nil {
		return nil
	}

	if !tr.Interrupt && tr.Cause == trap.EnvironmentCallFromMMode {
		selector := e.CPU.GetX(hostcall.SelectorReg)
		if hostcall.Halted(selector) {
			return &RunResult{Kind: Halted, A0: e.CPU.GetX(10), A1: e.CPU.GetX(11)}
		}
		return &RunResult{Kind: HostCall, Selector: selector}
	}

	e.CPU.EnterTrap(tr)
	if !tr.Interrupt {
		return &RunResult{Kind: Exception, Cause: tr.Cause, Tval: tr.Tval}
	}
	return nil
}

// Run loops Step until a host-visible event or budget exhaustion (spec
// §5: "the host MAY impose a maximum-instructions budget"). budget <= 0
// means unlimited.
func (e *Emulator) Run(ctx context.Context, budget int64) *RunResult {
	var executed int64
	for {
		select {
		case <-ctx.Done():
			return &RunResult{Kind: TimedOut}
		default:
		}
		if budget > 0 && executed >= budget {
			return &RunResult{Kind: TimedOut}
		}
		if res := e.Step(); res != nil {
			return res
		}
		executed++
	}
}

// ResumeHostCall advances PC past the ecall that produced a HostCall
// result and continues running; the host must have already written its
// result into registers/IO via hostcall.Dispatch.
func (e *Emulator) ResumeHostCall() {
	e.CPU.PC += 4
}
