/*
Package timer implements a CLINT-style machine-timer and software-interrupt
unit: mtime/mtimecmp plus a per-hart MSIP register, mapped into the address
space as a device.Device window (spec §3/§4.2 "timer/IPI unit").

Grounded on the teacher's regular-interval clock (emu/timer/timer.go), whose
run() goroutine ticks a channel send on every pulse and gates it on an
enable flag. This engine's run loop is single-threaded (spec §5), so the
"regular pulse" becomes a plain counter advanced by Tick, called once per
retired-instruction batch instead of by a time.Ticker on its own goroutine.

Copyright 2026, rvchain authors
*/
package timer

import (
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/memory"
)

// MMIO register offsets, following the de facto CLINT layout (msip at 0,
// mtimecmp at 0x4000, mtime at 0xbff8) so a guest's existing CLINT driver
// needs no changes.
const (
	OffMSIP     = 0x0000
	OffMTimeCmp = 0x4000
	OffMTime    = 0xbff8

	// Size is the conventional CLINT window size (covers mtimecmp for up
	// to a few thousand harts plus mtime); only hart 0 is modeled.
	Size = 0x10000
)

// Timer is a single-hart CLINT: one mtime counter, one mtimecmp comparand,
// one software-interrupt latch, wired directly into the shared CSR file's
// mip register rather than through a generic interrupt line (spec §4.8:
// MTIP/MSIP are platform-asserted bits, not PLIC-routed).
type Timer struct {
	cs *csr.File

	mtime    uint64
	mtimecmp uint64
	msip     uint32

	cyclesPerTick uint64
}

// New builds a Timer advancing mtime by cyclesPerInstruction for every
// retired instruction Tick reports; cs is the hart's CSR file, whose mip
// MTIP/MSIP bits this device sets and clears directly.
func New(cs *csr.File, cyclesPerInstruction uint64) *Timer {
	if cyclesPerInstruction == 0 {
		cyclesPerInstruction = 1
	}
	return &Timer{cs: cs, mtimecmp: ^uint64(0), cyclesPerTick: cyclesPerInstruction}
}

func (t *Timer) Name() string { return "clint" }

func (t *Timer) Load(off uint64, width memory.Width) (uint64, error) {
	switch {
	case off == OffMSIP:
		return uint64(t.msip) & 0x1, nil
	case off == OffMTimeCmp:
		return t.mtimecmp, nil
	case off == OffMTime:
		return t.mtime, nil
	default:
		return 0, nil
	}
}

func (t *Timer) Store(off uint64, width memory.Width, value uint64) error {
	switch {
	case off == OffMSIP:
		t.msip = uint32(value) & 0x1
		t.applyMSIP()
	case off == OffMTimeCmp:
		t.mtimecmp = value
		t.applyMTIP()
	case off == OffMTime:
		t.mtime = value
		t.applyMTIP()
	}
	return nil
}

// Tick advances mtime by n*cyclesPerTick and re-derives MTIP; MSIP is
// level-driven purely by guest writes and needs no Tick-time update.
func (t *Timer) Tick(n int) {
	t.mtime += uint64(n) * t.cyclesPerTick
	t.applyMTIP()
}

// InterruptPending reports the timer-compare condition for introspection
// (the debugger's `regs`/status views); the CSR side effect happens in
// applyMTIP, not here.
func (t *Timer) InterruptPending() bool {
	return t.mtime >= t.mtimecmp
}

func (t *Timer) applyMTIP() {
	const mtip = 1 << 7
	mip := t.cs.Get(csr.Mip)
	if t.mtime >= t.mtimecmp {
		t.cs.Set(csr.Mip, mip|mtip)
	} else {
		t.cs.Set(csr.Mip, mip&^mtip)
	}
}

func (t *Timer) applyMSIP() {
	const msip = 1 << 3
	mip := t.cs.Get(csr.Mip)
	if t.msip != 0 {
		t.cs.Set(csr.Mip, mip|msip)
	} else {
		t.cs.Set(csr.Mip, mip&^msip)
	}
}
