/*
Package plic implements a minimal platform-level interrupt controller
routing external device interrupt lines into the hart's MEIP/SEIP CSR bits
(spec §3/§4.2 "PLIC-style interrupt router").

Grounded on the teacher's channel-status aggregation in emu/bus (formerly
emu/sys_channel): a fixed-size table of per-source state polled on a
regular tick rather than delivered through a dedicated goroutine, the same
synchronous-polling idiom applied here to external interrupt sources
instead of channel busy/end status.

Copyright 2026, rvchain authors
*/
package plic

import (
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/device"
	"github.com/rvchain/engine/emu/memory"
)

// MaxSources bounds the number of interrupt source IDs the router tracks;
// source 0 is reserved (means "no interrupt") per the RISC-V PLIC spec.
const MaxSources = 32

// Register layout, following the standard PLIC MMIO shape trimmed to one
// context (machine-mode hart 0): priority[1..31] at 4-byte stride from 0,
// pending bitmap at 0x1000, enable bitmap at 0x2000, threshold/claim at
// 0x200000.
const (
	OffPriorityBase = 0x000000
	OffPending      = 0x001000
	OffEnableBase   = 0x002000
	OffThreshold    = 0x200000
	OffClaim        = 0x200004

	Size = 0x201000
)

// Source is a single external interrupt line; devices register one per
// asserted interrupt they own.
type Source struct {
	ID  uint32
	Dev device.Device
}

// PLIC aggregates a fixed set of sources into a single external interrupt
// line, delivered to the hart as MEIP (spec §4.8).
type PLIC struct {
	cs *csr.File

	sources    []Source
	priority   [MaxSources]uint32
	enabled    uint32 // bitmap, bit i = source i enabled for the one context modeled
	threshold  uint32
	claimed    uint32 // source ID currently claimed and not yet completed, 0 = none
	toSup      bool   // route to SEIP instead of MEIP (supervisor-delegated external interrupts)
}

// New builds a PLIC wired to cs's mip register; toSupervisor selects
// whether the aggregated line asserts SEIP or MEIP.
func New(cs *csr.File, toSupervisor bool) *PLIC {
	return &PLIC{cs: cs, toSup: toSupervisor}
}

// Attach registers dev as interrupt source id (1..MaxSources-1).
func (p *PLIC) Attach(id uint32, dev device.Device) {
	p.sources = append(p.sources, Source{ID: id, Dev: dev})
}

func (p *PLIC) Name() string { return "plic" }

func (p *PLIC) Load(off uint64, width memory.Width) (uint64, error) {
	switch {
	case off >= OffPriorityBase && off < OffPriorityBase+4*MaxSources:
		id := (off - OffPriorityBase) / 4
		return uint64(p.priority[id]), nil
	case off == OffPending:
		return uint64(p.pendingBitmap()), nil
	case off == OffEnableBase:
		return uint64(p.enabled), nil
	case off == OffThreshold:
		return uint64(p.threshold), nil
	case off == OffClaim:
		return uint64(p.claim()), nil
	default:
		return 0, nil
	}
}

func (p *PLIC) Store(off uint64, width memory.Width, value uint64) error {
	switch {
	case off >= OffPriorityBase && off < OffPriorityBase+4*MaxSources:
		id := (off - OffPriorityBase) / 4
		p.priority[id] = uint32(value)
	case off == OffEnableBase:
		p.enabled = uint32(value)
	case off == OffThreshold:
		p.threshold = uint32(value)
	case off == OffClaim:
		p.complete(uint32(value))
	}
	return nil
}

// Tick polls every attached source and re-derives the aggregated external
// interrupt line (spec §5: "Implementations SHOULD call tick once per
// batch of N instructions").
func (p *PLIC) Tick(n int) {
	p.applyExternal()
}

func (p *PLIC) InterruptPending() bool {
	return p.pendingBitmap() != 0
}

func (p *PLIC) pendingBitmap() uint32 {
	var bits uint32
	for _, s := range p.sources {
		if s.Dev.InterruptPending() && p.priority[s.ID] > 0 {
			bits |= 1 << s.ID
		}
	}
	return bits
}

// claim returns the highest-priority pending, enabled source above
// threshold and marks it claimed, per the PLIC claim/complete protocol.
func (p *PLIC) claim() uint32 {
	pending := p.pendingBitmap() & p.enabled
	var best uint32
	var bestPriority uint32
	for id := uint32(1); id < MaxSources; id++ {
		if pending&(1<<id) == 0 {
			continue
		}
		if p.priority[id] <= p.threshold {
			continue
		}
		if p.priority[id] > bestPriority {
			best = id
			bestPriority = p.priority[id]
		}
	}
	if best != 0 {
		p.claimed = best
	}
	return best
}

func (p *PLIC) complete(id uint32) {
	if p.claimed == id {
		p.claimed = 0
	}
}

func (p *PLIC) applyExternal() {
	const meip = 1 << 11
	const seip = 1 << 9
	bit := uint64(meip)
	if p.toSup {
		bit = seip
	}
	mip := p.cs.Get(csr.Mip)
	if p.InterruptPending() {
		p.cs.Set(csr.Mip, mip|bit)
	} else {
		p.cs.Set(csr.Mip, mip&^bit)
	}
}
