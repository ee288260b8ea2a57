package cpu

import (
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/trap"
)

// interruptPriority lists firing interrupt causes high to low (spec §4.8:
// "machine-external, machine-software, machine-timer, supervisor-external,
// supervisor-software, supervisor-timer").
var interruptPriority = []trap.Cause{
	trap.MachineExternalInterrupt,
	trap.MachineSoftwareInterrupt,
	trap.MachineTimerInterrupt,
	trap.SupervisorExternalInterrupt,
	trap.SupervisorSoftwareInterrupt,
	trap.SupervisorTimerInterrupt,
}

func causeBit(c trap.Cause) uint64 { return 1 << uint(c) }

// CheckInterrupt reports the highest-priority interrupt that is pending,
// enabled, and not masked by the current privilege's global enable (spec
// §4.8). Called by the run loop at instruction-batch boundaries, never by
// Step itself.
func (c *CPU) CheckInterrupt() *trap.Trap {
	mip := c.CSR.Get(csr.Mip)
	mie := c.CSR.Get(csr.Mie)
	mstatus := c.CSR.Get(csr.Mstatus)

	pending := mip & mie
	if pending == 0 {
		return nil
	}

	mideleg := c.CSR.Get(csr.Mideleg)

	for _, cause := range interruptPriority {
		bit := causeBit(cause)
		if pending&bit == 0 {
			continue
		}
		delegated := mideleg&bit != 0 && c.Priv != trap.Machine
		if delegated {
			if c.Priv == trap.Supervisor && mstatus&csr.StatusSIE == 0 {
				continue
			}
		} else if c.Priv == trap.Machine && mstatus&csr.StatusMIE == 0 {
			continue
		}
		return &trap.Trap{Interrupt: true, Cause: cause}
	}
	return nil
}

// EnterTrap performs the seven-step atomic trap entry of spec §4.8,
// choosing the supervisor or machine trap target by delegation. Called
// only by the run loop, never by the executor (spec §9 design note).
func (c *CPU) EnterTrap(tr *trap.Trap) {
	bit := causeBit(tr.Cause)
	var delegated bool
	if tr.Interrupt {
		delegated = c.CSR.Get(csr.Mideleg)&bit != 0
	} else {
		delegated = c.CSR.Get(csr.Medeleg)&bit != 0
	}
	toSupervisor := delegated && c.Priv != trap.Machine

	mstatus := c.CSR.Get(csr.Mstatus)
	causeVal := uint64(tr.Cause)
	if tr.Interrupt {
		causeVal |= 1 << 63
	}

	if toSupervisor {
		c.CSR.Set(csr.Sepc, c.PC)
		c.CSR.Set(csr.Scause, causeVal)
		c.CSR.Set(csr.Stval, tr.Tval)
		sie := mstatus&csr.StatusSIE != 0
		mstatus = mstatus &^ csr.StatusSIE
		mstatus = setBit(mstatus, 5, sie) // SPIE = old SIE
		mstatus = setBit(mstatus, 8, c.Priv == trap.Supervisor) // SPP
		c.CSR.Set(csr.Mstatus, mstatus) // sstatus is a masked view of mstatus
		c.Priv = trap.Supervisor
		c.PC = trapTarget(c.CSR.Get(csr.Stvec), tr)
	} else {
		c.CSR.Set(csr.Mepc, c.PC)
		c.CSR.Set(csr.Mcause, causeVal)
		c.CSR.Set(csr.Mtval, tr.Tval)
		mie := mstatus&csr.StatusMIE != 0
		mstatus = mstatus &^ csr.StatusMIE
		mstatus = setBit(mstatus, 7, mie) // MPIE = old MIE
		mstatus = (mstatus &^ csr.StatusMPPMask) | (uint64(c.Priv) << csr.StatusMPPShift)
		c.CSR.Set(csr.Mstatus, mstatus)
		c.Priv = trap.Machine
		c.PC = trapTarget(c.CSR.Get(csr.Mtvec), tr)
	}
	c.Reservation = Reservation{}
}

func setBit(v uint64, bit uint, on bool) uint64 {
	if on {
		return v | (1 << bit)
	}
	return v &^ (1 << bit)
}

// trapTarget resolves {m,s}tvec into the destination PC: direct mode
// ignores the cause, vectored mode (mode bits == 1) adds 4*cause for
// interrupts only (spec §4.8 step 7).
func trapTarget(tvec uint64, tr *trap.Trap) uint64 {
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && tr.Interrupt {
		return base + 4*uint64(tr.Cause)
	}
	return base
}
