package cpu

import (
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/trap"
)

// execXret implements mret/sret (spec §4.7: "pop the matching
// previous-interrupt-enable and previous-privilege fields and set PC from
// the corresponding epc"), the inverse of the trap-entry push in trap.go.
func (c *CPU) execXret(from trap.Mode) {
	mstatus := c.CSR.Get(csr.Mstatus)

	if from == trap.Machine {
		mpp := trap.Mode((mstatus & csr.StatusMPPMask) >> csr.StatusMPPShift)
		mpie := mstatus&csr.StatusMPIE != 0
		mstatus = setBit(mstatus, 3, mpie) // MIE = MPIE
		mstatus = setBit(mstatus, 7, true) // MPIE = 1
		mstatus = mstatus &^ csr.StatusMPPMask
		if mpp != trap.Machine {
			mstatus &^= csr.StatusMPRV
		}
		c.CSR.Set(csr.Mstatus, mstatus)
		c.Priv = mpp
		c.PC = c.CSR.Get(csr.Mepc)
		return
	}

	spp := trap.Supervisor
	if mstatus&csr.StatusSPP == 0 {
		spp = trap.User
	}
	spie := mstatus&csr.StatusSPIE != 0
	mstatus = setBit(mstatus, 1, spie) // SIE = SPIE
	mstatus = setBit(mstatus, 5, true) // SPIE = 1
	mstatus = mstatus &^ csr.StatusSPP
	if spp != trap.Machine {
		mstatus &^= csr.StatusMPRV
	}
	c.CSR.Set(csr.Mstatus, mstatus)
	c.Priv = spp
	c.PC = c.CSR.Get(csr.Sepc)
}
