package cpu

import (
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/decode"
	"github.com/rvchain/engine/emu/trap"
)

// execCsr implements csrrw/s/c and their immediate forms (spec §4.7:
// "reads sample the old value; writes occur only if the instruction is
// architecturally a write"). csrrs/csrrc/csrrsi/csrrci with rs1==x0 (or a
// zero immediate) are architecturally read-only and must not attempt the
// write, so a read-only CSR can still be read by them.
func (c *CPU) execCsr(in decode.Inst) *trap.Trap {
	addr := uint16(in.Imm)

	var srcVal uint64
	isImm := in.Op == decode.Csrrwi || in.Op == decode.Csrrsi || in.Op == decode.Csrrci
	if isImm {
		srcVal = uint64(in.Rs1)
	} else {
		srcVal = c.GetX(in.Rs1)
	}

	writes := true
	switch in.Op {
	case decode.Csrrs, decode.Csrrsi, decode.Csrrc, decode.Csrrci:
		writes = srcVal != 0
	}

	old, tr := c.CSR.Read(addr, c.Priv)
	if tr != nil {
		return tr
	}

	if writes {
		var newVal uint64
		switch in.Op {
		case decode.Csrrw, decode.Csrrwi:
			newVal = srcVal
		case decode.Csrrs, decode.Csrrsi:
			newVal = old | srcVal
		case decode.Csrrc, decode.Csrrci:
			newVal = old &^ srcVal
		}
		if tr := c.CSR.Write(addr, c.Priv, newVal); tr != nil {
			return tr
		}
		if addr == csr.Satp {
			c.MMU.Flush()
		}
	}

	c.SetX(in.Rd, old)
	return nil
}
