package cpu

import (
	"math"
	"math/bits"

	"github.com/rvchain/engine/emu/decode"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

func signExtendWidth(v uint64, width memory.Width) uint64 {
	switch width {
	case memory.Byte:
		return uint64(int64(int8(v)))
	case memory.Half:
		return uint64(int64(int16(v)))
	case memory.Word:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

func zeroExtendWidth(v uint64, width memory.Width) uint64 {
	switch width {
	case memory.Byte:
		return uint64(uint8(v))
	case memory.Half:
		return uint64(uint16(v))
	case memory.Word:
		return uint64(uint32(v))
	default:
		return v
	}
}

func truncWidth(v uint64, width memory.Width) uint64 {
	return zeroExtendWidth(v, width)
}

func (c *CPU) loadMem(addr uint64, width memory.Width) (uint64, *trap.Trap) {
	phys, tr := c.MMU.Translate(c.CSR, c.Bus, c.Priv, trap.AccessLoad, addr)
	if tr != nil {
		return 0, tr
	}
	return c.Bus.Load(trap.AccessLoad, phys, width)
}

func (c *CPU) storeMem(addr uint64, width memory.Width, value uint64) *trap.Trap {
	phys, tr := c.MMU.Translate(c.CSR, c.Bus, c.Priv, trap.AccessStore, addr)
	if tr != nil {
		return tr
	}
	if tr := c.Bus.Store(phys, width, value); tr != nil {
		return tr
	}
	c.Reservation = Reservation{}
	start := uint64(0)
	if addr >= 2 {
		start = (addr - 2) &^ 1
	}
	for pc := start; pc < addr+uint64(width); pc += 2 {
		if line := &c.cache[c.cacheIndex(pc)]; line.valid && line.pc == pc {
			line.valid = false
		}
	}
	return nil
}

// execute dispatches the decoded instruction. On success it advances PC
// per spec §4.7 ("PC advances by 4 (base) or 2 (compressed), or to a
// computed target ... CSR-based PC changes override the normal advance");
// a non-nil return means no further PC update has happened here.
func (c *CPU) execute(in decode.Inst) *trap.Trap {
	nextPC := c.PC + uint64(in.Size)

	switch in.Op {
	case decode.Lui:
		c.SetX(in.Rd, uint64(in.Imm))
	case decode.Auipc:
		c.SetX(in.Rd, c.PC+uint64(in.Imm))

	case decode.Jal:
		target := c.PC + uint64(in.Imm)
		if target&1 != 0 {
			return trap.Misaligned(trap.AccessInstruction, target)
		}
		c.SetX(in.Rd, nextPC)
		nextPC = target
	case decode.Jalr:
		target := (c.GetX(in.Rs1) + uint64(in.Imm)) &^ 1
		if target&1 != 0 {
			return trap.Misaligned(trap.AccessInstruction, target)
		}
		link := nextPC
		nextPC = target
		c.SetX(in.Rd, link)

	case decode.Beq, decode.Bne, decode.Blt, decode.Bge, decode.Bltu, decode.Bgeu:
		if branchTaken(in.Op, c.GetX(in.Rs1), c.GetX(in.Rs2)) {
			target := c.PC + uint64(in.Imm)
			if target&1 != 0 {
				return trap.Misaligned(trap.AccessInstruction, target)
			}
			nextPC = target
		}

	case decode.Lb, decode.Lh, decode.Lw, decode.Ld, decode.Lbu, decode.Lhu, decode.Lwu:
		if tr := c.execLoad(in); tr != nil {
			return tr
		}
	case decode.Sb, decode.Sh, decode.Sw, decode.Sd:
		if tr := c.execStore(in); tr != nil {
			return tr
		}

	case decode.Addi:
		c.SetX(in.Rd, c.GetX(in.Rs1)+uint64(in.Imm))
	case decode.Slti:
		c.SetX(in.Rd, boolU64(int64(c.GetX(in.Rs1)) < in.Imm))
	case decode.Sltiu:
		c.SetX(in.Rd, boolU64(c.GetX(in.Rs1) < uint64(in.Imm)))
	case decode.Xori:
		c.SetX(in.Rd, c.GetX(in.Rs1)^uint64(in.Imm))
	case decode.Ori:
		c.SetX(in.Rd, c.GetX(in.Rs1)|uint64(in.Imm))
	case decode.Andi:
		c.SetX(in.Rd, c.GetX(in.Rs1)&uint64(in.Imm))
	case decode.Slli:
		c.SetX(in.Rd, c.GetX(in.Rs1)<<uint(in.Imm&0x3f))
	case decode.Srli:
		c.SetX(in.Rd, c.GetX(in.Rs1)>>uint(in.Imm&0x3f))
	case decode.Srai:
		c.SetX(in.Rd, uint64(int64(c.GetX(in.Rs1))>>uint(in.Imm&0x3f)))

	case decode.Add:
		c.SetX(in.Rd, c.GetX(in.Rs1)+c.GetX(in.Rs2))
	case decode.Sub:
		c.SetX(in.Rd, c.GetX(in.Rs1)-c.GetX(in.Rs2))
	case decode.Sll:
		c.SetX(in.Rd, c.GetX(in.Rs1)<<(c.GetX(in.Rs2)&0x3f))
	case decode.Slt:
		c.SetX(in.Rd, boolU64(int64(c.GetX(in.Rs1)) < int64(c.GetX(in.Rs2))))
	case decode.Sltu:
		c.SetX(in.Rd, boolU64(c.GetX(in.Rs1) < c.GetX(in.Rs2)))
	case decode.Xor:
		c.SetX(in.Rd, c.GetX(in.Rs1)^c.GetX(in.Rs2))
	case decode.Srl:
		c.SetX(in.Rd, c.GetX(in.Rs1)>>(c.GetX(in.Rs2)&0x3f))
	case decode.Sra:
		c.SetX(in.Rd, uint64(int64(c.GetX(in.Rs1))>>(c.GetX(in.Rs2)&0x3f)))
	case decode.Or:
		c.SetX(in.Rd, c.GetX(in.Rs1)|c.GetX(in.Rs2))
	case decode.And:
		c.SetX(in.Rd, c.GetX(in.Rs1)&c.GetX(in.Rs2))

	case decode.Addiw:
		c.SetX(in.Rd, uint64(int32(c.GetX(in.Rs1))+int32(in.Imm)))
	case decode.Slliw:
		c.SetX(in.Rd, uint64(int32(uint32(c.GetX(in.Rs1))<<uint(in.Imm&0x1f))))
	case decode.Srliw:
		c.SetX(in.Rd, uint64(int32(uint32(c.GetX(in.Rs1))>>uint(in.Imm&0x1f))))
	case decode.Sraiw:
		c.SetX(in.Rd, uint64(int32(c.GetX(in.Rs1))>>uint(in.Imm&0x1f)))
	case decode.Addw:
		c.SetX(in.Rd, uint64(int32(c.GetX(in.Rs1))+int32(c.GetX(in.Rs2))))
	case decode.Subw:
		c.SetX(in.Rd, uint64(int32(c.GetX(in.Rs1))-int32(c.GetX(in.Rs2))))
	case decode.Sllw:
		c.SetX(in.Rd, uint64(int32(uint32(c.GetX(in.Rs1))<<(c.GetX(in.Rs2)&0x1f))))
	case decode.Srlw:
		c.SetX(in.Rd, uint64(int32(uint32(c.GetX(in.Rs1))>>(c.GetX(in.Rs2)&0x1f))))
	case decode.Sraw:
		c.SetX(in.Rd, uint64(int32(c.GetX(in.Rs1))>>(c.GetX(in.Rs2)&0x1f)))

	case decode.Fence, decode.FenceI:
		if in.Op == decode.FenceI {
			c.InvalidateFetchCache()
		}

	case decode.Mul, decode.Mulh, decode.Mulhsu, decode.Mulhu,
		decode.Div, decode.Divu, decode.Rem, decode.Remu,
		decode.Mulw, decode.Divw, decode.Divuw, decode.Remw, decode.Remuw:
		c.execMulDiv(in)

	case decode.LrW, decode.LrD, decode.ScW, decode.ScD,
		decode.AmoswapW, decode.AmoaddW, decode.AmoxorW, decode.AmoandW, decode.AmoorW,
		decode.AmominW, decode.AmomaxW, decode.AmominuW, decode.AmomaxuW,
		decode.AmoswapD, decode.AmoaddD, decode.AmoxorD, decode.AmoandD, decode.AmoorD,
		decode.AmominD, decode.AmomaxD, decode.AmominuD, decode.AmomaxuD:
		if tr := c.execAtomic(in); tr != nil {
			return tr
		}

	case decode.Flw, decode.Fld:
		if tr := c.execFLoad(in); tr != nil {
			return tr
		}
	case decode.Fsw, decode.Fsd:
		if tr := c.execFStore(in); tr != nil {
			return tr
		}

	case decode.FmaddS, decode.FmsubS, decode.FnmsubS, decode.FnmaddS,
		decode.FmaddD, decode.FmsubD, decode.FnmsubD, decode.FnmaddD,
		decode.FaddS, decode.FsubS, decode.FmulS, decode.FdivS, decode.FsqrtS,
		decode.FminS, decode.FmaxS, decode.FsgnjS, decode.FsgnjnS, decode.FsgnjxS,
		decode.FeqS, decode.FltS, decode.FleS, decode.FclassS,
		decode.FcvtWS, decode.FcvtWuS, decode.FcvtSW, decode.FcvtSWu,
		decode.FcvtLS, decode.FcvtLuS, decode.FcvtSL, decode.FcvtSLu,
		decode.FmvXW, decode.FmvWX,
		decode.FaddD, decode.FsubD, decode.FmulD, decode.FdivD, decode.FsqrtD,
		decode.FminD, decode.FmaxD, decode.FsgnjD, decode.FsgnjnD, decode.FsgnjxD,
		decode.FeqD, decode.FltD, decode.FleD, decode.FclassD,
		decode.FcvtWD, decode.FcvtWuD, decode.FcvtDW, decode.FcvtDWu,
		decode.FcvtLD, decode.FcvtLuD, decode.FcvtDL, decode.FcvtDLu,
		decode.FcvtSD, decode.FcvtDS, decode.FmvXD, decode.FmvDX:
		c.execFp(in)

	case decode.Csrrw, decode.Csrrs, decode.Csrrc, decode.Csrrwi, decode.Csrrsi, decode.Csrrci:
		if tr := c.execCsr(in); tr != nil {
			return tr
		}

	case decode.Ecall:
		switch c.Priv {
		case trap.Machine:
			return &trap.Trap{Cause: trap.EnvironmentCallFromMMode}
		case trap.Supervisor:
			return &trap.Trap{Cause: trap.EnvironmentCallFromSMode}
		default:
			return &trap.Trap{Cause: trap.EnvironmentCallFromUMode}
		}
	case decode.Ebreak:
		return &trap.Trap{Cause: trap.Breakpoint, Tval: c.PC}

	case decode.Mret:
		c.execXret(trap.Machine)
		nextPC = c.PC
	case decode.Sret:
		c.execXret(trap.Supervisor)
		nextPC = c.PC
	case decode.Wfi:
		c.WFI = true
	case decode.SfenceVma:
		c.MMU.Flush()

	default:
		return &trap.Trap{Cause: trap.IllegalInstruction, Tval: uint64(in.Raw)}
	}

	c.PC = nextPC
	c.InstRet++
	return nil
}

func branchTaken(op decode.Op, a, b uint64) bool {
	switch op {
	case decode.Beq:
		return a == b
	case decode.Bne:
		return a != b
	case decode.Blt:
		return int64(a) < int64(b)
	case decode.Bge:
		return int64(a) >= int64(b)
	case decode.Bltu:
		return a < b
	case decode.Bgeu:
		return a >= b
	}
	return false
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) execLoad(in decode.Inst) *trap.Trap {
	addr := c.GetX(in.Rs1) + uint64(in.Imm)
	var width memory.Width
	signed := false
	switch in.Op {
	case decode.Lb:
		width, signed = memory.Byte, true
	case decode.Lh:
		width, signed = memory.Half, true
	case decode.Lw:
		width, signed = memory.Word, true
	case decode.Ld:
		width = memory.Double
	case decode.Lbu:
		width = memory.Byte
	case decode.Lhu:
		width = memory.Half
	case decode.Lwu:
		width = memory.Word
	}
	v, tr := c.loadMem(addr, width)
	if tr != nil {
		return tr
	}
	if signed {
		v = signExtendWidth(v, width)
	} else {
		v = zeroExtendWidth(v, width)
	}
	c.SetX(in.Rd, v)
	return nil
}

func (c *CPU) execStore(in decode.Inst) *trap.Trap {
	addr := c.GetX(in.Rs1) + uint64(in.Imm)
	var width memory.Width
	switch in.Op {
	case decode.Sb:
		width = memory.Byte
	case decode.Sh:
		width = memory.Half
	case decode.Sw:
		width = memory.Word
	case decode.Sd:
		width = memory.Double
	}
	return c.storeMem(addr, width, truncWidth(c.GetX(in.Rs2), width))
}

func (c *CPU) execMulDiv(in decode.Inst) {
	a, b := c.GetX(in.Rs1), c.GetX(in.Rs2)
	switch in.Op {
	case decode.Mul:
		c.SetX(in.Rd, a*b)
	case decode.Mulh:
		c.SetX(in.Rd, uint64(mulh(int64(a), int64(b))))
	case decode.Mulhu:
		hi, _ := bits.Mul64(a, b)
		c.SetX(in.Rd, hi)
	case decode.Mulhsu:
		c.SetX(in.Rd, uint64(mulhsu(int64(a), b)))
	case decode.Div:
		c.SetX(in.Rd, uint64(sdiv(int64(a), int64(b))))
	case decode.Divu:
		if b == 0 {
			c.SetX(in.Rd, ^uint64(0))
		} else {
			c.SetX(in.Rd, a/b)
		}
	case decode.Rem:
		c.SetX(in.Rd, uint64(srem(int64(a), int64(b))))
	case decode.Remu:
		if b == 0 {
			c.SetX(in.Rd, a)
		} else {
			c.SetX(in.Rd, a%b)
		}
	case decode.Mulw:
		c.SetX(in.Rd, uint64(int32(a)*int32(b)))
	case decode.Divw:
		c.SetX(in.Rd, uint64(int32(sdiv(int64(int32(a)), int64(int32(b))))))
	case decode.Divuw:
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			c.SetX(in.Rd, ^uint64(0))
		} else {
			c.SetX(in.Rd, uint64(int32(ua/ub)))
		}
	case decode.Remw:
		c.SetX(in.Rd, uint64(int32(srem(int64(int32(a)), int64(int32(b))))))
	case decode.Remuw:
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			c.SetX(in.Rd, uint64(int32(ua)))
		} else {
			c.SetX(in.Rd, uint64(int32(ua%ub)))
		}
	}
}

// sdiv implements div/INT_MIN-over-minus-one per spec §4.7: division by
// zero returns all-ones; INT_MIN/-1 returns INT_MIN. No exception either way.
func sdiv(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == math.MinInt64 && b == -1 {
		return math.MinInt64
	}
	return a / b
}

func srem(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == math.MinInt64 && b == -1 {
		return 0
	}
	return a % b
}

// mulh and mulhsu use the standard unsigned-multiply-then-correct identity
// (Hacker's Delight §8-3) rather than a 128-bit signed multiply, since
// math/bits only offers the unsigned half.
func mulh(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return int64(hi)
}

func mulhsu(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return int64(hi)
}
