package cpu

import (
	"math"

	"github.com/rvchain/engine/emu/decode"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

func (c *CPU) execFLoad(in decode.Inst) *trap.Trap {
	addr := c.GetX(in.Rs1) + uint64(in.Imm)
	width := memory.Word
	if in.Op == decode.Fld {
		width = memory.Double
	}
	v, tr := c.loadMem(addr, width)
	if tr != nil {
		return tr
	}
	if width == memory.Word {
		c.F[in.Rd] = nanBoxUpper | (v & 0xffffffff)
	} else {
		c.F[in.Rd] = v
	}
	return nil
}

func (c *CPU) execFStore(in decode.Inst) *trap.Trap {
	addr := c.GetX(in.Rs1) + uint64(in.Imm)
	if in.Op == decode.Fsw {
		return c.storeMem(addr, memory.Word, uint64(math.Float32bits(c.getF32(in.Rs2))))
	}
	return c.storeMem(addr, memory.Double, c.F[in.Rs2])
}

// execFp dispatches every register-register F/D instruction (spec §4.7).
// Rounding is always round-to-nearest-even; the instruction's rm field and
// FCSR.frm are not separately modeled since Go's float ops only offer
// round-to-nearest (documented open-question decision).
func (c *CPU) execFp(in decode.Inst) {
	switch in.Op {
	case decode.FaddS:
		c.setF32(in.Rd, c.getF32(in.Rs1)+c.getF32(in.Rs2))
	case decode.FsubS:
		c.setF32(in.Rd, c.getF32(in.Rs1)-c.getF32(in.Rs2))
	case decode.FmulS:
		c.setF32(in.Rd, c.getF32(in.Rs1)*c.getF32(in.Rs2))
	case decode.FdivS:
		c.setF32(in.Rd, c.getF32(in.Rs1)/c.getF32(in.Rs2))
	case decode.FsqrtS:
		c.setF32(in.Rd, float32(math.Sqrt(float64(c.getF32(in.Rs1)))))
	case decode.FminS:
		c.setF32(in.Rd, fminF32(c.getF32(in.Rs1), c.getF32(in.Rs2)))
	case decode.FmaxS:
		c.setF32(in.Rd, fmaxF32(c.getF32(in.Rs1), c.getF32(in.Rs2)))
	case decode.FsgnjS:
		c.setF32(in.Rd, sgnj32(c.getF32(in.Rs1), c.getF32(in.Rs2), false, false))
	case decode.FsgnjnS:
		c.setF32(in.Rd, sgnj32(c.getF32(in.Rs1), c.getF32(in.Rs2), true, false))
	case decode.FsgnjxS:
		c.setF32(in.Rd, sgnj32(c.getF32(in.Rs1), c.getF32(in.Rs2), false, true))
	case decode.FeqS:
		a, b := c.getF32(in.Rs1), c.getF32(in.Rs2)
		c.SetX(in.Rd, boolU64(!isNaN32(a) && !isNaN32(b) && a == b))
	case decode.FltS:
		a, b := c.getF32(in.Rs1), c.getF32(in.Rs2)
		c.SetX(in.Rd, boolU64(!isNaN32(a) && !isNaN32(b) && a < b))
	case decode.FleS:
		a, b := c.getF32(in.Rs1), c.getF32(in.Rs2)
		c.SetX(in.Rd, boolU64(!isNaN32(a) && !isNaN32(b) && a <= b))
	case decode.FclassS:
		c.SetX(in.Rd, fclass32(c.getF32(in.Rs1)))
	case decode.FcvtWS:
		c.SetX(in.Rd, uint64(int64(int32(cvtToInt(float64(c.getF32(in.Rs1)), -1<<31, 1<<31-1)))))
	case decode.FcvtWuS:
		c.SetX(in.Rd, uint64(int32(cvtToUint(float64(c.getF32(in.Rs1)), 1<<32-1))))
	case decode.FcvtLS:
		c.SetX(in.Rd, uint64(cvtToInt(float64(c.getF32(in.Rs1)), math.MinInt64, math.MaxInt64)))
	case decode.FcvtLuS:
		c.SetX(in.Rd, cvtToUint(float64(c.getF32(in.Rs1)), math.MaxUint64))
	case decode.FcvtSW:
		c.setF32(in.Rd, float32(int32(c.GetX(in.Rs1))))
	case decode.FcvtSWu:
		c.setF32(in.Rd, float32(uint32(c.GetX(in.Rs1))))
	case decode.FcvtSL:
		c.setF32(in.Rd, float32(int64(c.GetX(in.Rs1))))
	case decode.FcvtSLu:
		c.setF32(in.Rd, float32(c.GetX(in.Rs1)))
	case decode.FmvXW:
		c.SetX(in.Rd, uint64(int64(int32(math.Float32bits(c.getF32(in.Rs1))))))
	case decode.FmvWX:
		c.setF32(in.Rd, math.Float32frombits(uint32(c.GetX(in.Rs1))))

	case decode.FaddD:
		c.setF64(in.Rd, c.getF64(in.Rs1)+c.getF64(in.Rs2))
	case decode.FsubD:
		c.setF64(in.Rd, c.getF64(in.Rs1)-c.getF64(in.Rs2))
	case decode.FmulD:
		c.setF64(in.Rd, c.getF64(in.Rs1)*c.getF64(in.Rs2))
	case decode.FdivD:
		c.setF64(in.Rd, c.getF64(in.Rs1)/c.getF64(in.Rs2))
	case decode.FsqrtD:
		c.setF64(in.Rd, math.Sqrt(c.getF64(in.Rs1)))
	case decode.FminD:
		c.setF64(in.Rd, fminF64(c.getF64(in.Rs1), c.getF64(in.Rs2)))
	case decode.FmaxD:
		c.setF64(in.Rd, fmaxF64(c.getF64(in.Rs1), c.getF64(in.Rs2)))
	case decode.FsgnjD:
		c.setF64(in.Rd, sgnj64(c.getF64(in.Rs1), c.getF64(in.Rs2), false, false))
	case decode.FsgnjnD:
		c.setF64(in.Rd, sgnj64(c.getF64(in.Rs1), c.getF64(in.Rs2), true, false))
	case decode.FsgnjxD:
		c.setF64(in.Rd, sgnj64(c.getF64(in.Rs1), c.getF64(in.Rs2), false, true))
	case decode.FeqD:
		a, b := c.getF64(in.Rs1), c.getF64(in.Rs2)
		c.SetX(in.Rd, boolU64(!isNaN64(a) && !isNaN64(b) && a == b))
	case decode.FltD:
		a, b := c.getF64(in.Rs1), c.getF64(in.Rs2)
		c.SetX(in.Rd, boolU64(!isNaN64(a) && !isNaN64(b) && a < b))
	case decode.FleD:
		a, b := c.getF64(in.Rs1), c.getF64(in.Rs2)
		c.SetX(in.Rd, boolU64(!isNaN64(a) && !isNaN64(b) && a <= b))
	case decode.FclassD:
		c.SetX(in.Rd, fclass64(c.getF64(in.Rs1)))
	case decode.FcvtWD:
		c.SetX(in.Rd, uint64(int64(int32(cvtToInt(c.getF64(in.Rs1), -1<<31, 1<<31-1)))))
	case decode.FcvtWuD:
		c.SetX(in.Rd, uint64(int32(cvtToUint(c.getF64(in.Rs1), 1<<32-1))))
	case decode.FcvtLD:
		c.SetX(in.Rd, uint64(cvtToInt(c.getF64(in.Rs1), math.MinInt64, math.MaxInt64)))
	case decode.FcvtLuD:
		c.SetX(in.Rd, cvtToUint(c.getF64(in.Rs1), math.MaxUint64))
	case decode.FcvtDW:
		c.setF64(in.Rd, float64(int32(c.GetX(in.Rs1))))
	case decode.FcvtDWu:
		c.setF64(in.Rd, float64(uint32(c.GetX(in.Rs1))))
	case decode.FcvtDL:
		c.setF64(in.Rd, float64(int64(c.GetX(in.Rs1))))
	case decode.FcvtDLu:
		c.setF64(in.Rd, float64(c.GetX(in.Rs1)))
	case decode.FcvtSD:
		c.setF32(in.Rd, float32(c.getF64(in.Rs1)))
	case decode.FcvtDS:
		c.setF64(in.Rd, float64(c.getF32(in.Rs1)))
	case decode.FmvXD:
		c.SetX(in.Rd, c.F[in.Rs1])
	case decode.FmvDX:
		c.F[in.Rd] = c.GetX(in.Rs1)

	case decode.FmaddS:
		c.setF32(in.Rd, c.getF32(in.Rs1)*c.getF32(in.Rs2)+c.getF32(in.Rs3))
	case decode.FmsubS:
		c.setF32(in.Rd, c.getF32(in.Rs1)*c.getF32(in.Rs2)-c.getF32(in.Rs3))
	case decode.FnmsubS:
		c.setF32(in.Rd, -(c.getF32(in.Rs1)*c.getF32(in.Rs2))+c.getF32(in.Rs3))
	case decode.FnmaddS:
		c.setF32(in.Rd, -(c.getF32(in.Rs1)*c.getF32(in.Rs2))-c.getF32(in.Rs3))
	case decode.FmaddD:
		c.setF64(in.Rd, c.getF64(in.Rs1)*c.getF64(in.Rs2)+c.getF64(in.Rs3))
	case decode.FmsubD:
		c.setF64(in.Rd, c.getF64(in.Rs1)*c.getF64(in.Rs2)-c.getF64(in.Rs3))
	case decode.FnmsubD:
		c.setF64(in.Rd, -(c.getF64(in.Rs1)*c.getF64(in.Rs2))+c.getF64(in.Rs3))
	case decode.FnmaddD:
		c.setF64(in.Rd, -(c.getF64(in.Rs1)*c.getF64(in.Rs2))-c.getF64(in.Rs3))
	}
}

func sgnj32(a, b float32, negate, xor bool) float32 {
	sign := math.Signbit(float64(b))
	if negate {
		sign = !sign
	}
	if xor {
		sign = math.Signbit(float64(a)) != sign
	}
	mag := float32(math.Abs(float64(a)))
	if sign {
		return -mag
	}
	return mag
}

func sgnj64(a, b float64, negate, xor bool) float64 {
	sign := math.Signbit(b)
	if negate {
		sign = !sign
	}
	if xor {
		sign = math.Signbit(a) != sign
	}
	mag := math.Abs(a)
	if sign {
		return -mag
	}
	return mag
}

func cvtToInt(f float64, min, max int64) int64 {
	if isNaN64(f) {
		return max
	}
	if f >= float64(max) {
		return max
	}
	if f <= float64(min) {
		return min
	}
	return int64(f)
}

func cvtToUint(f float64, max uint64) uint64 {
	if isNaN64(f) || f < 0 {
		return 0
	}
	if f >= float64(max) {
		return max
	}
	return uint64(f)
}
