package cpu

import (
	"github.com/rvchain/engine/emu/decode"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

// execAtomic implements the A extension (spec §4.7): lr records a
// reservation, sc consumes it, and the amo{...} family read-modify-write
// atomically from the executor's single-threaded point of view.
func (c *CPU) execAtomic(in decode.Inst) *trap.Trap {
	width := memory.Word
	if isDoubleAmo(in.Op) {
		width = memory.Double
	}
	addr := c.GetX(in.Rs1)

	switch in.Op {
	case decode.LrW, decode.LrD:
		v, tr := c.loadMem(addr, width)
		if tr != nil {
			return tr
		}
		c.Reservation = Reservation{Valid: true, Addr: addr, Width: width}
		c.SetX(in.Rd, signExtendAmoLoad(v, width))
		return nil

	case decode.ScW, decode.ScD:
		ok := c.Reservation.Valid && c.Reservation.Addr == addr && c.Reservation.Width == width
		c.Reservation = Reservation{}
		if !ok {
			c.SetX(in.Rd, 1)
			return nil
		}
		if tr := c.storeMem(addr, width, truncWidth(c.GetX(in.Rs2), width)); tr != nil {
			return tr
		}
		c.SetX(in.Rd, 0)
		return nil
	}

	old, tr := c.loadMem(addr, width)
	if tr != nil {
		return tr
	}
	old = signExtendAmoLoad(old, width)
	rhs := c.GetX(in.Rs2)

	var result uint64
	switch in.Op {
	case decode.AmoswapW, decode.AmoswapD:
		result = rhs
	case decode.AmoaddW, decode.AmoaddD:
		result = old + rhs
	case decode.AmoxorW, decode.AmoxorD:
		result = old ^ rhs
	case decode.AmoandW, decode.AmoandD:
		result = old & rhs
	case decode.AmoorW, decode.AmoorD:
		result = old | rhs
	case decode.AmominW, decode.AmominD:
		result = amoMinMax(old, rhs, width, true, false)
	case decode.AmomaxW, decode.AmomaxD:
		result = amoMinMax(old, rhs, width, false, false)
	case decode.AmominuW, decode.AmominuD:
		result = amoMinMax(old, rhs, width, true, true)
	case decode.AmomaxuW, decode.AmomaxuD:
		result = amoMinMax(old, rhs, width, false, true)
	}

	if tr := c.storeMem(addr, width, truncWidth(result, width)); tr != nil {
		return tr
	}
	c.SetX(in.Rd, old)
	return nil
}

func isDoubleAmo(op decode.Op) bool {
	switch op {
	case decode.LrD, decode.ScD, decode.AmoswapD, decode.AmoaddD, decode.AmoxorD,
		decode.AmoandD, decode.AmoorD, decode.AmominD, decode.AmomaxD,
		decode.AmominuD, decode.AmomaxuD:
		return true
	}
	return false
}

func signExtendAmoLoad(v uint64, width memory.Width) uint64 {
	if width == memory.Word {
		return uint64(int64(int32(v)))
	}
	return v
}

func amoMinMax(a, b uint64, width memory.Width, min, unsigned bool) uint64 {
	if unsigned {
		if width == memory.Word {
			a, b = uint64(uint32(a)), uint64(uint32(b))
		}
		if min == (a < b) {
			return a
		}
		return b
	}
	sa, sb := int64(a), int64(b)
	if width == memory.Word {
		sa, sb = int64(int32(a)), int64(int32(b))
	}
	if min == (sa < sb) {
		return a
	}
	return b
}
