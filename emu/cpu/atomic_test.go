package cpu

import (
	"testing"

	"github.com/rvchain/engine/emu/trap"
)

// amo encodes an A-extension word-width R-type instruction: funct5 in the
// high bits of Funct7 (aq/rl occupy the low two, left zero here).
func amo(funct5, rs2, rs1, rd uint32) uint32 {
	return rtype(funct5<<2, rs2, rs1, 2, rd, 0x2f)
}

func TestExecAmoAddWReturnsOldAndStoresSum(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 100) // address
	c.SetX(2, 5)   // addend
	if f := c.Bus.Store(100, 4, 10); f != nil {
		t.Fatalf("seed memory: %v", f)
	}
	storeWord(t, c, 0, amo(0x00, 2, 1, 3)) // amoadd.w x3, x2, (x1)

	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.GetX(3); got != 10 {
		t.Fatalf("rd = %d, want 10 (old value)", got)
	}
	v, _ := c.Bus.Load(trap.AccessLoad, 100, 4)
	if v != 15 {
		t.Fatalf("memory = %d, want 15", v)
	}
}

func TestExecLrScRoundTripSucceeds(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 200)
	c.SetX(2, 0xabc)
	if f := c.Bus.Store(200, 4, 1); f != nil {
		t.Fatalf("seed memory: %v", f)
	}
	storeWord(t, c, 0, amo(0x02, 0, 1, 10))  // lr.w x10, (x1)
	storeWord(t, c, 4, amo(0x03, 2, 1, 11)) // sc.w x11, x2, (x1)

	if tr := c.Step(); tr != nil {
		t.Fatalf("lr step: %v", tr)
	}
	if got := c.GetX(10); got != 1 {
		t.Fatalf("lr result = %d, want 1", got)
	}
	if tr := c.Step(); tr != nil {
		t.Fatalf("sc step: %v", tr)
	}
	if got := c.GetX(11); got != 0 {
		t.Fatalf("sc result = %d, want 0 (success)", got)
	}
	v, _ := c.Bus.Load(trap.AccessLoad, 200, 4)
	if v != 0xabc {
		t.Fatalf("memory = 0x%x, want 0xabc", v)
	}
}

func TestExecScWithoutReservationFails(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 300)
	c.SetX(2, 99)
	storeWord(t, c, 0, amo(0x03, 2, 1, 5)) // sc.w x5, x2, (x1), no prior lr

	if tr := c.Step(); tr != nil {
		t.Fatalf("step: %v", tr)
	}
	if got := c.GetX(5); got != 1 {
		t.Fatalf("sc result = %d, want 1 (failure)", got)
	}
}

func TestInterveningStoreInvalidatesReservation(t *testing.T) {
	c := newTestCPU(t)
	c.SetX(1, 400) // reservation address
	c.SetX(2, 500) // unrelated address
	c.SetX(3, 7)
	c.SetX(4, 1)
	storeWord(t, c, 0, amo(0x02, 0, 1, 10)) // lr.w x10, (x1)
	// sw x3, 0(x2): S-type imm[11:5]=0, rs2=3, rs1=2, funct3=2, imm[4:0]=0, opcode=0x23
	sw := uint32(0)<<25 | 3<<20 | 2<<15 | 2<<12 | 0<<7 | 0x23
	storeWord(t, c, 4, sw)
	storeWord(t, c, 8, amo(0x03, 4, 1, 11)) // sc.w x11, x4, (x1)

	if tr := c.Step(); tr != nil {
		t.Fatalf("lr step: %v", tr)
	}
	if tr := c.Step(); tr != nil {
		t.Fatalf("store step: %v", tr)
	}
	if tr := c.Step(); tr != nil {
		t.Fatalf("sc step: %v", tr)
	}
	if got := c.GetX(11); got != 1 {
		t.Fatalf("sc result = %d, want 1 (reservation invalidated by intervening store)", got)
	}
}
