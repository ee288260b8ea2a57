package bus

import (
	"testing"

	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

// stubDevice is a single 8-byte register window recording ticks, used to
// verify the bus routes loads/stores/ticks to the right window.
type stubDevice struct {
	reg   uint64
	ticks int
}

func (s *stubDevice) Name() string { return "stub" }
func (s *stubDevice) Load(off uint64, width memory.Width) (uint64, error) {
	if off != 0 {
		return 0, &memory.Fault{Addr: off, Width: width}
	}
	return s.reg, nil
}
func (s *stubDevice) Store(off uint64, width memory.Width, value uint64) error {
	if off != 0 {
		return &memory.Fault{Store: true, Addr: off, Width: width}
	}
	s.reg = value
	return nil
}
func (s *stubDevice) Tick(n int)            { s.ticks += n }
func (s *stubDevice) InterruptPending() bool { return false }

func TestBusRoutesToDeviceWindow(t *testing.T) {
	dram := memory.New(0x8000_0000, 4096)
	b := New(dram)
	dev := &stubDevice{}
	b.Map(0x1000_0000, 8, dev)

	if err := b.Store(0x1000_0000, memory.Double, 0x42); err != nil {
		t.Fatalf("store to device window: %v", err)
	}
	if dev.reg != 0x42 {
		t.Fatalf("device register not written: got 0x%x", dev.reg)
	}
	got, err := b.Load(trap.AccessLoad, 0x1000_0000, memory.Double)
	if err != nil {
		t.Fatalf("load from device window: %v", err)
	}
	if got != 0x42 {
		t.Fatalf("got 0x%x, want 0x42", got)
	}
}

func TestBusFallsBackToDRAM(t *testing.T) {
	dram := memory.New(0x8000_0000, 4096)
	b := New(dram)
	b.Map(0x1000_0000, 8, &stubDevice{})

	if err := b.Store(0x8000_0100, memory.Word, 0xdead); err != nil {
		t.Fatalf("store to dram: %v", err)
	}
	got, err := b.Load(trap.AccessLoad, 0x8000_0100, memory.Word)
	if err != nil {
		t.Fatalf("load from dram: %v", err)
	}
	if got != 0xdead {
		t.Fatalf("got 0x%x, want 0xdead", got)
	}
}

func TestBusTickFansOutToEveryDevice(t *testing.T) {
	dram := memory.New(0, 4096)
	b := New(dram)
	a, c := &stubDevice{}, &stubDevice{}
	b.Map(0x1000, 8, a)
	b.Map(0x2000, 8, c)

	b.Tick(7)

	if a.ticks != 7 || c.ticks != 7 {
		t.Fatalf("got ticks %d/%d, want 7/7", a.ticks, c.ticks)
	}
}

func TestDevicesReturnsInstallationOrder(t *testing.T) {
	dram := memory.New(0, 4096)
	b := New(dram)
	a, c := &stubDevice{}, &stubDevice{}
	b.Map(0x1000, 8, a)
	b.Map(0x2000, 8, c)

	devs := b.Devices()
	if len(devs) != 2 || devs[0] != a || devs[1] != c {
		t.Fatalf("devices not in installation order: %#v", devs)
	}
}
