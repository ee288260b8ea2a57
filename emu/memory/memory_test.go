package memory

import "testing"

func TestLoadStoreRoundTrip(t *testing.T) {
	m := New(0x80000000, 4096)

	cases := []struct {
		width Width
		value uint64
	}{
		{Byte, 0xAB},
		{Half, 0xBEEF},
		{Word, 0xDEADBEEF},
		{Double, 0x0123456789ABCDEF},
	}

	for _, c := range cases {
		addr := m.Base + 0x100
		if err := m.Store(addr, c.width, c.value); err != nil {
			t.Fatalf("store width %d: %v", c.width, err)
		}
		got, err := m.Load(addr, c.width)
		if err != nil {
			t.Fatalf("load width %d: %v", c.width, err)
		}
		if got != c.value {
			t.Errorf("width %d: got 0x%x, want 0x%x", c.width, got, c.value)
		}
	}
}

func TestLoadLittleEndian(t *testing.T) {
	m := New(0, 16)
	if err := m.Store(0, Word, 0x01020304); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x04, 0x03, 0x02, 0x01}
	got := m.Bytes()[0:4]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got 0x%x, want 0x%x", i, got[i], want[i])
		}
	}
}

func TestOutOfRangeFaults(t *testing.T) {
	m := New(0x1000, 16)

	if _, err := m.Load(0x1000+16-1, Double); err == nil {
		t.Fatal("expected load access fault crossing end of DRAM")
	}
	if err := m.Store(0x1000+16, Byte, 1); err == nil {
		t.Fatal("expected store access fault past end of DRAM")
	}
	if _, err := m.Load(0x0, Byte); err == nil {
		t.Fatal("expected fault below base")
	}
}

func TestCopyInZeroFillsTail(t *testing.T) {
	m := New(0, 32)
	src := []byte{1, 2, 3, 4}
	if err := m.CopyIn(8, src, 16); err != nil {
		t.Fatal(err)
	}
	for i := 4; i < 16; i++ {
		if m.Bytes()[8+i] != 0 {
			t.Fatalf("tail byte %d not zero-filled", i)
		}
	}
}

func TestResetZeroes(t *testing.T) {
	m := New(0, 8)
	_ = m.Store(0, Double, 0xFFFFFFFFFFFFFFFF)
	m.Reset()
	v, _ := m.Load(0, Double)
	if v != 0 {
		t.Fatalf("expected zeroed DRAM after reset, got 0x%x", v)
	}
}
