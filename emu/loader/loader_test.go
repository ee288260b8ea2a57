package loader

import (
	"encoding/binary"
	"testing"

	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
)

const (
	elfClass64  = 2
	elfDataLE   = 1
	elfVersion1 = 1
	etExec      = 2
	emRISCV     = 243
	ptLoad      = 1
)

// buildELF hand-assembles the smallest valid ELF64/RISC-V executable
// carrying one PT_LOAD segment (code) at vaddr, with entry == vaddr.
func buildELF(t *testing.T, vaddr uint64, code []byte) []byte {
	t.Helper()
	const ehsize = 64
	const phsize = 56
	phoff := uint64(ehsize)
	dataOff := phoff + phsize

	buf := make([]byte, dataOff+uint64(len(code)))

	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = elfClass64
	buf[5] = elfDataLE
	buf[6] = elfVersion1
	le := binary.LittleEndian
	le.PutUint16(buf[16:18], etExec)
	le.PutUint16(buf[18:20], emRISCV)
	le.PutUint32(buf[20:24], elfVersion1)
	le.PutUint64(buf[24:32], vaddr) // e_entry
	le.PutUint64(buf[32:40], phoff) // e_phoff
	le.PutUint64(buf[40:48], 0)     // e_shoff
	le.PutUint32(buf[48:52], 0)     // e_flags
	le.PutUint16(buf[52:54], ehsize)
	le.PutUint16(buf[54:56], phsize)
	le.PutUint16(buf[56:58], 1) // e_phnum
	le.PutUint16(buf[58:60], 0) // e_shentsize
	le.PutUint16(buf[60:62], 0) // e_shnum
	le.PutUint16(buf[62:64], 0) // e_shstrndx

	ph := buf[phoff : phoff+phsize]
	le.PutUint32(ph[0:4], ptLoad)
	le.PutUint32(ph[4:8], 7) // p_flags RWX
	le.PutUint64(ph[8:16], dataOff)
	le.PutUint64(ph[16:24], vaddr)
	le.PutUint64(ph[24:32], vaddr)
	le.PutUint64(ph[32:40], uint64(len(code)))
	le.PutUint64(ph[40:48], uint64(len(code)))
	le.PutUint64(ph[48:56], 4096)

	copy(buf[dataOff:], code)
	return buf
}

func TestLoadPlacesSegmentAndSetsEntry(t *testing.T) {
	const base = 0x8000_0000
	dram := memory.New(base, 1<<16)
	b := bus.New(dram)

	code := []byte{0x13, 0x00, 0x00, 0x00} // addi x0,x0,0 (nop)
	image := buildELF(t, base+0x10, code)

	c, err := Load(b, image, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.PC != base+0x10 {
		t.Fatalf("pc = 0x%x, want entry 0x%x", c.PC, base+0x10)
	}
	if c.Priv != trap.Machine {
		t.Fatalf("loaded cpu must start in machine mode, got %v", c.Priv)
	}
	got, ferr := dram.Load(base+0x10, memory.Word)
	if ferr != nil {
		t.Fatalf("reading loaded segment: %v", ferr)
	}
	if uint32(got) != 0x00000013 {
		t.Fatalf("segment bytes not copied: got 0x%x", got)
	}
	if sp := c.GetX(2); sp != base+(1<<16) {
		t.Fatalf("sp = 0x%x, want top of dram 0x%x", sp, base+(1<<16))
	}
}

func TestLoadPlacesInputBuffer(t *testing.T) {
	const base = 0x8000_0000
	dram := memory.New(base, 1<<16)
	b := bus.New(dram)
	code := []byte{0x13, 0x00, 0x00, 0x00}
	image := buildELF(t, base, code)

	input := []byte("hello")
	c, err := Load(b, image, input)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.GetX(10); got != uint64(len(input)) {
		t.Fatalf("a0 = %d, want input length %d", got, len(input))
	}
	lenWord, ferr := dram.Load(base+IOOffset, memory.Double)
	if ferr != nil {
		t.Fatalf("reading io length header: %v", ferr)
	}
	if lenWord != uint64(len(input)) {
		t.Fatalf("io header length = %d, want %d", lenWord, len(input))
	}
}

func TestLoadRejectsNonELF(t *testing.T) {
	dram := memory.New(0x8000_0000, 4096)
	b := bus.New(dram)
	if _, err := Load(b, []byte("not an elf"), nil); err == nil {
		t.Fatal("expected NotElf error")
	} else if le, ok := err.(*Error); !ok || le.Kind != ErrNotElf {
		t.Fatalf("got %v, want ErrNotElf", err)
	}
}

func TestLoadRejectsSegmentOutsideDram(t *testing.T) {
	const base = 0x8000_0000
	dram := memory.New(base, 4096)
	b := bus.New(dram)
	code := make([]byte, 16)
	// vaddr far beyond the tiny dram window.
	image := buildELF(t, base+1<<20, code)
	if _, err := Load(b, image, nil); err == nil {
		t.Fatal("expected SegmentOutOfDram error")
	} else if le, ok := err.(*Error); !ok || le.Kind != ErrSegmentOutOfDram {
		t.Fatalf("got %v, want ErrSegmentOutOfDram", err)
	}
}
