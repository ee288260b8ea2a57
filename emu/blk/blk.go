/*
Package blk implements a minimal legacy (pre-1.0, non-MMIO-v2) virtio
block device (spec §3/§4.2 "virtio-style block device", SPEC_FULL.md §11
"minimal virtio block device"): the descriptor/avail/used ring triad and
the legacy virtio-mmio register bank, backed by a host disk image.

Grounded on tinyrange-cc's internal/devices/virtio/queue.go (the
descriptor-chain walk and used-ring bookkeeping) and the virtio constant
naming visible in other_examples' gokvm machine-constants.go.go
(virtioBlkIRQ etc., albeit for a PCI/x86 transport rather than RISC-V
MMIO); the register bank itself follows the well-known legacy
virtio-mmio layout so an unmodified Linux virtio_mmio.c driver works
against it unchanged.

Copyright 2026, rvchain authors
*/
package blk

import (
	"encoding/binary"
	"io"

	"github.com/rvchain/engine/emu/memory"
)

// Legacy virtio-mmio register offsets (version 1 / legacy interface).
const (
	OffMagicValue     = 0x000
	OffVersion        = 0x004
	OffDeviceID       = 0x008
	OffVendorID       = 0x00c
	OffHostFeatures   = 0x010
	OffHostFeaturesSel = 0x014
	OffGuestFeatures  = 0x020
	OffGuestFeaturesSel = 0x024
	OffGuestPageSize  = 0x028
	OffQueueSel       = 0x030
	OffQueueNumMax    = 0x034
	OffQueueNum       = 0x038
	OffQueueAlign     = 0x03c
	OffQueuePFN       = 0x040
	OffQueueNotify    = 0x050
	OffInterruptStatus = 0x060
	OffInterruptACK   = 0x064
	OffStatus         = 0x070
	OffConfig         = 0x100

	Size = 0x200

	magicValue  = 0x74726976 // "virt"
	legacyVer   = 1
	deviceIDBlk = 2
	vendorID    = 0x52564348 // "RVCH"

	queueNumMax = 256
)

// request types and status codes, spec §11.
const (
	ReqIn    = 0 // read
	ReqOut   = 1 // write
	ReqFlush = 4

	StatusOK     = 0
	StatusIOErr  = 1
	StatusUnsupp = 2
)

// descriptor flags.
const (
	descFNext  = 1
	descFWrite = 2
)

// GuestMemory is the subset of DRAM access a descriptor-chain walk needs;
// emu/memory.DRAM satisfies it directly.
type GuestMemory interface {
	io.ReaderAt
	io.WriterAt
}

// Block is a single-queue legacy virtio-blk device sitting in guest
// physical address space; its backing store is any host disk image
// (ReadAt/WriteAt), most commonly an *os.File.
type Block struct {
	mem  GuestMemory
	disk io.ReaderAt
	diskW io.WriterAt
	sectors uint64

	hostFeatures  uint32
	guestFeatures uint32
	featuresSel   uint32
	pageSize      uint32
	queueNum      uint32
	queueAlign    uint32
	queuePFN      uint32
	status        uint32
	irqStatus     uint32

	lastAvailIdx uint16
	usedIdx      uint16
}

// disk must support ReadAt for a read-only image; pass an io.ReaderAt that
// also implements io.WriterAt (e.g. *os.File opened O_RDWR) to allow guest
// writes, otherwise write requests fail with StatusUnsupp.
func New(mem GuestMemory, disk io.ReaderAt, size uint64) *Block {
	b := &Block{mem: mem, disk: disk, sectors: size / 512, pageSize: 4096}
	if w, ok := disk.(io.WriterAt); ok {
		b.diskW = w
	}
	return b
}

func (b *Block) Name() string { return "virtio-blk" }

func (b *Block) Load(off uint64, width memory.Width) (uint64, error) {
	switch off {
	case OffMagicValue:
		return magicValue, nil
	case OffVersion:
		return legacyVer, nil
	case OffDeviceID:
		return deviceIDBlk, nil
	case OffVendorID:
		return vendorID, nil
	case OffHostFeatures:
		return uint64(b.hostFeatures), nil
	case OffQueueNumMax:
		return queueNumMax, nil
	case OffQueuePFN:
		return uint64(b.queuePFN), nil
	case OffInterruptStatus:
		return uint64(b.irqStatus), nil
	case OffStatus:
		return uint64(b.status), nil
	case OffConfig, OffConfig + 4:
		// capacity, in 512-byte sectors, little-endian 64-bit config field.
		shift := (off - OffConfig) * 8
		return (b.sectors >> shift) & 0xffffffff, nil
	default:
		return 0, nil
	}
}

func (b *Block) Store(off uint64, width memory.Width, value uint64) error {
	switch off {
	case OffHostFeaturesSel, OffGuestFeaturesSel:
		// single feature word modeled; selector accepted and ignored.
	case OffGuestFeatures:
		b.guestFeatures = uint32(value)
	case OffGuestPageSize:
		b.pageSize = uint32(value)
	case OffQueueSel:
		// single queue modeled; selector accepted and ignored.
	case OffQueueNum:
		b.queueNum = uint32(value)
	case OffQueueAlign:
		b.queueAlign = uint32(value)
	case OffQueuePFN:
		b.queuePFN = uint32(value)
	case OffQueueNotify:
		b.processQueue()
	case OffInterruptACK:
		b.irqStatus &^= uint32(value)
	case OffStatus:
		b.status = uint32(value)
		if b.status == 0 {
			b.reset()
		}
	}
	return nil
}

func (b *Block) Tick(n int) {}

func (b *Block) InterruptPending() bool { return b.irqStatus != 0 }

func (b *Block) reset() {
	b.queuePFN = 0
	b.queueNum = 0
	b.lastAvailIdx = 0
	b.usedIdx = 0
	b.irqStatus = 0
}

func (b *Block) queueBase() uint64 {
	return uint64(b.queuePFN) * uint64(b.pageSize)
}

// legacy ring layout: descriptor table, then avail ring, then (page-
// aligned) used ring, computed the same way Linux's legacy virtio_ring.h
// does (vring_size / vring_init).
func (b *Block) ringAddrs() (desc, avail, used uint64) {
	base := b.queueBase()
	n := uint64(b.queueNum)
	desc = base
	avail = desc + 16*n
	usedUnaligned := avail + 4 + 2*n + 2
	align := uint64(b.queueAlign)
	if align == 0 {
		align = 4096
	}
	used = (usedUnaligned + align - 1) &^ (align - 1)
	return
}

type descriptor struct {
	addr   uint64
	length uint32
	flags  uint16
	next   uint16
}

func (b *Block) readDescriptor(descTable uint64, idx uint16) (descriptor, bool) {
	var raw [16]byte
	if _, err := b.mem.ReadAt(raw[:], int64(descTable+uint64(idx)*16)); err != nil {
		return descriptor{}, false
	}
	return descriptor{
		addr:   binary.LittleEndian.Uint64(raw[0:8]),
		length: binary.LittleEndian.Uint32(raw[8:12]),
		flags:  binary.LittleEndian.Uint16(raw[12:14]),
		next:   binary.LittleEndian.Uint16(raw[14:16]),
	}, true
}

// processQueue drains every newly available descriptor chain, performs
// the requested read/write/flush against disk, and posts a used-ring
// entry plus an interrupt for each (spec §11).
func (b *Block) processQueue() {
	if b.queueNum == 0 {
		return
	}
	descTable, availAddr, usedAddr := b.ringAddrs()

	for {
		var hdr [4]byte
		if _, err := b.mem.ReadAt(hdr[:], int64(availAddr)); err != nil {
			return
		}
		availIdx := binary.LittleEndian.Uint16(hdr[2:4])
		if b.lastAvailIdx == availIdx {
			return
		}

		var headBuf [2]byte
		ringOff := availAddr + 4 + uint64(b.lastAvailIdx%uint16(b.queueNum))*2
		if _, err := b.mem.ReadAt(headBuf[:], int64(ringOff)); err != nil {
			return
		}
		head := binary.LittleEndian.Uint16(headBuf[:])
		b.lastAvailIdx++

		length := b.execChain(descTable, head)
		b.postUsed(usedAddr, head, length)
	}
}

// execChain walks one descriptor chain: descriptor 0 is the request
// header (type + reserved + sector), the middle descriptors are the data
// buffer, and the final descriptor is the one-byte status the guest reads
// back (spec §11's "legacy descriptor/avail/used ring triad").
func (b *Block) execChain(descTable uint64, head uint16) uint32 {
	idx := head
	var hdrDesc, statusDesc descriptor
	var dataDescs []descriptor
	for i := 0; i < 64; i++ {
		d, ok := b.readDescriptor(descTable, idx)
		if !ok {
			return 0
		}
		if i == 0 {
			hdrDesc = d
		} else if d.length == 1 && d.flags&descFWrite != 0 {
			statusDesc = d
		} else {
			dataDescs = append(dataDescs, d)
		}
		if d.flags&descFNext == 0 {
			break
		}
		idx = d.next
	}

	var hdr [16]byte
	if _, err := b.mem.ReadAt(hdr[:], int64(hdrDesc.addr)); err != nil {
		b.writeStatus(statusDesc, StatusIOErr)
		return 1
	}
	reqType := binary.LittleEndian.Uint32(hdr[0:4])
	sector := binary.LittleEndian.Uint64(hdr[8:16])

	var written uint32
	status := byte(StatusOK)
	switch reqType {
	case ReqIn:
		for _, d := range dataDescs {
			buf := make([]byte, d.length)
			if _, err := b.disk.ReadAt(buf, int64(sector*512)); err != nil {
				status = StatusIOErr
				break
			}
			if _, err := b.mem.WriteAt(buf, int64(d.addr)); err != nil {
				status = StatusIOErr
				break
			}
			sector += uint64(d.length) / 512
			written += d.length
		}
	case ReqOut:
		if b.diskW == nil {
			status = StatusUnsupp
			break
		}
		for _, d := range dataDescs {
			buf := make([]byte, d.length)
			if _, err := b.mem.ReadAt(buf, int64(d.addr)); err != nil {
				status = StatusIOErr
				break
			}
			if _, err := b.diskW.WriteAt(buf, int64(sector*512)); err != nil {
				status = StatusIOErr
				break
			}
			sector += uint64(d.length) / 512
		}
	case ReqFlush:
		// No host-side write cache is modeled; flush is always immediate.
	default:
		status = StatusUnsupp
	}

	b.writeStatus(statusDesc, status)
	return written + 1
}

func (b *Block) writeStatus(statusDesc descriptor, status byte) {
	if statusDesc.length != 1 {
		return
	}
	_, _ = b.mem.WriteAt([]byte{status}, int64(statusDesc.addr))
}

func (b *Block) postUsed(usedAddr uint64, head uint16, length uint32) {
	var elem [8]byte
	binary.LittleEndian.PutUint32(elem[0:4], uint32(head))
	binary.LittleEndian.PutUint32(elem[4:8], length)
	ringOff := usedAddr + 4 + uint64(b.usedIdx%uint16(b.queueNum))*8
	_, _ = b.mem.WriteAt(elem[:], int64(ringOff))
	b.usedIdx++
	var idxBuf [2]byte
	binary.LittleEndian.PutUint16(idxBuf[:], b.usedIdx)
	_, _ = b.mem.WriteAt(idxBuf[:], int64(usedAddr+2))
	b.irqStatus |= 0x1
}
