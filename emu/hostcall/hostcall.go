/*
Package hostcall defines the machine-mode environment-call boundary
between the guest and the host (spec §4.10, §6): the fixed selector
enumeration, the register/memory marshalling conventions, and a Host
interface the embedding application implements to answer each selector.

The emulator core uses only this package's constants (selector register,
halt selector, I/O-region offset) and never calls Dispatch: an
EnvironmentCallFromMMode trap surfaces from emu/core as a RunResult of
kind HostCall carrying the raw selector, and it is the caller's job to
route that through Dispatch. This keeps the syscall ABI a pluggable concern instead
of baking one host's semantics into the execution engine.

Copyright 2026, rvchain authors
*/
package hostcall

import "encoding/binary"

// Selector values, by convention read from register t0/x5 (spec §6).
const (
	Balance              = 10
	LoadCode             = 11
	LoadCodeHash         = 12
	BlockNumber          = 13
	BlockHash            = 14
	Sload                = 15
	Sstore               = 16
	Tload                = 17
	Tstore               = 18
	LoadAccountDelegated = 19
	Selfdestruct         = 20
	ReturnCreateAddress  = 0x01
	Return               = 0x21 // within the EVM-opcode range; the guest's halt syscall
)

// EVMOpcodeLow/High bound the open-ended EVM-opcode syscall range (spec
// §6: "0x20..0xFF | EVM-opcode syscalls | varies | varies").
const (
	EVMOpcodeLow  = 0x20
	EVMOpcodeHigh = 0xff
)

// Argument/result register conventions (spec §4.10).
const (
	SelectorReg = 5  // t0
	ArgReg0     = 10 // a0
	ResultReg0  = 10 // a0
)

// IORegionOffsetFromTop is the conventional distance from the top of
// address space to the variable-length I/O region (spec §6: "by
// convention 20 MiB below the top of address space").
const IORegionOffsetFromTop = 20 * 1024 * 1024

// Address marshals/unmarshals a 20-byte account address into the
// three-limb register convention (spec §6: "low 8, next 8, high 4
// zero-extended").
type Address [20]byte

func (a Address) Limbs() (lo, mid, hi uint64) {
	lo = binary.LittleEndian.Uint64(a[0:8])
	mid = binary.LittleEndian.Uint64(a[8:16])
	hi = uint64(binary.LittleEndian.Uint32(a[16:20]))
	return
}

func AddressFromLimbs(lo, mid, hi uint64) Address {
	var a Address
	binary.LittleEndian.PutUint64(a[0:8], lo)
	binary.LittleEndian.PutUint64(a[8:16], mid)
	binary.LittleEndian.PutUint32(a[16:20], uint32(hi))
	return a
}

// U256 is a 256-bit value marshaled as four little-endian 64-bit limbs
// (spec §6).
type U256 [4]uint64

func U256FromBytes(b [32]byte) U256 {
	var u U256
	for i := range u {
		u[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return u
}

func (u U256) Bytes() [32]byte {
	var b [32]byte
	for i, limb := range u {
		binary.LittleEndian.PutUint64(b[i*8:i*8+8], limb)
	}
	return b
}

// Regs is the register slice a Dispatch call reads arguments from and
// writes results to; emu/core's Emulator satisfies it directly.
type Regs interface {
	Reg(i int) uint64
	SetReg(i int, v uint64)
}

// IOBuffer is the variable-length scratch region backing selectors whose
// arguments or results don't fit in registers.
type IOBuffer interface {
	ReadIO(n int) []byte
	WriteIO(data []byte)
}

// Host answers every selector in the fixed enumeration. EVMOpcode covers
// the whole 0x20..0xFF range; selector-specific methods cover the rest.
type Host interface {
	Balance(addr Address) U256
	LoadCode(addr Address) []byte
	LoadCodeHash(addr Address) U256
	BlockNumber() uint64
	BlockHash(number uint64) U256
	SLoad(addr Address, key U256) (value U256, cold bool)
	SStore(addr Address, key, value U256) (buf []byte)
	TLoad(addr Address, key U256) U256
	TStore(addr Address, key, value U256)
	LoadAccountDelegated(addr Address) uint64
	Selfdestruct(buf []byte) []byte
	ReturnCreateAddress() Address
	EVMOpcode(selector uint64, buf []byte) (result []byte, revert bool)
}

// Halted reports the guest's dedicated return syscall: Dispatch does not
// special-case it, but callers check this before re-entering run so they
// stop driving a finished guest.
func Halted(selector uint64) bool { return selector == Return }

// Dispatch decodes one environment call's arguments from regs/io, invokes
// the matching Host method, and writes the result back per spec §4.10.
// It does not advance PC; emu/core does that as part of resuming Step.
func Dispatch(h Host, selector uint64, r Regs, io IOBuffer) {
	switch selector {
	case Balance:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		writeU256(r, h.Balance(addr))
	case LoadCode:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		code := h.LoadCode(addr)
		io.WriteIO(code)
		r.SetReg(ResultReg0, uint64(len(code)))
	case LoadCodeHash:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		writeU256(r, h.LoadCodeHash(addr))
	case BlockNumber:
		r.SetReg(ResultReg0, h.BlockNumber())
	case BlockHash:
		writeU256(r, h.BlockHash(r.Reg(ArgReg0)))
	case Sload:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		key := readU256(r, ArgReg0+3)
		val, cold := h.SLoad(addr, key)
		writeU256(r, val)
		r.SetReg(ResultReg0+4, boolReg(cold))
	case Sstore:
		buf := io.ReadIO(1 << 16)
		out := h.SStore(decodeSstoreAddr(buf), decodeSstoreKey(buf), decodeSstoreValue(buf))
		io.WriteIO(out)
	case Tload:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		key := readU256(r, ArgReg0+3)
		writeU256(r, h.TLoad(addr, key))
	case Tstore:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		key := readU256(r, ArgReg0+3)
		value := readU256(r, ArgReg0+7)
		h.TStore(addr, key, value)
	case LoadAccountDelegated:
		addr := AddressFromLimbs(r.Reg(ArgReg0), r.Reg(ArgReg0+1), r.Reg(ArgReg0+2))
		r.SetReg(ResultReg0, h.LoadAccountDelegated(addr))
	case Selfdestruct:
		buf := io.ReadIO(1 << 16)
		io.WriteIO(h.Selfdestruct(buf))
	case ReturnCreateAddress:
		addr := h.ReturnCreateAddress()
		lo, mid, hi := addr.Limbs()
		r.SetReg(ResultReg0, lo)
		r.SetReg(ResultReg0+1, mid)
		r.SetReg(ResultReg0+2, hi)
	default:
		if selector >= EVMOpcodeLow && selector <= EVMOpcodeHigh {
			buf := io.ReadIO(1 << 16)
			result, revert := h.EVMOpcode(selector, buf)
			io.WriteIO(result)
			r.SetReg(ResultReg0, boolReg(revert))
		}
		// Selectors outside the fixed enumeration are a host-side error
		// that surfaces as a guest revert (spec §4.10); Dispatch leaves
		// registers untouched for the guest to observe.
	}
}

func writeU256(r Regs, v U256) {
	for i, limb := range v {
		r.SetReg(ResultReg0+i, limb)
	}
}

func readU256(r Regs, base int) U256 {
	var u U256
	for i := range u {
		u[i] = r.Reg(base + i)
	}
	return u
}

func boolReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// sstore's request/result are serialized into the I/O region rather than
// registers (spec §6: "serialized buffer at I/O region"): 20 bytes
// address, 32 bytes key, 32 bytes value.
func decodeSstoreAddr(buf []byte) Address {
	var a Address
	copy(a[:], buf[0:20])
	return a
}

func decodeSstoreKey(buf []byte) U256 {
	var b [32]byte
	copy(b[:], buf[20:52])
	return U256FromBytes(b)
}

func decodeSstoreValue(buf []byte) U256 {
	var b [32]byte
	copy(b[:], buf[52:84])
	return U256FromBytes(b)
}
