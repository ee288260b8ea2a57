/*
Package decode turns a raw 16- or 32-bit instruction word into the uniform
decoded form the executor dispatches on (spec §4.6). Decode never faults:
an unrecognized bit pattern comes back with Illegal set, for the executor
to turn into IllegalInstruction(raw). Op is Invalid for unassigned
opcodes; some reserved compressed forms keep the Op of their expansion.

Copyright 2026, rvchain authors
*/
package decode

// Op names the decoded instruction. Compressed encodings decode directly
// to the Op of their 32-bit equivalent (spec §4.6: "expanded to an
// equivalent 32-bit form before dispatch"); there is no separate
// compressed opcode space visible to the executor.
type Op int

const (
	Invalid Op = iota

	// RV64I base.
	Lui
	Auipc
	Jal
	Jalr
	Beq
	Bne
	Blt
	Bge
	Bltu
	Bgeu
	Lb
	Lh
	Lw
	Ld
	Lbu
	Lhu
	Lwu
	Sb
	Sh
	Sw
	Sd
	Addi
	Slti
	Sltiu
	Xori
	Ori
	Andi
	Slli
	Srli
	Srai
	Add
	Sub
	Sll
	Slt
	Sltu
	Xor
	Srl
	Sra
	Or
	And
	Addiw
	Slliw
	Srliw
	Sraiw
	Addw
	Subw
	Sllw
	Srlw
	Sraw
	Fence
	FenceI

	// M extension.
	Mul
	Mulh
	Mulhsu
	Mulhu
	Div
	Divu
	Rem
	Remu
	Mulw
	Divw
	Divuw
	Remw
	Remuw

	// A extension.
	LrW
	ScW
	AmoswapW
	AmoaddW
	AmoxorW
	AmoandW
	AmoorW
	AmominW
	AmomaxW
	AmominuW
	AmomaxuW
	LrD
	ScD
	AmoswapD
	AmoaddD
	AmoxorD
	AmoandD
	AmoorD
	AmominD
	AmomaxD
	AmominuD
	AmomaxuD

	// F/D extensions.
	Flw
	Fsw
	Fld
	Fsd
	FaddS
	FsubS
	FmulS
	FdivS
	FsqrtS
	FminS
	FmaxS
	FsgnjS
	FsgnjnS
	FsgnjxS
	FeqS
	FltS
	FleS
	FclassS
	FcvtWS
	FcvtWuS
	FcvtSW
	FcvtSWu
	FcvtLS
	FcvtLuS
	FcvtSL
	FcvtSLu
	FmvXW
	FmvWX
	FmaddS
	FmsubS
	FnmsubS
	FnmaddS
	FaddD
	FsubD
	FmulD
	FdivD
	FsqrtD
	FminD
	FmaxD
	FsgnjD
	FsgnjnD
	FsgnjxD
	FeqD
	FltD
	FleD
	FclassD
	FcvtWD
	FcvtWuD
	FcvtDW
	FcvtDWu
	FcvtLD
	FcvtLuD
	FcvtDL
	FcvtDLu
	FcvtSD
	FcvtDS
	FmvXD
	FmvDX
	FmaddD
	FmsubD
	FnmsubD
	FnmaddD

	// CSR / system.
	Csrrw
	Csrrs
	Csrrc
	Csrrwi
	Csrrsi
	Csrrci
	Ecall
	Ebreak
	Mret
	Sret
	Wfi
	SfenceVma
)

// Inst is the uniform decoded instruction.
type Inst struct {
	Raw     uint32 // original encoding, sign/zero position unchanged
	Size    int    // 2 (compressed) or 4
	Op      Op
	Rd      uint32
	Rs1     uint32
	Rs2     uint32
	Rs3     uint32 // FMA family only
	Funct3  uint32
	Funct7  uint32
	Imm     int64
	Aq, Rl  bool
	Illegal bool
}

func signExtend(v uint32, bit uint) int64 {
	shift := 31 - bit
	return int64(int32(v<<shift)) >> shift
}

func immI(raw uint32) int64 { return signExtend(raw>>20, 11) }
func immS(raw uint32) int64 {
	v := ((raw >> 25) << 5) | ((raw >> 7) & 0x1f)
	return signExtend(v, 11)
}
func immB(raw uint32) int64 {
	v := (((raw >> 31) & 1) << 12) | (((raw >> 7) & 1) << 11) |
		(((raw >> 25) & 0x3f) << 5) | (((raw >> 8) & 0xf) << 1)
	return signExtend(v, 12)
}
func immU(raw uint32) int64 { return int64(int32(raw & 0xfffff000)) }
func immJ(raw uint32) int64 {
	v := (((raw >> 31) & 1) << 20) | (((raw >> 12) & 0xff) << 12) |
		(((raw >> 20) & 1) << 11) | (((raw >> 21) & 0x3ff) << 1)
	return signExtend(v, 20)
}

// Decode inspects the low two bits of raw: 11 selects the 32-bit base
// encoding at bits [31:0]; anything else is a 16-bit compressed
// instruction in bits [15:0], expanded here directly into the decoded
// form of its 32-bit equivalent.
func Decode(raw uint32) Inst {
	if raw&0x3 == 0x3 {
		return decode32(raw)
	}
	return decode16(uint16(raw))
}

func decode32(raw uint32) Inst {
	in := Inst{Raw: raw, Size: 4}
	opcode := raw & 0x7f
	in.Rd = (raw >> 7) & 0x1f
	in.Funct3 = (raw >> 12) & 0x7
	in.Rs1 = (raw >> 15) & 0x1f
	in.Rs2 = (raw >> 20) & 0x1f
	in.Funct7 = (raw >> 25) & 0x7f
	in.Rs3 = (raw >> 27) & 0x1f
	in.Aq = (raw>>26)&1 != 0
	in.Rl = (raw>>25)&1 != 0

	switch opcode {
	case 0x37:
		in.Op = Lui
		in.Imm = immU(raw)
	case 0x17:
		in.Op = Auipc
		in.Imm = immU(raw)
	case 0x6f:
		in.Op = Jal
		in.Imm = immJ(raw)
	case 0x67:
		in.Op = Jalr
		in.Imm = immI(raw)
	case 0x63:
		in.Imm = immB(raw)
		switch in.Funct3 {
		case 0:
			in.Op = Beq
		case 1:
			in.Op = Bne
		case 4:
			in.Op = Blt
		case 5:
			in.Op = Bge
		case 6:
			in.Op = Bltu
		case 7:
			in.Op = Bgeu
		default:
			in.Illegal = true
		}
	case 0x03:
		in.Imm = immI(raw)
		switch in.Funct3 {
		case 0:
			in.Op = Lb
		case 1:
			in.Op = Lh
		case 2:
			in.Op = Lw
		case 3:
			in.Op = Ld
		case 4:
			in.Op = Lbu
		case 5:
			in.Op = Lhu
		case 6:
			in.Op = Lwu
		default:
			in.Illegal = true
		}
	case 0x23:
		in.Imm = immS(raw)
		switch in.Funct3 {
		case 0:
			in.Op = Sb
		case 1:
			in.Op = Sh
		case 2:
			in.Op = Sw
		case 3:
			in.Op = Sd
		default:
			in.Illegal = true
		}
	case 0x13:
		decodeOpImm(&in, raw)
	case 0x1b:
		decodeOpImm32(&in, raw)
	case 0x33:
		decodeOp(&in)
	case 0x3b:
		decodeOp32(&in)
	case 0x0f:
		if in.Funct3 == 1 {
			in.Op = FenceI
		} else {
			in.Op = Fence
		}
	case 0x2f:
		decodeAmo(&in)
	case 0x07:
		in.Imm = immI(raw)
		switch in.Funct3 {
		case 2:
			in.Op = Flw
		case 3:
			in.Op = Fld
		default:
			in.Illegal = true
		}
	case 0x27:
		in.Imm = immS(raw)
		switch in.Funct3 {
		case 2:
			in.Op = Fsw
		case 3:
			in.Op = Fsd
		default:
			in.Illegal = true
		}
	case 0x43:
		in.Op = FmaddS
		if in.Funct7&0x3 == 1 {
			in.Op = FmaddD
		}
	case 0x47:
		in.Op = FmsubS
		if in.Funct7&0x3 == 1 {
			in.Op = FmsubD
		}
	case 0x4b:
		in.Op = FnmsubS
		if in.Funct7&0x3 == 1 {
			in.Op = FnmsubD
		}
	case 0x4f:
		in.Op = FnmaddS
		if in.Funct7&0x3 == 1 {
			in.Op = FnmaddD
		}
	case 0x53:
		decodeFp(&in)
	case 0x73:
		decodeSystem(&in, raw)
	default:
		in.Illegal = true
	}
	return in
}

func decodeOpImm(in *Inst, raw uint32) {
	in.Imm = immI(raw)
	switch in.Funct3 {
	case 0:
		in.Op = Addi
	case 2:
		in.Op = Slti
	case 3:
		in.Op = Sltiu
	case 4:
		in.Op = Xori
	case 6:
		in.Op = Ori
	case 7:
		in.Op = Andi
	case 1:
		in.Op = Slli
		in.Imm = int64(raw>>20) & 0x3f
	case 5:
		in.Imm = int64(raw>>20) & 0x3f
		if (raw>>30)&1 != 0 {
			in.Op = Srai
		} else {
			in.Op = Srli
		}
	}
}

func decodeOpImm32(in *Inst, raw uint32) {
	in.Imm = immI(raw)
	switch in.Funct3 {
	case 0:
		in.Op = Addiw
	case 1:
		in.Op = Slliw
		in.Imm = int64(raw>>20) & 0x1f
	case 5:
		in.Imm = int64(raw>>20) & 0x1f
		if (raw>>25)&0x7f == 0x20 {
			in.Op = Sraiw
		} else {
			in.Op = Srliw
		}
	default:
		in.Illegal = true
	}
}

func decodeOp(in *Inst) {
	switch {
	case in.Funct7 == 0 && in.Funct3 == 0:
		in.Op = Add
	case in.Funct7 == 0x20 && in.Funct3 == 0:
		in.Op = Sub
	case in.Funct7 == 0 && in.Funct3 == 1:
		in.Op = Sll
	case in.Funct7 == 0 && in.Funct3 == 2:
		in.Op = Slt
	case in.Funct7 == 0 && in.Funct3 == 3:
		in.Op = Sltu
	case in.Funct7 == 0 && in.Funct3 == 4:
		in.Op = Xor
	case in.Funct7 == 0 && in.Funct3 == 5:
		in.Op = Srl
	case in.Funct7 == 0x20 && in.Funct3 == 5:
		in.Op = Sra
	case in.Funct7 == 0 && in.Funct3 == 6:
		in.Op = Or
	case in.Funct7 == 0 && in.Funct3 == 7:
		in.Op = And
	case in.Funct7 == 1:
		switch in.Funct3 {
		case 0:
			in.Op = Mul
		case 1:
			in.Op = Mulh
		case 2:
			in.Op = Mulhsu
		case 3:
			in.Op = Mulhu
		case 4:
			in.Op = Div
		case 5:
			in.Op = Divu
		case 6:
			in.Op = Rem
		case 7:
			in.Op = Remu
		}
	default:
		in.Illegal = true
	}
}

func decodeOp32(in *Inst) {
	switch {
	case in.Funct7 == 0 && in.Funct3 == 0:
		in.Op = Addw
	case in.Funct7 == 0x20 && in.Funct3 == 0:
		in.Op = Subw
	case in.Funct7 == 0 && in.Funct3 == 1:
		in.Op = Sllw
	case in.Funct7 == 0 && in.Funct3 == 5:
		in.Op = Srlw
	case in.Funct7 == 0x20 && in.Funct3 == 5:
		in.Op = Sraw
	case in.Funct7 == 1:
		switch in.Funct3 {
		case 0:
			in.Op = Mulw
		case 4:
			in.Op = Divw
		case 5:
			in.Op = Divuw
		case 6:
			in.Op = Remw
		case 7:
			in.Op = Remuw
		default:
			in.Illegal = true
		}
	default:
		in.Illegal = true
	}
}

func decodeAmo(in *Inst) {
	funct5 := in.Funct7 >> 2
	wide := in.Funct3 == 3
	var table map[uint32]Op
	if wide {
		table = map[uint32]Op{
			0x00: AmoaddD, 0x01: AmoswapD, 0x02: LrD, 0x03: ScD,
			0x04: AmoxorD, 0x08: AmoorD, 0x0c: AmoandD,
			0x10: AmominD, 0x14: AmomaxD, 0x18: AmominuD, 0x1c: AmomaxuD,
		}
	} else if in.Funct3 == 2 {
		table = map[uint32]Op{
			0x00: AmoaddW, 0x01: AmoswapW, 0x02: LrW, 0x03: ScW,
			0x04: AmoxorW, 0x08: AmoorW, 0x0c: AmoandW,
			0x10: AmominW, 0x14: AmomaxW, 0x18: AmominuW, 0x1c: AmomaxuW,
		}
	}
	if table == nil {
		in.Illegal = true
		return
	}
	op, ok := table[funct5]
	if !ok {
		in.Illegal = true
		return
	}
	in.Op = op
}

func decodeFp(in *Inst) {
	fmt := in.Funct7 & 0x3
	fn := in.Funct7 >> 2
	double := fmt == 1
	switch fn {
	case 0x00:
		in.Op = pick(double, FaddS, FaddD)
	case 0x01:
		in.Op = pick(double, FsubS, FsubD)
	case 0x02:
		in.Op = pick(double, FmulS, FmulD)
	case 0x03:
		in.Op = pick(double, FdivS, FdivD)
	case 0x0b:
		in.Op = pick(double, FsqrtS, FsqrtD)
	case 0x04:
		switch in.Funct3 {
		case 0:
			in.Op = pick(double, FsgnjS, FsgnjD)
		case 1:
			in.Op = pick(double, FsgnjnS, FsgnjnD)
		case 2:
			in.Op = pick(double, FsgnjxS, FsgnjxD)
		default:
			in.Illegal = true
		}
	case 0x05:
		switch in.Funct3 {
		case 0:
			in.Op = pick(double, FminS, FminD)
		case 1:
			in.Op = pick(double, FmaxS, FmaxD)
		default:
			in.Illegal = true
		}
	case 0x14:
		switch in.Funct3 {
		case 0:
			in.Op = pick(double, FleS, FleD)
		case 1:
			in.Op = pick(double, FltS, FltD)
		case 2:
			in.Op = pick(double, FeqS, FeqD)
		default:
			in.Illegal = true
		}
	case 0x20: // fcvt.s.d / fcvt.d.s
		if double {
			in.Op = FcvtDS
		} else {
			in.Op = FcvtSD
		}
	case 0x18:
		switch in.Rs2 {
		case 0:
			in.Op = pick(double, FcvtWS, FcvtWD)
		case 1:
			in.Op = pick(double, FcvtWuS, FcvtWuD)
		case 2:
			in.Op = pick(double, FcvtLS, FcvtLD)
		case 3:
			in.Op = pick(double, FcvtLuS, FcvtLuD)
		default:
			in.Illegal = true
		}
	case 0x1a:
		switch in.Rs2 {
		case 0:
			in.Op = pick(double, FcvtSW, FcvtDW)
		case 1:
			in.Op = pick(double, FcvtSWu, FcvtDWu)
		case 2:
			in.Op = pick(double, FcvtSL, FcvtDL)
		case 3:
			in.Op = pick(double, FcvtSLu, FcvtDLu)
		default:
			in.Illegal = true
		}
	case 0x1c:
		switch in.Funct3 {
		case 0:
			in.Op = pick(double, FmvXW, FmvXD)
		case 1:
			in.Op = pick(double, FclassS, FclassD)
		default:
			in.Illegal = true
		}
	case 0x1e:
		in.Op = pick(double, FmvWX, FmvDX)
	default:
		in.Illegal = true
	}
}

func pick(double bool, single, dbl Op) Op {
	if double {
		return dbl
	}
	return single
}

// decodeSystem handles the CSR instructions and the privileged/fence.vma
// forms sharing opcode 0x73. For the CSR-immediate variants (csrrwi/si/ci)
// the zero-extended 5-bit immediate travels in Rs1 per the encoding; the
// executor reads it from there instead of register file rs1.
func decodeSystem(in *Inst, raw uint32) {
	if in.Funct3 != 0 {
		in.Imm = int64(raw >> 20) // CSR address
		switch in.Funct3 {
		case 1:
			in.Op = Csrrw
		case 2:
			in.Op = Csrrs
		case 3:
			in.Op = Csrrc
		case 5:
			in.Op = Csrrwi
		case 6:
			in.Op = Csrrsi
		case 7:
			in.Op = Csrrci
		default:
			in.Illegal = true
		}
		return
	}
	csrField := raw >> 20
	switch {
	case csrField == 0 && in.Rs2 == 0:
		in.Op = Ecall
	case csrField == 1:
		in.Op = Ebreak
	case csrField == 0x302:
		in.Op = Mret
	case csrField == 0x102:
		in.Op = Sret
	case csrField == 0x105:
		in.Op = Wfi
	case (csrField>>5)&0x7f == 0x09:
		in.Op = SfenceVma
	default:
		in.Illegal = true
	}
}
