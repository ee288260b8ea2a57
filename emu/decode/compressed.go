package decode

// decode16 expands a 16-bit compressed instruction into the decoded form
// of its 32-bit equivalent (spec §4.6). Register fields for the
// reduced-register formats (rd'/rs1'/rs2' in bits [4:2]/[9:7]) map to
// x8..x15.

func rcPrime(bits uint16) uint32 { return uint32(bits&0x7) + 8 }

func decode16(raw uint16) Inst {
	in := Inst{Raw: uint32(raw), Size: 2}
	op := raw & 0x3
	funct3 := (raw >> 13) & 0x7

	switch op {
	case 0x0:
		decodeC0(&in, raw, funct3)
	case 0x1:
		decodeC1(&in, raw, funct3)
	case 0x2:
		decodeC2(&in, raw, funct3)
	default:
		in.Illegal = true
	}
	return in
}

func decodeC0(in *Inst, raw uint16, funct3 uint16) {
	rdp := rcPrime(raw >> 2)
	rs1p := rcPrime(raw >> 7)
	switch funct3 {
	case 0x0: // c.addi4spn
		nzuimm := ((raw>>5)&0x1)<<3 | ((raw>>6)&0x1)<<2 | ((raw>>7)&0xf)<<6 | ((raw>>11)&0x3)<<4
		if nzuimm == 0 {
			in.Illegal = true
			return
		}
		in.Op = Addi
		in.Rd = rdp
		in.Rs1 = 2
		in.Imm = int64(nzuimm)
	case 0x1: // c.fld
		in.Op = Fld
		in.Rd = rdp
		in.Rs1 = rs1p
		in.Imm = int64(cLdImm(raw))
	case 0x2: // c.lw
		in.Op = Lw
		in.Rd = rdp
		in.Rs1 = rs1p
		in.Imm = int64(cLwImm(raw))
	case 0x3: // c.ld
		in.Op = Ld
		in.Rd = rdp
		in.Rs1 = rs1p
		in.Imm = int64(cLdImm(raw))
	case 0x5: // c.fsd
		in.Op = Fsd
		in.Rs1 = rs1p
		in.Rs2 = rdp
		in.Imm = int64(cLdImm(raw))
	case 0x6: // c.sw
		in.Op = Sw
		in.Rs1 = rs1p
		in.Rs2 = rdp
		in.Imm = int64(cLwImm(raw))
	case 0x7: // c.sd
		in.Op = Sd
		in.Rs1 = rs1p
		in.Rs2 = rdp
		in.Imm = int64(cLdImm(raw))
	default:
		in.Illegal = true
	}
}

func cLwImm(raw uint16) uint32 {
	return ((uint32(raw>>6) & 0x1) << 2) | ((uint32(raw>>10) & 0x7) << 3) | ((uint32(raw>>5) & 0x1) << 6)
}

func cLdImm(raw uint16) uint32 {
	return ((uint32(raw>>10) & 0x7) << 3) | ((uint32(raw>>5) & 0x3) << 6)
}

func decodeC1(in *Inst, raw uint16, funct3 uint16) {
	rd := uint32(raw>>7) & 0x1f
	switch funct3 {
	case 0x0: // c.addi / c.nop
		in.Op = Addi
		in.Rd, in.Rs1 = rd, rd
		in.Imm = cImm6(raw)
	case 0x1: // c.addiw (RV64)
		in.Op = Addiw
		in.Rd, in.Rs1 = rd, rd
		in.Imm = cImm6(raw)
	case 0x2: // c.li
		in.Op = Addi
		in.Rd, in.Rs1 = rd, 0
		in.Imm = cImm6(raw)
	case 0x3:
		if rd == 2 { // c.addi16sp
			nz := ((raw>>6)&0x1)<<4 | ((raw>>2)&0x1)<<5 | ((raw>>5)&0x1)<<6 |
				((raw>>3)&0x3)<<7 | ((raw>>12)&0x1)<<9
			in.Op = Addi
			in.Rd, in.Rs1 = 2, 2
			in.Imm = signExtend(uint32(nz), 9)
		} else { // c.lui
			nz := (uint32(raw>>2) & 0x1f) | (uint32(raw>>12)&0x1)<<5
			in.Op = Lui
			in.Rd = rd
			in.Imm = signExtend(nz<<12, 17)
		}
		if rd == 0 {
			in.Illegal = true
		}
	case 0x4:
		decodeC1Alu(in, raw)
	case 0x5: // c.j
		in.Op = Jal
		in.Rd = 0
		in.Imm = cJImm(raw)
	case 0x6: // c.beqz
		in.Op = Beq
		in.Rs1 = rcPrime(raw >> 7)
		in.Rs2 = 0
		in.Imm = cBImm(raw)
	case 0x7: // c.bnez
		in.Op = Bne
		in.Rs1 = rcPrime(raw >> 7)
		in.Rs2 = 0
		in.Imm = cBImm(raw)
	}
}

func cImm6(raw uint16) int64 {
	v := (uint32(raw>>2) & 0x1f) | (uint32(raw>>12)&0x1)<<5
	return signExtend(v, 5)
}

func cJImm(raw uint16) int64 {
	v := ((raw>>3)&0x7)<<1 | ((raw>>11)&0x1)<<4 | ((raw>>2)&0x1)<<5 |
		((raw>>7)&0x1)<<6 | ((raw>>6)&0x1)<<7 | ((raw>>9)&0x3)<<8 |
		((raw>>8)&0x1)<<10 | ((raw>>12)&0x1)<<11
	return signExtend(uint32(v), 11)
}

func cBImm(raw uint16) int64 {
	v := ((raw>>3)&0x3)<<1 | ((raw>>10)&0x3)<<3 | ((raw>>2)&0x1)<<5 |
		((raw>>5)&0x3)<<6 | ((raw>>12)&0x1)<<8
	return signExtend(uint32(v), 8)
}

func decodeC1Alu(in *Inst, raw uint16) {
	rdp := rcPrime(raw >> 7)
	sub := (raw >> 10) & 0x3
	switch sub {
	case 0x0: // c.srli
		shamt := (uint32(raw>>2) & 0x1f) | (uint32(raw>>12)&0x1)<<5
		in.Op = Srli
		in.Rd, in.Rs1 = rdp, rdp
		in.Imm = int64(shamt)
	case 0x1: // c.srai
		shamt := (uint32(raw>>2) & 0x1f) | (uint32(raw>>12)&0x1)<<5
		in.Op = Srai
		in.Rd, in.Rs1 = rdp, rdp
		in.Imm = int64(shamt)
	case 0x2: // c.andi
		in.Op = Andi
		in.Rd, in.Rs1 = rdp, rdp
		in.Imm = cImm6(raw)
	case 0x3:
		rs2p := rcPrime(raw >> 2)
		wide := (raw>>12)&0x1 != 0
		funct2 := (raw >> 5) & 0x3
		in.Rd, in.Rs1, in.Rs2 = rdp, rdp, rs2p
		if !wide {
			switch funct2 {
			case 0x0:
				in.Op = Sub
			case 0x1:
				in.Op = Xor
			case 0x2:
				in.Op = Or
			case 0x3:
				in.Op = And
			}
		} else {
			switch funct2 {
			case 0x0:
				in.Op = Subw
			case 0x1:
				in.Op = Addw
			default:
				in.Illegal = true
			}
		}
	}
}

func decodeC2(in *Inst, raw uint16, funct3 uint16) {
	rd := uint32(raw>>7) & 0x1f
	rs2 := uint32(raw>>2) & 0x1f
	switch funct3 {
	case 0x0: // c.slli
		shamt := (uint32(raw>>2) & 0x1f) | (uint32(raw>>12)&0x1)<<5
		in.Op = Slli
		in.Rd, in.Rs1 = rd, rd
		in.Imm = int64(shamt)
	case 0x1: // c.fldsp
		in.Op = Fld
		in.Rd, in.Rs1 = rd, 2
		in.Imm = cLdspImm(raw)
	case 0x2: // c.lwsp
		in.Op = Lw
		in.Rd, in.Rs1 = rd, 2
		in.Imm = cLwspImm(raw)
		if rd == 0 {
			in.Illegal = true
		}
	case 0x3: // c.ldsp
		in.Op = Ld
		in.Rd, in.Rs1 = rd, 2
		in.Imm = cLdspImm(raw)
		if rd == 0 {
			in.Illegal = true
		}
	case 0x4:
		top := (raw >> 12) & 0x1
		switch {
		case top == 0 && rs2 == 0: // c.jr
			in.Op = Jalr
			in.Rd, in.Rs1, in.Imm = 0, rd, 0
			if rd == 0 {
				in.Illegal = true
			}
		case top == 0: // c.mv
			in.Op = Add
			in.Rd, in.Rs1, in.Rs2 = rd, 0, rs2
		case top == 1 && rd == 0 && rs2 == 0: // c.ebreak
			in.Op = Ebreak
		case top == 1 && rs2 == 0: // c.jalr
			in.Op = Jalr
			in.Rd, in.Rs1, in.Imm = 1, rd, 0
		default: // c.add
			in.Op = Add
			in.Rd, in.Rs1, in.Rs2 = rd, rd, rs2
		}
	case 0x5: // c.fsdsp
		in.Op = Fsd
		in.Rs1, in.Rs2 = 2, rs2
		in.Imm = cSdspImm(raw)
	case 0x6: // c.swsp
		in.Op = Sw
		in.Rs1, in.Rs2 = 2, rs2
		in.Imm = cSwspImm(raw)
	case 0x7: // c.sdsp
		in.Op = Sd
		in.Rs1, in.Rs2 = 2, rs2
		in.Imm = cSdspImm(raw)
	}
}

func cLwspImm(raw uint16) int64 {
	v := ((uint32(raw>>4) & 0x7) << 2) | ((uint32(raw>>12) & 0x1) << 5) | ((uint32(raw>>2) & 0x3) << 6)
	return int64(v)
}

func cLdspImm(raw uint16) int64 {
	v := ((uint32(raw>>5) & 0x3) << 3) | ((uint32(raw>>12) & 0x1) << 5) | ((uint32(raw>>2) & 0x7) << 6)
	return int64(v)
}

func cSwspImm(raw uint16) int64 {
	v := ((uint32(raw>>9) & 0xf) << 2) | ((uint32(raw>>7) & 0x3) << 6)
	return int64(v)
}

func cSdspImm(raw uint16) int64 {
	v := ((uint32(raw>>10) & 0x7) << 3) | ((uint32(raw>>7) & 0x7) << 6)
	return int64(v)
}
