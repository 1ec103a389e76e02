package insn

// BaseSet selects the general-purpose register width used to resolve
// decode ambiguities that depend on XLEN. In the predicate subset this
// module decodes, the only such form is C.JAL, which exists on RV32
// only (RV64 reuses its encoding for C.ADDIW).
type BaseSet uint8

const (
	RV32I BaseSet = iota
	RV64I
)

// linkReg reports whether reg is one of the two link registers (x1,
// ra; x5, t0) recognized by the call/return convention.
func linkReg(reg uint8) bool {
	return reg == 1 || reg == 5
}

// Decode decodes a raw instruction word into its Info. Unknown or
// reserved encodings decode to an Info with every predicate false, per
// the binary image's "decode error vs miss" contract: an unknown
// instruction is not itself an error, only the combination of "this
// image holds code here but the encoding is not one defined by this
// base set" need be treated as a decode error by callers that require
// it.
func Decode(bits Bits, base BaseSet) Info {
	switch bits.Size {
	case 16:
		return decode16(uint16(bits.Raw), base)
	case 32:
		return decode32(uint32(bits.Raw))
	default:
		return unknown(bits.Size)
	}
}

func decode32(w uint32) Info {
	opcode := w & 0x7f
	rd := uint8((w >> 7) & 0x1f)
	funct3 := uint8((w >> 12) & 0x7)
	rs1 := uint8((w >> 15) & 0x1f)

	switch opcode {
	case 0x6f: // JAL
		imm := decodeJImm(w)
		i := &info{size: 4, isInferableJump: true, inferableImm: imm}
		if linkReg(rd) {
			i.isCall = true
		}
		return i
	case 0x67: // JALR
		if funct3 != 0 {
			return unknown(32)
		}
		imm := int16(int32(w) >> 20)
		i := &info{
			size:              4,
			isUninferableJump: true,
			jumpReg:           rs1,
			jumpImm:           imm,
		}
		if linkReg(rd) {
			i.isCall = true
		}
		if rd == 0 && linkReg(rs1) {
			i.isReturn = true
		}
		return i
	case 0x63: // Branch (B-type)
		switch funct3 {
		case 0b000, 0b001, 0b100, 0b101, 0b110, 0b111:
			imm := decodeBImm(w)
			return &info{size: 4, isBranch: true, branchImm: imm}
		default:
			return unknown(32)
		}
	case 0x37: // LUI
		imm := uint64(w & 0xfffff000)
		return &info{size: 4, hasUpperImm: true, upperReg: rd, upperImm: imm}
	case 0x17: // AUIPC
		imm := uint64(w & 0xfffff000)
		return &info{size: 4, hasUpperImm: true, upperReg: rd, upperImm: imm, upperIsPCRelative: true}
	case 0x73: // SYSTEM
		if funct3 != 0 {
			return unknown(32)
		}
		imm12 := (w >> 20) & 0xfff
		switch imm12 {
		case 0x000: // ECALL
			return &info{size: 4, isEcallOrEbreak: true}
		case 0x001: // EBREAK
			return &info{size: 4, isEcallOrEbreak: true, isEbreak: true}
		case 0x002, 0x102, 0x302: // URET, SRET, MRET
			return &info{size: 4, isReturnFromTrap: true}
		default:
			return unknown(32)
		}
	default:
		return unknown(32)
	}
}

func decode16(w uint16, base BaseSet) Info {
	quadrant := w & 0x3
	funct3 := uint8((w >> 13) & 0x7)

	switch quadrant {
	case 0b01:
		switch funct3 {
		case 0b001: // C.JAL (RV32C); C.ADDIW on RV64
			if base != RV32I {
				return unknown(16)
			}
			imm := decodeCJImm(w)
			return &info{size: 2, isInferableJump: true, inferableImm: int32(imm), isCall: true}
		case 0b101: // C.J
			imm := decodeCJImm(w)
			return &info{size: 2, isInferableJump: true, inferableImm: int32(imm)}
		case 0b011: // C.LUI / C.ADDI16SP
			rd := uint8((w >> 7) & 0x1f)
			if rd == 0 || rd == 2 {
				// rd=2 is C.ADDI16SP, not an upper-immediate load;
				// rd=0 is reserved. Reference decoder 0.3.1 wrongly
				// accepted both as C.LUI.
				return unknown(16)
			}
			nzimm := decodeCLuiImm(w)
			if nzimm == 0 {
				return unknown(16)
			}
			return &info{size: 2, hasUpperImm: true, upperReg: rd, upperImm: uint64(nzimm)}
		case 0b110: // C.BEQZ
			imm := decodeCBImm(w)
			return &info{size: 2, isBranch: true, branchImm: imm}
		case 0b111: // C.BNEZ
			imm := decodeCBImm(w)
			return &info{size: 2, isBranch: true, branchImm: imm}
		default:
			return unknown(16)
		}
	case 0b10:
		funct4 := uint8((w >> 12) & 0xf)
		rs1 := uint8((w >> 7) & 0x1f)
		rs2 := uint8((w >> 2) & 0x1f)
		switch funct4 {
		case 0b1000: // C.JR / reserved
			if rs1 == 0 || rs2 != 0 {
				return unknown(16)
			}
			// C.JR writes x0, so reading a link register makes it a return.
			return &info{size: 2, isUninferableJump: true, jumpReg: rs1, jumpImm: 0, isReturn: linkReg(rs1)}
		case 0b1001: // C.JALR / C.EBREAK
			if rs1 == 0 && rs2 == 0 {
				return &info{size: 2, isEcallOrEbreak: true, isEbreak: true}
			}
			if rs1 == 0 || rs2 != 0 {
				return unknown(16)
			}
			// C.JALR always writes x1, so it's a call; rd is
			// implicitly x1, never x0, so it can never be a return.
			return &info{size: 2, isUninferableJump: true, jumpReg: rs1, jumpImm: 0, isCall: true}
		default:
			return unknown(16)
		}
	default:
		return unknown(16)
	}
}

func decodeJImm(w uint32) int32 {
	imm20 := (w >> 31) & 0x1
	imm10_1 := (w >> 21) & 0x3ff
	imm11 := (w >> 20) & 0x1
	imm19_12 := (w >> 12) & 0xff
	u := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	return signExtend32(u, 21)
}

func decodeBImm(w uint32) int16 {
	imm12 := (w >> 31) & 0x1
	imm10_5 := (w >> 25) & 0x3f
	imm4_1 := (w >> 8) & 0xf
	imm11 := (w >> 7) & 0x1
	u := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	return int16(signExtend32(u, 13))
}

func decodeCJImm(w uint16) int16 {
	u32 := uint32(w)
	imm11 := (u32 >> 12) & 0x1
	imm4 := (u32 >> 11) & 0x1
	imm9_8 := (u32 >> 9) & 0x3
	imm10 := (u32 >> 8) & 0x1
	imm6 := (u32 >> 7) & 0x1
	imm7 := (u32 >> 6) & 0x1
	imm3_1 := (u32 >> 3) & 0x7
	imm5 := (u32 >> 2) & 0x1
	u := (imm11 << 11) | (imm4 << 4) | (imm9_8 << 8) | (imm10 << 10) |
		(imm6 << 6) | (imm7 << 7) | (imm3_1 << 1) | (imm5 << 5)
	return int16(signExtend32(u, 12))
}

func decodeCBImm(w uint16) int16 {
	u32 := uint32(w)
	imm8 := (u32 >> 12) & 0x1
	imm4_3 := (u32 >> 10) & 0x3
	imm7_6 := (u32 >> 5) & 0x3
	imm2_1 := (u32 >> 3) & 0x3
	imm5 := (u32 >> 2) & 0x1
	u := (imm8 << 8) | (imm4_3 << 3) | (imm7_6 << 6) | (imm2_1 << 1) | (imm5 << 5)
	return int16(signExtend32(u, 9))
}

func decodeCLuiImm(w uint16) int32 {
	u32 := uint32(w)
	imm17 := (u32 >> 12) & 0x1
	imm16_12 := (u32 >> 2) & 0x1f
	u := (imm17 << 17) | (imm16_12 << 12)
	return signExtend32(u, 18)
}

func signExtend32(u uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(u<<shift) >> shift
}
