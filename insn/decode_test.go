package insn_test

import (
	"testing"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"
)

func decode32(t *testing.T, w uint32) insn.Info {
	t.Helper()
	return insn.Decode(insn.Bits{Size: 32, Raw: uint64(w)}, insn.RV32I)
}

func decode16(t *testing.T, w uint16) insn.Info {
	t.Helper()
	return insn.Decode(insn.Bits{Size: 16, Raw: uint64(w)}, insn.RV32I)
}

func TestJALIsInferableJump(t *testing.T) {
	// jal x1, 0 (imm=0, rd=x1 => call)
	i := decode32(t, 0x000000ef)
	if !i.IsInferableJump() || !i.IsCall() {
		t.Fatalf("expected inferable jump + call, got %+v", i)
	}
}

func TestJALRRequiresFunct3Zero(t *testing.T) {
	// jalr with funct3=1 (reserved) must not decode as a jump.
	w := uint32(0x67) | (1 << 12)
	i := decode32(t, w)
	if i.IsUninferableJump() {
		t.Fatalf("funct3!=0 jalr must not decode as jalr")
	}
}

func TestJALRReturn(t *testing.T) {
	// jalr x0, 0(x1): rd=0, rs1=1 => return
	w := uint32(0x67) | (1 << 15)
	i := decode32(t, w)
	if !i.IsUninferableJump() || !i.IsReturn() {
		t.Fatalf("expected uninferable jump + return, got %+v", i)
	}
}

func TestCLuiReservedRd0(t *testing.T) {
	// c.lui with rd=0 (and any nonzero imm bits) must decode unknown.
	w := uint16(0b011_1_00000_11111_01)
	i := decode16(t, w)
	if _, _, ok := i.UpperImmediate(0); ok {
		t.Fatalf("c.lui rd=0 must not decode as upper-immediate")
	}
}

func TestCLuiReservedRd2(t *testing.T) {
	w := uint16(0b011_1_00010_11111_01)
	i := decode16(t, w)
	if _, _, ok := i.UpperImmediate(0); ok {
		t.Fatalf("c.lui rd=2 (c.addi16sp) must not decode as upper-immediate")
	}
}

func TestCJRReservedRs1Zero(t *testing.T) {
	w := uint16(0b1000_00000_00000_10)
	i := decode16(t, w)
	if i.IsUninferableJump() {
		t.Fatalf("c.jr rs1=0 must not decode as a jump")
	}
}

func TestMRETIsReturnFromTrap(t *testing.T) {
	w := uint32(0x30200073)
	i := decode32(t, w)
	if !i.IsReturnFromTrap() {
		t.Fatalf("expected mret to be a return-from-trap")
	}
}

func TestECALLEBREAK(t *testing.T) {
	if i := decode32(t, 0x00000073); !i.IsEcallOrEbreak() || i.IsEbreak() {
		t.Fatalf("expected ecall to set IsEcallOrEbreak but not IsEbreak")
	}
	if i := decode32(t, 0x00100073); !i.IsEcallOrEbreak() || !i.IsEbreak() {
		t.Fatalf("expected ebreak to set IsEcallOrEbreak and IsEbreak")
	}
}

func TestCEBREAK(t *testing.T) {
	// c.ebreak: funct4=1001, rs1=0, rs2=0.
	w := uint16(0b1001_00000_00000_10)
	i := decode16(t, w)
	if !i.IsEcallOrEbreak() || !i.IsEbreak() {
		t.Fatalf("expected c.ebreak to set IsEcallOrEbreak and IsEbreak")
	}
}

func TestUninferableDiscontinuity(t *testing.T) {
	w := uint32(0x67) // jalr x0, 0(x0): rs1=0 so not a return, still uninferable
	i := decode32(t, w)
	if !i.IsUninferableDiscontinuity() {
		t.Fatalf("jalr must be an uninferable discontinuity")
	}
	if i := decode32(t, 0x30200073); !i.IsUninferableDiscontinuity() {
		t.Fatalf("mret must be an uninferable discontinuity")
	}
}
