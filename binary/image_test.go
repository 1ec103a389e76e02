package binary_test

import (
	"errors"
	"testing"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/binary"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"
)

// nop is `addi x0, x0, 0`.
var nop = []byte{0x13, 0x00, 0x00, 0x00}

func TestSegmentMiss(t *testing.T) {
	seg := binary.Segment{Base: 0x1000, Code: nop, BaseSet: insn.RV32I}
	if _, _, err := seg.GetInsn(0x2000); !errors.Is(err, binary.ErrMiss) {
		t.Fatalf("expected miss outside segment, got %v", err)
	}
}

func TestSegmentStraddleIsDecodeErrorNotMiss(t *testing.T) {
	// The first byte of a 32-bit instruction with nothing after it:
	// reading the missing bytes must fail as a decode error, not a miss.
	seg := binary.Segment{Base: 0x1000, Code: []byte{0x13}, BaseSet: insn.RV32I}
	_, _, err := seg.GetInsn(0x1000)
	if err == nil {
		t.Fatalf("expected an error for a truncated instruction")
	}
	if errors.Is(err, binary.ErrMiss) {
		t.Fatalf("truncated instruction must not report as a miss")
	}
}

func TestOffsetMissesBelowBase(t *testing.T) {
	seg := binary.Segment{Base: 0, Code: nop, BaseSet: insn.RV32I}
	off := binary.Offset{Image: seg, Base: 0x8000}
	if _, _, err := off.GetInsn(0x100); !errors.Is(err, binary.ErrMiss) {
		t.Fatalf("expected miss below offset base, got %v", err)
	}
	if _, _, err := off.GetInsn(0x8000); err != nil {
		t.Fatalf("expected hit at offset base, got %v", err)
	}
}

func TestFallbackTriesSecondOnlyOnMiss(t *testing.T) {
	first := binary.Segment{Base: 0x1000, Code: nop, BaseSet: insn.RV32I}
	second := binary.Segment{Base: 0x2000, Code: nop, BaseSet: insn.RV32I}
	fb := binary.Fallback{First: first, Second: second}

	if _, _, err := fb.GetInsn(0x2000); err != nil {
		t.Fatalf("expected fallback hit on second image, got %v", err)
	}

	// A decode error on First must not fall through to Second.
	bad := binary.Segment{Base: 0x1000, Code: []byte{0x13}, BaseSet: insn.RV32I}
	fb2 := binary.Fallback{First: bad, Second: second}
	if _, _, err := fb2.GetInsn(0x1000); err == nil || errors.Is(err, binary.ErrMiss) {
		t.Fatalf("decode error on First must propagate, not fall through: %v", err)
	}
}

func TestChainFirstMatchWins(t *testing.T) {
	a := binary.Segment{Base: 0x1000, Code: nop, BaseSet: insn.RV32I}
	b := binary.Segment{Base: 0x2000, Code: nop, BaseSet: insn.RV32I}
	c := binary.Chain{a, b}
	if _, _, err := c.GetInsn(0x2000); err != nil {
		t.Fatalf("expected chain to find address in second segment: %v", err)
	}
	if _, _, err := c.GetInsn(0x3000); !errors.Is(err, binary.ErrMiss) {
		t.Fatalf("expected miss past every segment, got %v", err)
	}
}
