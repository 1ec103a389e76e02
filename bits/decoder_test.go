package bits_test

import (
	"errors"
	"testing"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
)

func TestReadUintLSBFirst(t *testing.T) {
	// 0b1011_0010, 0b0000_0001 little-endian across bytes.
	d := bits.NewDecoder([]byte{0xB2, 0x01})
	v, err := d.ReadUint(4)
	if err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	if v != 0x2 {
		t.Fatalf("got %#x, want 0x2", v)
	}
	v, err = d.ReadUint(8)
	if err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	if v != 0x1B {
		t.Fatalf("got %#x, want 0x1B", v)
	}
}

func TestReadIntSignExtends(t *testing.T) {
	d := bits.NewDecoder([]byte{0x0F})
	v, err := d.ReadInt(4)
	if err != nil {
		t.Fatalf("ReadInt: %v", err)
	}
	if v != -1 {
		t.Fatalf("got %d, want -1", v)
	}
}

func TestReadPastEndFails(t *testing.T) {
	d := bits.NewDecoder([]byte{0x01})
	if _, err := d.ReadUint(16); !errors.Is(err, bits.ErrBufferTooSmall) {
		t.Fatalf("expected ErrBufferTooSmall, got %v", err)
	}
}

func TestBytePosAndBitsLeftInvariant(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF}
	d := bits.NewDecoder(data)
	for i := 0; i < 24; i++ {
		if total := d.BytePos()*8 + d.IntraByteOffset() + d.BitsLeft(); total != 24 {
			t.Fatalf("iteration %d: byte_pos*8 + intra_byte_offset + bits_left = %d, want 24", i, total)
		}
		if _, err := d.ReadBit(); err != nil {
			t.Fatalf("ReadBit: %v", err)
		}
	}
	if d.BitsLeft() != 0 {
		t.Fatalf("expected 0 bits left, got %d", d.BitsLeft())
	}
}

func TestScopedRestoresParentPosition(t *testing.T) {
	d := bits.NewDecoder([]byte{0x01, 0x02, 0x03, 0x04})
	if _, err := d.ReadUint(8); err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	scoped, err := d.ScopeBytes(2)
	if err != nil {
		t.Fatalf("ScopeBytes: %v", err)
	}
	inner := scoped.Decoder()
	v, err := inner.ReadUint(8)
	if err != nil {
		t.Fatalf("inner ReadUint: %v", err)
	}
	if v != 0x02 {
		t.Fatalf("got %#x, want 0x02", v)
	}
	scoped.Close()
	if d.BytePos() != 3 {
		t.Fatalf("parent byte pos = %d, want 3", d.BytePos())
	}
	v, err = d.ReadUint(8)
	if err != nil {
		t.Fatalf("ReadUint after close: %v", err)
	}
	if v != 0x04 {
		t.Fatalf("got %#x, want 0x04", v)
	}
}

func TestDifferentialBit(t *testing.T) {
	// bits (LSB-first): 1,0,0,1,... -> differential of bit1 vs bit0 = 1^0=1
	d := bits.NewDecoder([]byte{0b1001})
	b0, _ := d.ReadBit()
	if !b0 {
		t.Fatalf("bit0 should be 1")
	}
	diff, err := d.ReadDifferentialBit()
	if err != nil {
		t.Fatalf("ReadDifferentialBit: %v", err)
	}
	if !diff {
		t.Fatalf("expected differential bit true")
	}
}
