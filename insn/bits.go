// Package insn decodes RISC-V instruction words into the minimal
// predicate set the tracer needs (branch / jump / call / return /
// trap-return / upper-immediate). The binary-image abstraction that
// maps addresses to decoded instructions lives in package binary.
package insn

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"

// Bits is a variable-length RISC-V instruction word tagged by its
// size in bits (16, 32, 48 or 64).
type Bits struct {
	Size uint8
	Raw  uint64
}

// ExtractBits determines the length of the instruction at the start
// of data from its low bits and returns the extracted word together
// with whatever bytes follow it. It fails if data is shorter than the
// instruction it claims to hold.
func ExtractBits(data []byte) (Bits, []byte, error) {
	if len(data) == 0 {
		return Bits{}, nil, xerrors.New(xerrors.Binary, "no data to decode an instruction from")
	}
	a := data[0]
	var size int
	switch {
	case a&0b11 != 0b11:
		size = 2
	case a&0b11100 != 0b11100:
		size = 4
	case a&0x3f == 0x1f:
		size = 6
	case a&0x7f == 0x3f:
		size = 8
	default:
		// Longer reserved encodings: treat as an 8-byte opaque word so
		// callers still advance a consistent, if conservative, amount.
		size = 8
	}
	if len(data) < size {
		return Bits{}, nil, xerrors.New(xerrors.Binary, "instruction truncated at end of segment")
	}
	var raw uint64
	for i := size - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(data[i])
	}
	return Bits{Size: uint8(size * 8), Raw: raw}, data[size:], nil
}
