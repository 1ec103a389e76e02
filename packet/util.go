// Package packet decodes the instruction-trace payload variants
// carried inside the SMI (package smi) and encapsulation (package
// encap) envelopes: extension, branch, address-info and
// synchronization payloads, sized by a unit's field widths.
package packet

import (
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// readAddressDelta reads a signed, sign-extended address delta, sized
// and shifted per the unit's address width and lsb offset.
func readAddressDelta(d *bits.Decoder, w unit.Widths) (int64, error) {
	width := w.Iaddress - w.IaddressLsb
	v, err := d.ReadInt(width)
	if err != nil {
		return 0, err
	}
	return v << w.IaddressLsb, nil
}

// readAddressFull reads a full, unsigned address, sized and shifted
// per the unit's address width and lsb offset.
func readAddressFull(d *bits.Decoder, w unit.Widths) (uint64, error) {
	width := w.Iaddress - w.IaddressLsb
	v, err := d.ReadUint(width)
	if err != nil {
		return 0, err
	}
	return v << w.IaddressLsb, nil
}

// readImplicitReturn reads the irreport/irdepth field pair. It always
// consumes the stack-depth field, if the unit configures one, so the
// bits consumed stay constant regardless of irreport's value; it
// returns a non-nil depth only when irreport is set and the unit
// reports a stack-depth width at all.
func readImplicitReturn(d *bits.Decoder, w unit.Widths) (*uint64, error) {
	report, err := d.ReadDifferentialBit()
	if err != nil {
		return nil, err
	}
	var depth uint64
	if w.HasStackDepth {
		depth, err = d.ReadUint(w.StackDepth)
		if err != nil {
			return nil, err
		}
	}
	if report && w.HasStackDepth {
		return &depth, nil
	}
	return nil, nil
}

// branchCount is the 5-bit count field prefixing a branch map, whose
// value also determines the map field's own width (1, 3, 7, 15 or 31
// bits): the width is the smallest of those five values that is still
// >= count. A count of zero is the sentinel for "map is full" (31
// entries), used by Branch when no further branch information can be
// deferred to a later packet.
type branchCount uint8

const branchCountFull branchCount = 31

func decodeBranchCount(d *bits.Decoder) (branchCount, error) {
	v, err := d.ReadUint(5)
	if err != nil {
		return 0, err
	}
	return branchCount(v), nil
}

func (c branchCount) fieldLength() uint8 {
	for _, l := range [...]uint8{1, 3, 7, 15, 31} {
		if uint8(c) <= l {
			return l
		}
	}
	return 31
}

func (c branchCount) readBranchMap(d *bits.Decoder) (trace.BranchMap, error) {
	raw, err := d.ReadUint(c.fieldLength())
	if err != nil {
		return trace.BranchMap{}, err
	}
	if c < 32 {
		raw &^= ^uint64(0) << uint8(c)
	}
	return trace.NewBranchMap(uint8(c), uint32(raw))
}
