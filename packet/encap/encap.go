// Package encap decodes the RISC-V unformatted packet encapsulation
// envelope: source-id, a flavor tag (ordinary/idle/alignment),
// payload and an optional trailing timestamp.
package encap

import (
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// Flavor discriminates the three encapsulation structures.
type Flavor uint8

const (
	FlavorNullIdle Flavor = iota
	FlavorNullAlign
	FlavorNormal
)

// Params bundles the field widths the encapsulation envelope needs
// beyond the unit's own widths.
type Params struct {
	// SrcIDWidth is the source-id field width. Per the encapsulation
	// spec this field need not be byte-aligned — a fix over the
	// original RISC-V encapsulation design, which implicitly assumed
	// byte alignment.
	SrcIDWidth uint8
	// TimestampWidth is the trailing timestamp width in *bytes*, not
	// bits (the encapsulation spec sizes it in bytes).
	TimestampWidth uint8
}

// Packet is a decoded encapsulation packet. NullIdle and NullAlign
// packets carry only a flow indicator; Normal packets additionally
// carry a source id, optional timestamp and a payload cursor scoped
// to exactly the bytes the header declared.
type Packet struct {
	Flavor Flavor
	Flow   uint8

	// Valid when Flavor == FlavorNormal.
	SrcID     uint16
	Timestamp *uint64
	payload   *bits.Scoped
}

// DecodePayload decodes this packet's payload as an instruction-trace
// payload. Only valid for FlavorNormal packets.
func (p Packet) DecodePayload(w unit.Widths, u unit.Unit) (packet.InstructionTrace, error) {
	defer p.Close()
	return packet.Decode(p.payload.Decoder(), w, u)
}

// Close releases the payload cursor, advancing the parent decoder
// past this packet. Safe to call more than once; a no-op for null
// packets.
func (p Packet) Close() {
	if p.payload != nil {
		p.payload.Close()
	}
}

// Decode reads a single encapsulation packet. It refuses to decode a
// packet when there are no bits left at all, returning a framing error
// that wraps bits.ErrBufferTooSmall.
func Decode(d *bits.Decoder, params Params) (Packet, error) {
	if d.BitsLeft() == 0 {
		return Packet{}, xerrors.Wrap(xerrors.Framing, bits.ErrBufferTooSmall, "no data left to decode an encapsulation packet from")
	}
	length, err := d.ReadUint(5)
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading encapsulation length")
	}
	flow, err := d.ReadUint(2)
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading encapsulation flow")
	}
	extend, err := d.ReadBit()
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading encapsulation extend bit")
	}
	if length == 0 {
		if extend {
			return Packet{Flavor: FlavorNullAlign, Flow: uint8(flow)}, nil
		}
		return Packet{Flavor: FlavorNullIdle, Flow: uint8(flow)}, nil
	}

	totalLen := int(length) + int(params.SrcIDWidth>>3)
	if extend {
		totalLen += int(params.TimestampWidth)
	}
	scoped, err := d.ScopeBytes(totalLen)
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "scoping encapsulation payload")
	}
	inner := scoped.Decoder()
	srcID, err := inner.ReadUint(params.SrcIDWidth)
	if err != nil {
		scoped.Close()
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading encapsulation source id")
	}
	var timestamp *uint64
	if extend {
		v, err := inner.ReadUint(8 * params.TimestampWidth)
		if err != nil {
			scoped.Close()
			return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading encapsulation timestamp")
		}
		timestamp = &v
	}
	return Packet{
		Flavor:    FlavorNormal,
		Flow:      uint8(flow),
		SrcID:     uint16(srcID),
		Timestamp: timestamp,
		payload:   scoped,
	}, nil
}
