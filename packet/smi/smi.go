// Package smi decodes the Siemens Messaging Infrastructure packet
// envelope: a fixed-layout header (trace type, hart, time tag)
// followed by a length-delimited instruction- or data-trace payload.
package smi

import (
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// TraceType distinguishes an SMI packet's payload kind.
type TraceType uint8

const (
	TraceInstruction TraceType = 0b10
	TraceData        TraceType = 0b11
)

// Params bundles two of the field widths SMI's header needs beyond the
// unit's own widths: the hart-index field width and the time-tag field
// width. The trace-type field width is passed to Decode separately.
type Params struct {
	HartIndexWidth uint8
	TimeTagWidth   uint8
}

// DefaultParams returns the reference encoder's documented SMI header
// widths.
func DefaultParams() Params {
	return Params{HartIndexWidth: 8, TimeTagWidth: 16}
}

// Packet is a decoded SMI packet: header fields plus a payload cursor
// scoped to exactly the bytes the header's length field declared.
type Packet struct {
	RawTraceType uint8
	Hart         uint64
	TimeTag      *uint64
	payload      *bits.Scoped
}

// TraceType interprets RawTraceType, returning ok=false if it names
// neither instruction nor data trace.
func (p Packet) TraceType() (TraceType, bool) {
	switch TraceType(p.RawTraceType) {
	case TraceInstruction, TraceData:
		return TraceType(p.RawTraceType), true
	default:
		return 0, false
	}
}

// DecodePayload decodes this packet's payload as an instruction-trace
// payload, sized by w and dispatched to u. Callers should only call
// this when TraceType() reports TraceInstruction; calling it on a
// data-trace packet will attempt to decode the data-trace bytes as an
// instruction-trace payload and most likely fail.
func (p Packet) DecodePayload(w unit.Widths, u unit.Unit) (packet.InstructionTrace, error) {
	defer p.payload.Close()
	return packet.Decode(p.payload.Decoder(), w, u)
}

// Close releases the payload cursor, advancing the parent decoder
// past this packet regardless of whether the payload was decoded.
// Safe to call more than once; callers that don't call DecodePayload
// must call this to resume the parent.
func (p Packet) Close() {
	p.payload.Close()
}

// Decode reads a single SMI packet header and scopes its payload.
// hartIndexWidth and timeTagWidth come from Params; traceTypeWidth is
// the f0s_width_p field width (2 bits by default).
func Decode(d *bits.Decoder, params Params, traceTypeWidth uint8) (Packet, error) {
	payloadLen, err := d.ReadUint(5)
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading SMI payload length")
	}
	traceType, err := d.ReadUint(traceTypeWidth)
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading SMI trace type")
	}
	hasTimeTag, err := d.ReadBit()
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading SMI time-tag flag")
	}
	var timeTag *uint64
	if hasTimeTag {
		v, err := d.ReadUint(params.TimeTagWidth)
		if err != nil {
			return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading SMI time tag")
		}
		timeTag = &v
	}
	hart, err := d.ReadUint(params.HartIndexWidth)
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "reading SMI hart index")
	}
	d.AdvanceToByte()
	scoped, err := d.ScopeBytes(int(payloadLen))
	if err != nil {
		return Packet{}, xerrors.Wrap(xerrors.Framing, err, "scoping SMI payload")
	}
	return Packet{
		RawTraceType: uint8(traceType),
		Hart:         hart,
		TimeTag:      timeTag,
		payload:      scoped,
	}, nil
}
