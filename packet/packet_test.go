package packet_test

import (
	"testing"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
)

// bitWriter builds a little-endian (LSB-first) bit buffer matching
// bits.Decoder's read order, letting tests construct wire payloads
// field by field instead of hand-computing packed bytes.
type bitWriter struct {
	buf []byte
	pos int
}

func (w *bitWriter) writeBits(v uint64, n int) {
	for i := 0; i < n; i++ {
		byteIdx := w.pos >> 3
		for len(w.buf) <= byteIdx {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 != 0 {
			w.buf[byteIdx] |= 1 << uint(w.pos&0x7)
		}
		w.pos++
	}
}

func defaultWidths() unit.Widths {
	return unit.WidthsFrom(unit.DefaultParameters())
}

func TestDecodeSyncStart(t *testing.T) {
	w := defaultWidths()
	var bw bitWriter
	bw.writeBits(0b11, 2) // format: sync
	bw.writeBits(0b00, 2) // subformat: start
	bw.writeBits(1, 1)    // branch
	bw.writeBits(0b11, int(w.Privilege)) // privilege: machine (wire encoding)
	bw.writeBits(0x1000>>w.IaddressLsb, int(w.Iaddress-w.IaddressLsb))

	d := bits.NewDecoder(bw.buf)
	p, err := packet.Decode(d, w, unit.Reference{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Kind != packet.KindSync || p.Sync.Kind != packet.SyncStart {
		t.Fatalf("expected Sync.Start, got %+v", p)
	}
	if p.Sync.Start.Address != 0x1000 {
		t.Fatalf("expected address 0x1000, got %#x", p.Sync.Start.Address)
	}
	if p.Sync.Start.Ctx.Privilege != trace.Machine {
		t.Fatalf("expected machine privilege, got %v", p.Sync.Start.Ctx.Privilege)
	}
}

func TestDecodeAddressInfo(t *testing.T) {
	w := defaultWidths()
	var bw bitWriter
	bw.writeBits(0b10, 2) // format: address
	writeAddressDelta(&bw, w, 42)
	bw.writeBits(0, 1) // notify
	bw.writeBits(1, 1) // updiscon (differential against notify=0 -> true)
	bw.writeBits(0, 1) // irreport

	d := bits.NewDecoder(bw.buf)
	p, err := packet.Decode(d, w, unit.Reference{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Kind != packet.KindAddress {
		t.Fatalf("expected KindAddress, got %+v", p)
	}
	if p.Address.Address != 42 {
		t.Fatalf("expected delta 42, got %d", p.Address.Address)
	}
	if !p.Address.Updiscon {
		t.Fatalf("expected updiscon true")
	}
}

// writeAddressDelta writes a signed address field the way
// readAddressDelta expects to read one: width = Iaddress - IaddressLsb
// bits, pre-shifted right by IaddressLsb (callers of the real encoder
// only ever produce even deltas at this lsb granularity).
func writeAddressDelta(bw *bitWriter, w unit.Widths, delta int64) {
	width := uint8(w.Iaddress - w.IaddressLsb)
	mask := uint64(1)<<width - 1
	bw.writeBits(uint64(delta>>w.IaddressLsb)&mask, int(width))
}

func TestDecodeBranchWithAddress(t *testing.T) {
	w := defaultWidths()
	var bw bitWriter
	bw.writeBits(0b01, 2) // format: branch
	bw.writeBits(3, 5)    // count = 3 -> field length 3
	bw.writeBits(0b101, 3)
	writeAddressDelta(&bw, w, 0)
	bw.writeBits(0, 1) // notify
	bw.writeBits(0, 1) // updiscon
	bw.writeBits(0, 1) // irreport

	d := bits.NewDecoder(bw.buf)
	p, err := packet.Decode(d, w, unit.Reference{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Kind != packet.KindBranch {
		t.Fatalf("expected KindBranch, got %+v", p)
	}
	if p.Branch.BranchMap.Count() != 3 {
		t.Fatalf("expected branch count 3, got %d", p.Branch.BranchMap.Count())
	}
	// LSB first: bits 1,0,1; a set bit means "not taken".
	wantOrder := []bool{false, true, false}
	for _, want := range wantOrder {
		got, ok := p.Branch.BranchMap.PopTaken()
		if !ok || got != want {
			t.Fatalf("branch map order mismatch: got %v ok=%v, want %v", got, ok, want)
		}
	}
	if p.Branch.Address == nil {
		t.Fatalf("expected an address to terminate the branch run")
	}
}

func TestDecodeBranchCountZeroMeansFullMap(t *testing.T) {
	w := defaultWidths()
	var bw bitWriter
	bw.writeBits(0b01, 2) // format: branch
	bw.writeBits(0, 5)    // count = 0 -> full map, 31-bit field, no address
	bw.writeBits(0, 31)

	d := bits.NewDecoder(bw.buf)
	p, err := packet.Decode(d, w, unit.Reference{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Branch.Address != nil {
		t.Fatalf("expected no address on a full branch map")
	}
	if p.Branch.BranchMap.Count() != 31 {
		t.Fatalf("expected 31 branches, got %d", p.Branch.BranchMap.Count())
	}
}

func TestDecodeSyncSupportReferenceUnit(t *testing.T) {
	w := defaultWidths()
	var bw bitWriter
	bw.writeBits(0b11, 2) // format: sync
	bw.writeBits(0b11, 2) // subformat: support
	bw.writeBits(1, 1)    // ienable
	bw.writeBits(0, 1)    // encoder mode: Reference's 1-bit BranchTrace
	bw.writeBits(0b01, 2) // qual_status: ended (repeated)
	// IOptions, reference unit, in wire order: implicit_return,
	// implicit_exception, full_address, jump_target_cache,
	// branch_prediction (no sequentially-inferred-jumps bit).
	bw.writeBits(1, 1)      // implicit_return
	bw.writeBits(0, 1)      // implicit_exception
	bw.writeBits(1, 1)      // full_address
	bw.writeBits(0, 1)      // jump_target_cache
	bw.writeBits(1, 1)      // branch_prediction
	bw.writeBits(1, 1)      // denable
	bw.writeBits(0, 1)      // dloss
	bw.writeBits(0b1010, 4) // DOptions: no_address, no_data, full_address, full_data

	d := bits.NewDecoder(bw.buf)
	p, err := packet.Decode(d, w, unit.Reference{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Kind != packet.KindSync || p.Sync.Kind != packet.SyncSupport {
		t.Fatalf("expected Sync.Support, got %+v", p)
	}
	sup := p.Sync.Support
	if !sup.Ienable || sup.EncoderMode != packet.EncoderModeBranchTrace {
		t.Fatalf("unexpected support header: %+v", sup)
	}
	if sup.QualStatus != packet.QualEndedRep {
		t.Fatalf("expected QualEndedRep, got %v", sup.QualStatus)
	}
	if mode, ok := sup.IOptions.AddressMode(); !ok || mode != unit.AddressFull {
		t.Fatalf("expected full-address mode, got %v ok=%v", mode, ok)
	}
	if v, ok := sup.IOptions.ImplicitReturn(); !ok || !v {
		t.Fatalf("expected implicit_return true, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.ImplicitException(); !ok || v {
		t.Fatalf("expected implicit_exception false, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.JumpTargetCache(); !ok || v {
		t.Fatalf("expected jump_target_cache false, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.BranchPrediction(); !ok || !v {
		t.Fatalf("expected branch_prediction true, got %v ok=%v", v, ok)
	}
	if _, ok := sup.IOptions.SequentiallyInferredJumps(); ok {
		t.Fatalf("reference unit must not report sequentially-inferred-jumps")
	}
	if !sup.Denable || sup.Dloss {
		t.Fatalf("unexpected denable/dloss: %+v", sup)
	}
	if sup.DOptions.Raw() != 0b1010 {
		t.Fatalf("expected DOptions raw 0b1010, got %#b", sup.DOptions.Raw())
	}
}

func TestDecodeSyncSupportPULPUnit(t *testing.T) {
	w := defaultWidths()
	var bw bitWriter
	bw.writeBits(0b11, 2) // format: sync
	bw.writeBits(0b11, 2) // subformat: support
	bw.writeBits(1, 1)    // ienable
	bw.writeBits(0, 1)    // encoder mode: PULP's 1-bit BranchTrace
	bw.writeBits(0b01, 2) // qual_status: ended (repeated)
	// IOptions, PULP unit, in wire order: jump_target_cache,
	// branch_prediction, implicit_return, sijump, implicit_exception,
	// full_address, delta_address.
	bw.writeBits(0, 1) // jump_target_cache
	bw.writeBits(1, 1) // branch_prediction
	bw.writeBits(1, 1) // implicit_return
	bw.writeBits(1, 1) // sijump
	bw.writeBits(0, 1) // implicit_exception
	bw.writeBits(1, 1) // full_address
	bw.writeBits(0, 1) // delta_address
	bw.writeBits(1, 1) // denable
	bw.writeBits(0, 1) // dloss
	// DOptions: PULP reports none at all, 0 bits.

	d := bits.NewDecoder(bw.buf)
	p, err := packet.Decode(d, w, unit.PULP{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Kind != packet.KindSync || p.Sync.Kind != packet.SyncSupport {
		t.Fatalf("expected Sync.Support, got %+v", p)
	}
	sup := p.Sync.Support
	if mode, ok := sup.IOptions.AddressMode(); !ok || mode != unit.AddressFull {
		t.Fatalf("expected full-address mode, got %v ok=%v", mode, ok)
	}
	if v, ok := sup.IOptions.SequentiallyInferredJumps(); !ok || !v {
		t.Fatalf("expected sijump true, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.ImplicitReturn(); !ok || !v {
		t.Fatalf("expected implicit_return true, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.ImplicitException(); !ok || v {
		t.Fatalf("expected implicit_exception false, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.BranchPrediction(); !ok || !v {
		t.Fatalf("expected branch_prediction true, got %v ok=%v", v, ok)
	}
	if v, ok := sup.IOptions.JumpTargetCache(); !ok || v {
		t.Fatalf("expected jump_target_cache false, got %v ok=%v", v, ok)
	}
	if !sup.Denable || sup.Dloss {
		t.Fatalf("unexpected denable/dloss: %+v", sup)
	}
	if sup.DOptions.Raw() != 0 {
		t.Fatalf("expected PULP DOptions raw 0, got %#b", sup.DOptions.Raw())
	}
}
