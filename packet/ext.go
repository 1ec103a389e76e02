package packet

import (
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// ExtKind discriminates the format-0 extension subformats.
type ExtKind uint8

const (
	ExtBranchCount ExtKind = iota
	ExtJumpTargetIndex
)

// BranchKindTag discriminates the three layouts a BranchCount
// extension payload's tail can take.
type BranchKindTag uint8

const (
	// BranchKindNoAddr: the packet carries no address; the branch
	// following the last correct prediction failed.
	BranchKindNoAddr BranchKindTag = iota
	// BranchKindAddr: the packet carries an address; if it points at
	// a branch instruction, that branch was predicted correctly.
	BranchKindAddr
	// BranchKindAddrFail: the packet carries an address pointing at a
	// branch instruction whose prediction failed.
	BranchKindAddrFail
)

// BranchCount is the format 0, subformat 0 payload: the count of
// correctly predicted branches since the last report.
type BranchCount struct {
	// Count of correctly predicted branches, already adjusted back
	// from the wire's "count + 31" encoding.
	Count int64
	Kind  BranchKindTag
	// Address is meaningful when Kind is BranchKindAddr or
	// BranchKindAddrFail.
	Address AddressInfo
}

func decodeExtBranchCount(d *bits.Decoder, w unit.Widths) (BranchCount, error) {
	raw, err := d.ReadUint(32)
	if err != nil {
		return BranchCount{}, err
	}
	count := int64(raw) - 31
	kindTag, err := d.ReadUint(2)
	if err != nil {
		return BranchCount{}, err
	}
	switch kindTag {
	case 0b00:
		return BranchCount{Count: count, Kind: BranchKindNoAddr}, nil
	case 0b01:
		return BranchCount{}, xerrors.New(xerrors.Payload, "reserved branch-count-extension kind")
	case 0b10, 0b11:
		addr, err := decodeAddressInfo(d, w)
		if err != nil {
			return BranchCount{}, err
		}
		kind := BranchKindAddr
		if kindTag == 0b11 {
			kind = BranchKindAddrFail
		}
		return BranchCount{Count: count, Kind: kind, Address: addr}, nil
	default:
		return BranchCount{}, xerrors.New(xerrors.Payload, "unreachable branch-count-extension kind")
	}
}

func (b BranchCount) addressInfo() (AddressInfo, bool) {
	switch b.Kind {
	case BranchKindAddr, BranchKindAddrFail:
		return b.Address, true
	default:
		return AddressInfo{}, false
	}
}

// JumpTargetIndex is the format 0, subformat 1 payload: a reference
// into the encoder's jump-target cache in place of reporting a full
// uninferable-jump target.
type JumpTargetIndex struct {
	Index     uint64
	BranchMap trace.BranchMap
	IRDepth   *uint64
}

func decodeExtJumpTargetIndex(d *bits.Decoder, w unit.Widths) (JumpTargetIndex, error) {
	idx, err := d.ReadUint(w.CacheIndex)
	if err != nil {
		return JumpTargetIndex{}, err
	}
	count, err := decodeBranchCount(d)
	if err != nil {
		return JumpTargetIndex{}, err
	}
	bm, err := count.readBranchMap(d)
	if err != nil {
		return JumpTargetIndex{}, err
	}
	irdepth, err := readImplicitReturn(d, w)
	if err != nil {
		return JumpTargetIndex{}, err
	}
	return JumpTargetIndex{Index: idx, BranchMap: bm, IRDepth: irdepth}, nil
}

// Extension is the format-0 extension payload: either a branch-count
// (branch-prediction) report or a jump-target-cache index.
type Extension struct {
	Kind            ExtKind
	BranchCount     BranchCount
	JumpTargetIndex JumpTargetIndex
}

// AddressInfo extracts the AddressInfo carried by this extension, if
// any.
func (e Extension) AddressInfo() (AddressInfo, bool) {
	if e.Kind == ExtBranchCount {
		return e.BranchCount.addressInfo()
	}
	return AddressInfo{}, false
}

// ImplicitReturnDepth extracts the implicit-return depth reported by
// this extension, if any.
func (e Extension) ImplicitReturnDepth() (uint64, bool) {
	switch e.Kind {
	case ExtBranchCount:
		if addr, ok := e.BranchCount.addressInfo(); ok {
			return addr.implicitReturnDepth()
		}
		return 0, false
	case ExtJumpTargetIndex:
		if e.JumpTargetIndex.IRDepth != nil {
			return *e.JumpTargetIndex.IRDepth, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func decodeExtension(d *bits.Decoder, w unit.Widths) (Extension, error) {
	sub, err := d.ReadUint(w.Format0Subformat)
	if err != nil {
		return Extension{}, err
	}
	switch sub {
	case 0:
		bc, err := decodeExtBranchCount(d, w)
		if err != nil {
			return Extension{}, err
		}
		return Extension{Kind: ExtBranchCount, BranchCount: bc}, nil
	case 1:
		jti, err := decodeExtJumpTargetIndex(d, w)
		if err != nil {
			return Extension{}, err
		}
		return Extension{Kind: ExtJumpTargetIndex, JumpTargetIndex: jti}, nil
	default:
		return Extension{}, xerrors.New(xerrors.Payload, "unknown format-0 subformat")
	}
}
