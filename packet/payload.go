package packet

import (
	"fmt"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// AddressInfo is the format 2 payload: an instruction address with no
// accompanying branch information. The address is a signed,
// sign-extended delta relative to the last reported address unless
// the unit's AddressMode is AddressFull, in which case it is the
// absolute address.
type AddressInfo struct {
	Address int64

	// Notify is true if this packet reports an instruction that is
	// not the target of an uninferable discontinuity, because a
	// notification was requested via a trigger.
	Notify bool

	// Updiscon is true if this packet reports the instruction
	// following an uninferable discontinuity, immediately preceding a
	// trap, privilege change or resync.
	Updiscon bool

	// IRDepth is the implicit-return stack depth or nested call
	// count, reported when this address follows an implicit-return
	// mismatch or precedes an event that needs the current depth.
	IRDepth *uint64
}

func (a AddressInfo) implicitReturnDepth() (uint64, bool) {
	if a.IRDepth != nil {
		return *a.IRDepth, true
	}
	return 0, false
}

func decodeAddressInfo(d *bits.Decoder, w unit.Widths) (AddressInfo, error) {
	addr, err := readAddressDelta(d, w)
	if err != nil {
		return AddressInfo{}, err
	}
	notify, err := d.ReadDifferentialBit()
	if err != nil {
		return AddressInfo{}, err
	}
	updiscon, err := d.ReadDifferentialBit()
	if err != nil {
		return AddressInfo{}, err
	}
	irdepth, err := readImplicitReturn(d, w)
	if err != nil {
		return AddressInfo{}, err
	}
	return AddressInfo{Address: addr, Notify: notify, Updiscon: updiscon, IRDepth: irdepth}, nil
}

func (a AddressInfo) String() string {
	return fmt.Sprintf("address: %#x, notify=%v, updiscon=%v", uint64(a.Address), a.Notify, a.Updiscon)
}

// Branch is the format 1 payload: a run of branch outcomes, sent
// either because the branch map is full or because an address must
// be reported and at least one branch has occurred since the last
// packet.
type Branch struct {
	BranchMap trace.BranchMap
	// Address is present when the branch run is terminated by a PC
	// discontinuity that must be reported in the same packet.
	Address *AddressInfo
}

func decodeBranch(d *bits.Decoder, w unit.Widths) (Branch, error) {
	count, err := decodeBranchCount(d)
	if err != nil {
		return Branch{}, err
	}
	if count == 0 {
		bm, err := branchCountFull.readBranchMap(d)
		if err != nil {
			return Branch{}, err
		}
		return Branch{BranchMap: bm}, nil
	}
	bm, err := count.readBranchMap(d)
	if err != nil {
		return Branch{}, err
	}
	addr, err := decodeAddressInfo(d, w)
	if err != nil {
		return Branch{}, err
	}
	return Branch{BranchMap: bm, Address: &addr}, nil
}

// Kind discriminates the four format values an InstructionTrace
// payload can take.
type Kind uint8

const (
	KindExtension Kind = iota
	KindBranch
	KindAddress
	KindSync
)

// InstructionTrace is the instruction-trace payload sum type: exactly
// one of Extension, Branch, Address or Sync is meaningful, selected
// by Kind.
type InstructionTrace struct {
	Kind      Kind
	Extension Extension
	Branch    Branch
	Address   AddressInfo
	Sync      Sync
}

// GetAddressInfo extracts the AddressInfo this payload carries, if
// any — directly for Address, nested for Branch and certain
// Extension variants.
func (p InstructionTrace) GetAddressInfo() (AddressInfo, bool) {
	switch p.Kind {
	case KindAddress:
		return p.Address, true
	case KindBranch:
		if p.Branch.Address != nil {
			return *p.Branch.Address, true
		}
		return AddressInfo{}, false
	case KindExtension:
		return p.Extension.AddressInfo()
	default:
		return AddressInfo{}, false
	}
}

// ImplicitReturnDepth extracts the implicit-return depth this payload
// reports, if any.
func (p InstructionTrace) ImplicitReturnDepth() (uint64, bool) {
	switch p.Kind {
	case KindAddress:
		return p.Address.implicitReturnDepth()
	case KindBranch:
		if p.Branch.Address != nil {
			return p.Branch.Address.implicitReturnDepth()
		}
		return 0, false
	case KindExtension:
		return p.Extension.ImplicitReturnDepth()
	default:
		return 0, false
	}
}

// Decode reads a single InstructionTrace payload from d, sized
// according to w and dispatched to u for any unit-specific fields
// (Sync.Support's IOptions/DOptions, encoder-mode width).
func Decode(d *bits.Decoder, w unit.Widths, u unit.Unit) (InstructionTrace, error) {
	format, err := d.ReadUint(2)
	if err != nil {
		return InstructionTrace{}, xerrors.Wrap(xerrors.Framing, err, "reading payload format field")
	}
	switch format {
	case 0b00:
		ext, err := decodeExtension(d, w)
		if err != nil {
			return InstructionTrace{}, err
		}
		return InstructionTrace{Kind: KindExtension, Extension: ext}, nil
	case 0b01:
		branch, err := decodeBranch(d, w)
		if err != nil {
			return InstructionTrace{}, err
		}
		return InstructionTrace{Kind: KindBranch, Branch: branch}, nil
	case 0b10:
		addr, err := decodeAddressInfo(d, w)
		if err != nil {
			return InstructionTrace{}, err
		}
		return InstructionTrace{Kind: KindAddress, Address: addr}, nil
	default: // 0b11
		sync, err := decodeSync(d, w, u)
		if err != nil {
			return InstructionTrace{}, err
		}
		return InstructionTrace{Kind: KindSync, Sync: sync}, nil
	}
}
