package packet

import (
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// SyncKind discriminates the format-3 synchronization subformats.
type SyncKind uint8

const (
	SyncStart SyncKind = iota
	SyncTrap
	SyncContext
	SyncSupport
)

// Context is the privilege/context pair carried by Start, Trap and
// Context payloads, and also reported standalone.
type Context struct {
	Privilege trace.Privilege
	Time      *uint64
	Context   uint64
}

func decodeContext(d *bits.Decoder, w unit.Widths) (Context, error) {
	rawPriv, err := d.ReadUint(w.Privilege)
	if err != nil {
		return Context{}, err
	}
	priv, err := trace.DecodePrivilege(uint8(rawPriv))
	if err != nil {
		return Context{}, err
	}
	var timePtr *uint64
	if w.HasTime {
		t, err := d.ReadUint(w.Time)
		if err != nil {
			return Context{}, err
		}
		timePtr = &t
	}
	var ctx uint64
	if w.HasContext {
		ctx, err = d.ReadUint(w.Context)
		if err != nil {
			return Context{}, err
		}
	}
	return Context{Privilege: priv, Time: timePtr, Context: ctx}, nil
}

// Start is the format 3, subformat 0 "start of trace" payload, sent
// for the first traced instruction or on resynchronization.
type Start struct {
	// Branch is false if the address is a taken branch instruction,
	// true if the branch wasn't taken or the instruction isn't a
	// branch.
	Branch  bool
	Ctx     Context
	Address uint64
}

func decodeStart(d *bits.Decoder, w unit.Widths) (Start, error) {
	branch, err := d.ReadBit()
	if err != nil {
		return Start{}, err
	}
	ctx, err := decodeContext(d, w)
	if err != nil {
		return Start{}, err
	}
	addr, err := readAddressFull(d, w)
	if err != nil {
		return Start{}, err
	}
	return Start{Branch: branch, Ctx: ctx, Address: addr}, nil
}

// Trap is the format 3, subformat 1 trap payload, sent following an
// exception or interrupt.
type Trap struct {
	Branch bool
	Ctx    Context
	// Thaddr is true if Address points at the trap handler (trap
	// entry); false if Address is the EPC reported for an exception
	// at the target of an updiscon.
	Thaddr  bool
	Address uint64
	Trap    trace.TrapInfo
}

func decodeTrap(d *bits.Decoder, w unit.Widths) (Trap, error) {
	branch, err := d.ReadBit()
	if err != nil {
		return Trap{}, err
	}
	ctx, err := decodeContext(d, w)
	if err != nil {
		return Trap{}, err
	}
	ecause, err := d.ReadUint(w.Ecause)
	if err != nil {
		return Trap{}, err
	}
	interrupt, err := d.ReadBit()
	if err != nil {
		return Trap{}, err
	}
	thaddr, err := d.ReadBit()
	if err != nil {
		return Trap{}, err
	}
	addr, err := readAddressFull(d, w)
	if err != nil {
		return Trap{}, err
	}
	var tval *uint64
	if !interrupt {
		v, err := d.ReadUint(w.Iaddress)
		if err != nil {
			return Trap{}, err
		}
		tval = &v
	}
	return Trap{
		Branch:  branch,
		Ctx:     ctx,
		Thaddr:  thaddr,
		Address: addr,
		Trap:    trace.TrapInfo{Ecause: ecause, Tval: tval},
	}, nil
}

// QualStatus reports a change in filter qualification, carried by a
// Support payload.
type QualStatus uint8

const (
	QualNoChange QualStatus = iota
	QualEndedRep
	QualTraceLost
	QualEndedNtr
)

func decodeQualStatus(d *bits.Decoder) (QualStatus, error) {
	v, err := d.ReadUint(2)
	if err != nil {
		return 0, err
	}
	return QualStatus(v), nil
}

// EncoderMode names the mode the encoder is operating in. Both units
// in package unit only ever report BranchTrace.
type EncoderMode uint8

const EncoderModeBranchTrace EncoderMode = 0

// Support is the format 3, subformat 3 "supporting information"
// payload: a meta-status packet carrying the encoder's qualification
// state and its IOptions/DOptions snapshot.
type Support struct {
	Ienable     bool
	EncoderMode EncoderMode
	QualStatus  QualStatus
	IOptions    unit.IOptions
	Denable     bool
	Dloss       bool
	DOptions    unit.DOptions
}

func decodeSupport(d *bits.Decoder, u unit.Unit) (Support, error) {
	ienable, err := d.ReadBit()
	if err != nil {
		return Support{}, err
	}
	rawMode, err := d.ReadUint(u.EncoderModeWidth())
	if err != nil {
		return Support{}, err
	}
	if rawMode != uint64(EncoderModeBranchTrace) {
		return Support{}, xerrors.New(xerrors.Payload, "unknown encoder mode")
	}
	qual, err := decodeQualStatus(d)
	if err != nil {
		return Support{}, err
	}
	ioptions, err := u.DecodeIOptions(d)
	if err != nil {
		return Support{}, err
	}
	denable, err := d.ReadBit()
	if err != nil {
		return Support{}, err
	}
	dloss, err := d.ReadBit()
	if err != nil {
		return Support{}, err
	}
	doptions, err := u.DecodeDOptions(d)
	if err != nil {
		return Support{}, err
	}
	return Support{
		Ienable:     ienable,
		EncoderMode: EncoderMode(rawMode),
		QualStatus:  qual,
		IOptions:    ioptions,
		Denable:     denable,
		Dloss:       dloss,
		DOptions:    doptions,
	}, nil
}

// Sync is the format-3 synchronization payload: exactly one of Start,
// Trap, Ctx or Support is meaningful, selected by Kind.
type Sync struct {
	Kind    SyncKind
	Start   Start
	Trap    Trap
	Ctx     Context
	Support Support
}

// AsContext extracts the Context carried by Start, Trap or a
// standalone Context payload. It returns false for Support, which
// carries no context.
func (s Sync) AsContext() (Context, bool) {
	switch s.Kind {
	case SyncStart:
		return s.Start.Ctx, true
	case SyncTrap:
		return s.Trap.Ctx, true
	case SyncContext:
		return s.Ctx, true
	default:
		return Context{}, false
	}
}

// BranchNotTaken reports whether the reported address was reached
// without a taken branch, for Start/Trap payloads. It returns false
// for payload kinds that carry no such bit.
func (s Sync) BranchNotTaken() (bool, bool) {
	switch s.Kind {
	case SyncStart:
		return s.Start.Branch, true
	case SyncTrap:
		return s.Trap.Branch, true
	default:
		return false, false
	}
}

func decodeSync(d *bits.Decoder, w unit.Widths, u unit.Unit) (Sync, error) {
	sub, err := d.ReadUint(2)
	if err != nil {
		return Sync{}, err
	}
	switch sub {
	case 0b00:
		start, err := decodeStart(d, w)
		if err != nil {
			return Sync{}, err
		}
		return Sync{Kind: SyncStart, Start: start}, nil
	case 0b01:
		trap, err := decodeTrap(d, w)
		if err != nil {
			return Sync{}, err
		}
		return Sync{Kind: SyncTrap, Trap: trap}, nil
	case 0b10:
		ctx, err := decodeContext(d, w)
		if err != nil {
			return Sync{}, err
		}
		return Sync{Kind: SyncContext, Ctx: ctx}, nil
	default: // 0b11
		support, err := decodeSupport(d, u)
		if err != nil {
			return Sync{}, err
		}
		return Sync{Kind: SyncSupport, Support: support}, nil
	}
}
