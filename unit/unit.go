// Package unit models the encoder side of the protocol: per-encoder
// parameter widths and the two capability sets (instruction-trace and
// data-trace options) a packet decoder needs to know about to parse a
// Support payload and size every other field.
package unit

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"

// AddressMode selects whether addresses are reported absolute
// ("full") or as a signed delta from the last reported PC.
type AddressMode uint8

const (
	AddressDelta AddressMode = iota
	AddressFull
)

// Parameters holds the flat configuration record a caller supplies to
// build a Decoder/Tracer — the same key/value set named in the
// external-interfaces contract, using the encoder's own parameter
// names (the trailing _p is conventional in the E-Trace spec).
type Parameters struct {
	CacheSizeP       uint8
	CallCounterSizeP uint8
	ContextWidthP    uint8
	TimeWidthP       uint8
	EcauseWidthP     uint8
	F0SWidthP        uint8
	IaddressLsbP     uint8
	IaddressWidthP   uint8
	NoContextP       bool
	NoTimeP          bool
	PrivilegeWidthP  uint8
	ReturnStackSizeP uint8
	SijumpP          bool

	BranchPredictionP bool
	JumpTargetCacheP  bool
	ImplicitReturnP   bool
	ImplicitExceptionP bool
	FullAddressP      bool
}

// DefaultParameters returns the reference encoder's documented
// defaults.
func DefaultParameters() Parameters {
	return Parameters{
		EcauseWidthP:    6,
		IaddressLsbP:    1,
		IaddressWidthP:  32,
		NoContextP:      true,
		NoTimeP:         true,
		PrivilegeWidthP: 2,
	}
}

// Widths is the set of bit widths derived from Parameters that the
// packet decoder needs to size every variable-width field. A zero
// value for an Option-typed width (HasContext == false, etc.) means
// the field is absent from the wire format entirely, not merely zero
// width.
type Widths struct {
	CacheIndex       uint8
	HasContext       bool
	Context          uint8
	HasTime          bool
	Time             uint8
	Ecause           uint8
	Format0Subformat uint8
	IaddressLsb      uint8
	Iaddress         uint8
	Privilege        uint8
	HasStackDepth    bool
	StackDepth       uint8
}

// WidthsFrom derives a Widths from Parameters.
func WidthsFrom(p Parameters) Widths {
	w := Widths{
		CacheIndex:       p.CacheSizeP,
		Ecause:           p.EcauseWidthP,
		Format0Subformat: p.F0SWidthP,
		IaddressLsb:      p.IaddressLsbP,
		Iaddress:         p.IaddressWidthP,
		Privilege:        p.PrivilegeWidthP,
	}
	if !p.NoContextP {
		w.HasContext = true
		w.Context = p.ContextWidthP
	}
	if !p.NoTimeP {
		w.HasTime = true
		w.Time = p.TimeWidthP
	}
	depth := p.ReturnStackSizeP + p.CallCounterSizeP
	if p.ReturnStackSizeP > 0 {
		depth++
	}
	if depth > 0 {
		w.HasStackDepth = true
		w.StackDepth = depth
	}
	return w
}

// IOptions is the instruction-trace option snapshot carried by a
// Sync.Support payload. Every accessor returns ok=false when the
// concrete unit does not report that option at all (as opposed to
// reporting it disabled).
type IOptions interface {
	AddressMode() (AddressMode, bool)
	SequentiallyInferredJumps() (bool, bool)
	ImplicitReturn() (bool, bool)
	ImplicitException() (bool, bool)
	BranchPrediction() (bool, bool)
	JumpTargetCache() (bool, bool)
}

// DOptions is the data-trace option snapshot; opaque to the tracer,
// which never inspects it, but still needs to be decoded so the
// packet cursor advances past it correctly.
type DOptions interface {
	// Raw returns the option bits exactly as read, for callers that
	// want to inspect data-trace configuration themselves.
	Raw() uint64
}

// Unit is a concrete encoder model: it knows the width of its own
// encoder-mode field and how to decode its IOptions/DOptions.
type Unit interface {
	EncoderModeWidth() uint8
	DecodeIOptions(d *bits.Decoder) (IOptions, error)
	DecodeDOptions(d *bits.Decoder) (DOptions, error)
}

type rawDOptions uint64

func (r rawDOptions) Raw() uint64 { return uint64(r) }
