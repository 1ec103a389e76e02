package unit

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"

// PULP models the `rv_tracer` encoder used on PULP-family cores. Its
// Sync.Support payload carries no data-trace options at all, and its
// address mode is reported via two independent bits (delta_address,
// full_address) rather than one.
type PULP struct{}

func (PULP) EncoderModeWidth() uint8 { return 1 }

type pulpIOptions struct {
	deltaAddress      bool
	fullAddress       bool
	implicitException bool
	sijump            bool
	implicitReturn    bool
	branchPrediction  bool
	jumpTargetCache   bool
}

func (o pulpIOptions) AddressMode() (AddressMode, bool) {
	switch {
	case o.deltaAddress && !o.fullAddress:
		return AddressDelta, true
	case !o.deltaAddress && o.fullAddress:
		return AddressFull, true
	default:
		return 0, false
	}
}
func (o pulpIOptions) SequentiallyInferredJumps() (bool, bool) { return o.sijump, true }
func (o pulpIOptions) ImplicitReturn() (bool, bool)            { return o.implicitReturn, true }
func (o pulpIOptions) ImplicitException() (bool, bool)         { return o.implicitException, true }
func (o pulpIOptions) BranchPrediction() (bool, bool)          { return o.branchPrediction, true }
func (o pulpIOptions) JumpTargetCache() (bool, bool)           { return o.jumpTargetCache, true }

func (PULP) DecodeIOptions(d *bits.Decoder) (IOptions, error) {
	jumpTargetCache, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	branchPrediction, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	implicitReturn, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	sijump, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	implicitException, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	fullAddress, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	deltaAddress, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	return pulpIOptions{
		deltaAddress:      deltaAddress,
		fullAddress:       fullAddress,
		implicitException: implicitException,
		sijump:            sijump,
		implicitReturn:    implicitReturn,
		branchPrediction:  branchPrediction,
		jumpTargetCache:   jumpTargetCache,
	}, nil
}

// DecodeDOptions is a no-op: PULP's Sync.Support carries no
// data-trace options on the wire at all.
func (PULP) DecodeDOptions(d *bits.Decoder) (DOptions, error) {
	return rawDOptions(0), nil
}
