package unit

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"

// Reference is the E-Trace specification's reference encoder model.
// It reports every IOptions field except sequentially-inferred jumps
// and encodes its Sync.Support encoder-mode in a single bit.
type Reference struct{}

func (Reference) EncoderModeWidth() uint8 { return 1 }

type referenceIOptions struct {
	addressMode       AddressMode
	implicitReturn    bool
	implicitException bool
	branchPrediction  bool
	jumpTargetCache   bool
}

func (o referenceIOptions) AddressMode() (AddressMode, bool) { return o.addressMode, true }
func (referenceIOptions) SequentiallyInferredJumps() (bool, bool) {
	return false, false
}
func (o referenceIOptions) ImplicitReturn() (bool, bool)    { return o.implicitReturn, true }
func (o referenceIOptions) ImplicitException() (bool, bool) { return o.implicitException, true }
func (o referenceIOptions) BranchPrediction() (bool, bool)  { return o.branchPrediction, true }
func (o referenceIOptions) JumpTargetCache() (bool, bool)   { return o.jumpTargetCache, true }

func (Reference) DecodeIOptions(d *bits.Decoder) (IOptions, error) {
	implicitReturn, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	implicitException, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	fullAddr, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	jumpTargetCache, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	branchPrediction, err := d.ReadBit()
	if err != nil {
		return nil, err
	}
	mode := AddressDelta
	if fullAddr {
		mode = AddressFull
	}
	return referenceIOptions{
		addressMode:       mode,
		implicitReturn:    implicitReturn,
		implicitException: implicitException,
		branchPrediction:  branchPrediction,
		jumpTargetCache:   jumpTargetCache,
	}, nil
}

func (Reference) DecodeDOptions(d *bits.Decoder) (DOptions, error) {
	v, err := d.ReadUint(4)
	if err != nil {
		return nil, err
	}
	return rawDOptions(v), nil
}
