package unit

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"

// Plug is a type-erased Unit. A Go interface value is already boxed,
// so Plug needs no allocation trick of its own — it exists so callers
// that must juggle packets from more than one concrete unit kind in a
// single decoder instance have a named type to store them as, instead
// of threading the Unit type parameter through every call site.
type Plug struct {
	inner Unit
}

// NewPlug boxes a concrete Unit behind a Plug.
func NewPlug(u Unit) Plug {
	return Plug{inner: u}
}

func (p Plug) EncoderModeWidth() uint8 {
	return p.inner.EncoderModeWidth()
}

func (p Plug) DecodeIOptions(d *bits.Decoder) (IOptions, error) {
	return p.inner.DecodeIOptions(d)
}

func (p Plug) DecodeDOptions(d *bits.Decoder) (DOptions, error) {
	return p.inner.DecodeDOptions(d)
}

// Inner returns the wrapped concrete unit for callers that need to
// type-switch on it.
func (p Plug) Inner() Unit {
	return p.inner
}
