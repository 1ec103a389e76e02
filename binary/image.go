// Package binary provides the binary-image abstraction the tracer
// walks: a mapping from address to decoded instruction, with misses
// and decode errors kept distinct so combinators can fall through on
// one but not the other.
package binary

import (
	"errors"
	"sort"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
)

// ErrMiss is returned by an Image when the requested address is not
// covered by it at all. It is distinct from a decode error, which
// means the address is covered but its bytes don't form a known
// instruction.
var ErrMiss = errors.New("binary: address not covered by this image")

// Image maps an address to the instruction found there.
type Image interface {
	// GetInsn returns the decoded instruction and its size in bytes,
	// or an error. Use errors.Is(err, ErrMiss) to distinguish "not
	// covered" from a genuine decode failure.
	GetInsn(addr uint64) (info insn.Info, size int, err error)
}

func missAt(addr uint64) error {
	return xerrors.WrapAt(xerrors.Binary, addr, ErrMiss, "address not covered")
}

// Offset wraps an Image, reporting a miss for any address below Base
// rather than wrapping or underflowing.
type Offset struct {
	Image Image
	Base  uint64
}

func (o Offset) GetInsn(addr uint64) (insn.Info, int, error) {
	if addr < o.Base {
		return nil, 0, missAt(addr)
	}
	return o.Image.GetInsn(addr - o.Base)
}

// Fallback tries First; if First misses (but only if it misses, never
// on a decode error), it tries Second.
type Fallback struct {
	First  Image
	Second Image
}

func (f Fallback) GetInsn(addr uint64) (insn.Info, int, error) {
	info, size, err := f.First.GetInsn(addr)
	if err == nil || !errors.Is(err, ErrMiss) {
		return info, size, err
	}
	return f.Second.GetInsn(addr)
}

// Chain generalizes Fallback to any number of images, tried in order;
// the first one that doesn't miss wins.
type Chain []Image

func (c Chain) GetInsn(addr uint64) (insn.Info, int, error) {
	var last error = missAt(addr)
	for _, img := range c {
		info, size, err := img.GetInsn(addr)
		if err == nil {
			return info, size, nil
		}
		if !errors.Is(err, ErrMiss) {
			return nil, 0, err
		}
		last = err
	}
	return nil, 0, last
}

// Func adapts a plain function to the Image interface.
type Func func(addr uint64) (insn.Info, int, error)

func (f Func) GetInsn(addr uint64) (insn.Info, int, error) {
	return f(addr)
}

// Segment is an in-memory, contiguous code region starting at Base.
// Addresses outside [Base, Base+len(Code)) miss; an instruction whose
// declared size would read past the end of Code is a decode error,
// not a miss (it is backed by image bytes that simply don't form a
// complete instruction).
type Segment struct {
	Base    uint64
	Code    []byte
	BaseSet insn.BaseSet
}

func (s Segment) GetInsn(addr uint64) (insn.Info, int, error) {
	if addr < s.Base || addr >= s.Base+uint64(len(s.Code)) {
		return nil, 0, missAt(addr)
	}
	off := addr - s.Base
	bits, _, err := insn.ExtractBits(s.Code[off:])
	if err != nil {
		return nil, 0, xerrors.WrapAt(xerrors.Binary, addr, err, "instruction straddles segment boundary")
	}
	info := insn.Decode(bits, s.BaseSet)
	return info, info.Size(), nil
}

// entry is one pre-decoded record in a SortedMap.
type entry struct {
	Addr uint64
	Info insn.Info
	Size int
}

// SortedMap is an adapter over a sparse, pre-decoded, address-sorted
// set of instructions, for callers holding e.g. a symbol table rather
// than a contiguous code segment.
type SortedMap struct {
	entries []entry
}

// NewSortedMap builds a SortedMap from addr->(info,size) records. The
// input need not be pre-sorted.
func NewSortedMap(records map[uint64]struct {
	Info insn.Info
	Size int
}) *SortedMap {
	m := &SortedMap{entries: make([]entry, 0, len(records))}
	for addr, r := range records {
		m.entries = append(m.entries, entry{Addr: addr, Info: r.Info, Size: r.Size})
	}
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].Addr < m.entries[j].Addr })
	return m
}

func (m *SortedMap) GetInsn(addr uint64) (insn.Info, int, error) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Addr >= addr })
	if i < len(m.entries) && m.entries[i].Addr == addr {
		e := m.entries[i]
		return e.Info, e.Size, nil
	}
	return nil, 0, missAt(addr)
}
