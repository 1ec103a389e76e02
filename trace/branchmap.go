package trace

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"

// MaxBranches is the largest number of outcomes a BranchMap can hold.
// This is the Go port's one deliberate divergence from
// original_source's 64-bit-backed map: spec.md's literal contract
// caps the map at 32 entries, so that is the contract honored here.
const MaxBranches = 32

// BranchMap is a FIFO of predicted taken/not-taken outcomes. The
// lowest-valued bit is always the oldest outcome; a set bit means
// "not taken", an unset bit means "taken".
type BranchMap struct {
	count uint8
	bits  uint32
}

// NewBranchMap constructs a BranchMap from a raw bit pattern and
// outcome count, as decoded directly off the wire.
func NewBranchMap(count uint8, raw uint32) (BranchMap, error) {
	if count > MaxBranches {
		return BranchMap{}, xerrors.New(xerrors.Protocol, "branch map exceeds the maximum of 32 entries")
	}
	return BranchMap{count: count, bits: raw}, nil
}

// Count returns the number of outcomes currently queued.
func (m BranchMap) Count() uint8 { return m.count }

// RawBits returns the raw bit pattern, LSB = oldest.
func (m BranchMap) RawBits() uint32 { return m.bits }

// PopTaken removes and returns the oldest outcome, reporting whether
// the branch was taken. It returns ok=false if the map is empty.
func (m *BranchMap) PopTaken() (taken bool, ok bool) {
	if m.count == 0 {
		return false, false
	}
	taken = m.bits&1 == 0
	m.bits >>= 1
	m.count--
	return taken, true
}

// PushTaken appends a new, newest outcome. It fails once the map
// already holds MaxBranches entries.
func (m *BranchMap) PushTaken(taken bool) error {
	if m.count >= MaxBranches {
		return xerrors.New(xerrors.Protocol, "cannot add branches: map already holds the maximum of 32 entries")
	}
	bit := uint32(1) << m.count
	if taken {
		m.bits &^= bit
	} else {
		m.bits |= bit
	}
	m.count++
	return nil
}

// Append adds other's outcomes on top of this map's, treating other's
// outcomes as newer than this map's existing ones.
func (m *BranchMap) Append(other BranchMap) error {
	if uint32(m.count)+uint32(other.count) > MaxBranches {
		return xerrors.New(xerrors.Protocol, "cannot add branches: appended map would exceed 32 entries")
	}
	m.bits |= other.bits << m.count
	m.count += other.count
	return nil
}

// Empty reports whether every outcome has been consumed.
func (m BranchMap) Empty() bool { return m.count == 0 }
