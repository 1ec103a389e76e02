package trace

// TrapInfo carries a trap's cause and, for exceptions (as opposed to
// interrupts), the faulting value.
type TrapInfo struct {
	Ecause uint64
	Tval   *uint64
}

// IsInterrupt reports whether this trap is an interrupt (no tval).
func (t TrapInfo) IsInterrupt() bool { return t.Tval == nil }

// IsException reports whether this trap is a synchronous exception.
func (t TrapInfo) IsException() bool { return t.Tval != nil }
