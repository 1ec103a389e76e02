package trace

import "github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"

// ItemKind discriminates the tagged union of items the tracer emits.
type ItemKind uint8

const (
	ItemRetire ItemKind = iota
	ItemTrap
	ItemContext
)

// Item is one element of the tracer's output stream: a retired
// instruction, a trap boundary, or a context-only update. Exactly one
// of the per-kind field groups is meaningful, selected by Kind.
type Item struct {
	Kind ItemKind

	// Valid when Kind == ItemRetire.
	PC   uint64
	Info insn.Info
	Size int

	// Valid when Kind == ItemTrap.
	EPC       uint64
	Trap      TrapInfo
	Interrupt bool

	// Valid when Kind == ItemTrap or ItemContext.
	Privilege Privilege
	Context   uint64
}

// Retire constructs a retirement item.
func Retire(pc uint64, info insn.Info, size int) Item {
	return Item{Kind: ItemRetire, PC: pc, Info: info, Size: size}
}

// Trap constructs a trap-boundary item.
func Trap(epc uint64, trap TrapInfo, priv Privilege) Item {
	return Item{
		Kind:      ItemTrap,
		EPC:       epc,
		Trap:      trap,
		Interrupt: trap.IsInterrupt(),
		Privilege: priv,
	}
}

// Context constructs a context-only update item.
func Context(priv Privilege, ctx uint64) Item {
	return Item{Kind: ItemContext, Privilege: priv, Context: ctx}
}
