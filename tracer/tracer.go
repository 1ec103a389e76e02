// Package tracer implements the state machine that consumes decoded
// instruction-trace payloads and walks a binary image to reconstruct
// the PC sequence a traced hart executed, emitting retirement, trap
// and context items in execution order.
package tracer

import (
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/binary"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/internal/xerrors"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// maxWalkSteps bounds a single payload's instruction walk. The E-Trace
// protocol never defers more than a few tens of instructions between
// packets; a walk exceeding this is a desynchronized trace, not a
// slow one.
const maxWalkSteps = 4096

// RISC-V privileged-spec mcause codes for the two exception types
// implicit-exception needs to disambiguate.
const (
	causeBreakpoint = 3
	causeEcallFromU = 8
	causeEcallFromS = 9
	causeEcallFromM = 11
)

// causeEcall returns the ECALL trap cause for the privilege level the
// hart was executing in when the ECALL was taken.
func causeEcall(priv trace.Privilege) uint64 {
	switch priv {
	case trace.Supervisor:
		return causeEcallFromS
	case trace.Machine:
		return causeEcallFromM
	default:
		return causeEcallFromU
	}
}

// Config carries the per-hart options the tracer needs, derived from
// the caller's unit.Parameters once and held fixed for the tracer's
// lifetime (Sync.Support payloads only ever echo this configuration
// back for diagnostic purposes — this package does not rely on a
// Support payload arriving before tracing can begin).
type Config struct {
	AddressWidth      uint8
	AddressMode       unit.AddressMode
	SequentialJumps   bool
	ImplicitReturn    bool
	ImplicitException bool
	ReturnStackDepth  int
}

// state holds everything the tracer carries between ProcessPayload
// calls.
type state struct {
	pc               uint64
	tracing          bool
	privilege        trace.Privilege
	context          uint64
	lastReportedAddr uint64
	branchMap        trace.BranchMap
	returnStack      *trace.ReturnStack
}

// Tracer is the execution-tracing state machine described in this
// module's design: it walks a binary.Image under the guidance of
// decoded packet.InstructionTrace payloads and emits a trace.Item
// stream in execution order.
type Tracer struct {
	img   binary.Image
	cfg   Config
	state state
}

// New creates a Tracer over img, initially idle (not tracing) until a
// Sync.Start payload is processed.
func New(img binary.Image, cfg Config) *Tracer {
	return &Tracer{
		img: img,
		cfg: cfg,
		state: state{
			returnStack: trace.NewReturnStack(cfg.ReturnStackDepth),
		},
	}
}

// IsTracing reports whether the tracer currently has a known PC (has
// seen a Sync.Start and has not since gone idle via a disqualifying
// Sync.Support).
func (t *Tracer) IsTracing() bool { return t.state.tracing }

// Binary returns the backing binary image.
func (t *Tracer) Binary() binary.Image { return t.img }

// BinaryMut lets a caller swap in a different image between
// ProcessPayload calls (e.g. once more of a demand-paged binary has
// become available).
func (t *Tracer) BinaryMut(img binary.Image) { t.img = img }

// Reset returns the tracer to its initial, idle state, discarding any
// pending branch map and return-stack contents.
func (t *Tracer) Reset() {
	t.state = state{returnStack: trace.NewReturnStack(t.cfg.ReturnStackDepth)}
}

func (t *Tracer) mask(addr uint64) uint64 {
	if t.cfg.AddressWidth >= 64 {
		return addr
	}
	return addr & ((uint64(1) << t.cfg.AddressWidth) - 1)
}

// ProcessPayload consumes one decoded InstructionTrace payload and
// returns the items it produces, in execution order.
func (t *Tracer) ProcessPayload(p packet.InstructionTrace) ([]trace.Item, error) {
	if !t.state.tracing {
		sync, ok := asSync(p)
		if !ok || sync.Kind != packet.SyncStart {
			return nil, xerrors.New(xerrors.Protocol, "expected a Sync.Start payload while idle")
		}
		return t.processStart(sync.Start, true)
	}

	switch p.Kind {
	case packet.KindBranch:
		return t.processBranch(p.Branch)
	case packet.KindAddress:
		return t.processAddress(p.Address)
	case packet.KindExtension:
		return t.processExtension(p.Extension)
	case packet.KindSync:
		switch p.Sync.Kind {
		case packet.SyncStart:
			return t.processStart(p.Sync.Start, false)
		case packet.SyncTrap:
			return t.processTrap(p.Sync.Trap)
		case packet.SyncContext:
			return t.processContext(p.Sync.Ctx)
		case packet.SyncSupport:
			return t.processSupport(p.Sync.Support)
		}
	}
	return nil, xerrors.New(xerrors.Protocol, "unrecognized instruction-trace payload")
}

func asSync(p packet.InstructionTrace) (packet.Sync, bool) {
	if p.Kind != packet.KindSync {
		return packet.Sync{}, false
	}
	return p.Sync, true
}

// processStart handles a Sync.Start payload, both the very first one
// (fromIdle == true, no prior state to discard) and a mid-trace
// resynchronization (discards any pending branch map and does not
// emit a spurious Context when privilege/context are unchanged).
func (t *Tracer) processStart(start packet.Start, fromIdle bool) ([]trace.Item, error) {
	var items []trace.Item
	ctx := start.Ctx
	if !fromIdle && (ctx.Privilege != t.state.privilege || ctx.Context != t.state.context) {
		items = append(items, trace.Context(ctx.Privilege, ctx.Context))
	}
	t.state.pc = t.mask(start.Address)
	t.state.lastReportedAddr = t.state.pc
	t.state.privilege = ctx.Privilege
	t.state.context = ctx.Context
	t.state.tracing = true
	t.state.branchMap = trace.BranchMap{}
	return items, nil
}

func (t *Tracer) processContext(ctx packet.Context) ([]trace.Item, error) {
	t.state.privilege = ctx.Privilege
	t.state.context = ctx.Context
	return []trace.Item{trace.Context(ctx.Privilege, ctx.Context)}, nil
}

func (t *Tracer) processTrap(tr packet.Trap) ([]trace.Item, error) {
	epc := t.state.pc
	info := tr.Trap
	if t.cfg.ImplicitException && !info.IsInterrupt() {
		// Implicit-exception lets the encoder skip reporting a
		// trustworthy cause for ECALL/EBREAK; the tracer recovers it
		// from the instruction at EPC, using the privilege level the
		// hart was in immediately before the trap (not the handler
		// privilege tr.Ctx carries).
		if insnInfo, _, err := t.img.GetInsn(epc); err == nil && insnInfo.IsEcallOrEbreak() {
			if insnInfo.IsEbreak() {
				info.Ecause = causeBreakpoint
			} else {
				info.Ecause = causeEcall(t.state.privilege)
			}
		}
	}

	items := []trace.Item{trace.Trap(epc, info, tr.Ctx.Privilege)}
	t.state.pc = t.mask(tr.Address)
	t.state.lastReportedAddr = t.state.pc
	t.state.privilege = tr.Ctx.Privilege
	t.state.context = tr.Ctx.Context
	t.state.branchMap = trace.BranchMap{}
	return items, nil
}

func (t *Tracer) processSupport(s packet.Support) ([]trace.Item, error) {
	if s.QualStatus != packet.QualNoChange {
		t.state.tracing = false
	}
	return nil, nil
}

// isTrapBoundary reports whether a halt was caused by an instruction
// whose continuation is reported by a Sync.Trap, not an AddressInfo:
// ecall/ebreak (trap entry) and trap-return (xRET, already handled as
// an implicit-return candidate before reaching here only when it
// isn't one). These halts carry no address in-band; the tracer simply
// parks at the instruction and waits for the next payload.
func isTrapBoundary(info insn.Info) bool {
	return info != nil && (info.IsEcallOrEbreak() || info.IsReturnFromTrap())
}

func (t *Tracer) processBranch(b packet.Branch) ([]trace.Item, error) {
	if err := t.state.branchMap.Append(b.BranchMap); err != nil {
		return nil, err
	}
	if b.Address == nil {
		items, halted, _, haltInfo, err := t.walk(true)
		if err != nil {
			return items, err
		}
		if halted && !isTrapBoundary(haltInfo) {
			return items, xerrors.New(xerrors.Protocol, "uninferable discontinuity encountered with no address reported")
		}
		return items, nil
	}
	items, halted, _, haltInfo, err := t.walk(false)
	if err != nil {
		return items, err
	}
	if !halted {
		return items, xerrors.New(xerrors.Protocol, "branch payload carried an address but no discontinuity was reached")
	}
	if isTrapBoundary(haltInfo) {
		return items, xerrors.New(xerrors.Protocol, "reached a trap boundary but received an address payload instead of a Sync.Trap")
	}
	if err := t.resolveAddress(*b.Address); err != nil {
		return items, err
	}
	return items, nil
}

func (t *Tracer) processAddress(a packet.AddressInfo) ([]trace.Item, error) {
	items, halted, _, haltInfo, err := t.walk(false)
	if err != nil {
		return items, err
	}
	if !halted {
		return items, xerrors.New(xerrors.Protocol, "address payload received but no discontinuity was reached")
	}
	if isTrapBoundary(haltInfo) {
		return items, xerrors.New(xerrors.Protocol, "reached a trap boundary but received an address payload instead of a Sync.Trap")
	}
	if err := t.resolveAddress(a); err != nil {
		return items, err
	}
	return items, nil
}

func (t *Tracer) processExtension(e packet.Extension) ([]trace.Item, error) {
	if addr, ok := e.AddressInfo(); ok {
		return t.processAddress(addr)
	}
	// A BranchCount (predictor-correct-run) or JumpTargetIndex payload
	// without an embedded address reports metadata this engine has no
	// predictor/cache model to resolve against; treat it the way a
	// no-address Branch payload is treated — walk as far as the
	// branch map allows and stop, per spec.md's conservative handling
	// of unit-specific extensions it cannot fully interpret.
	items, halted, _, haltInfo, err := t.walk(true)
	if err != nil {
		return items, err
	}
	if halted && !isTrapBoundary(haltInfo) {
		return items, xerrors.New(xerrors.Protocol, "extension payload without address reached an uninferable discontinuity")
	}
	return items, nil
}

// resolveAddress applies a reported AddressInfo to the instruction the
// walk just halted at, checking any reported irdepth and advancing PC.
// The Notify and Updiscon flags are not inspected.
//
// a.IRDepth, when present, is the encoder's return-stack depth at the
// point this address was reported — sent precisely when an implicit
// return could not be silently resolved (stack empty, option off, or
// a genuine mismatch). Per this engine's reading of the ambiguous
// irdepth semantics (spec.md §9's first Open Question), it is checked
// against the tracer's own depth rather than gating every implicit
// pop, since no irdepth value is available at the instant of a purely
// implicit return with no accompanying packet.
func (t *Tracer) resolveAddress(a packet.AddressInfo) error {
	if a.IRDepth != nil && int(*a.IRDepth) != t.state.returnStack.Depth() {
		return xerrors.New(xerrors.Protocol, "reported irdepth does not match the tracer's return-stack depth")
	}
	var reported uint64
	if t.cfg.AddressMode == unit.AddressFull {
		reported = t.mask(uint64(a.Address))
	} else {
		reported = t.mask(t.state.lastReportedAddr + uint64(a.Address))
	}
	t.state.lastReportedAddr = reported
	t.state.pc = reported
	return nil
}

// walk advances the tracer's PC through the binary image, emitting a
// Retire item per instruction, until either:
//   - the branch map empties (if stopOnEmptyMap is true and no
//     discontinuity is hit first), or
//   - an uninferable discontinuity (or ecall/ebreak) is reached that
//     implicit-return cannot silently resolve.
//
// It returns halted=true in the second case, with the halting
// instruction's info and PC for the caller (resolveAddress) to use.
func (t *Tracer) walk(stopOnEmptyMap bool) (items []trace.Item, halted bool, haltPC uint64, haltInfo insn.Info, err error) {
	pc := t.state.pc
	for steps := 0; steps < maxWalkSteps; steps++ {
		if stopOnEmptyMap && t.state.branchMap.Empty() {
			t.state.pc = pc
			return items, false, 0, nil, nil
		}

		info, size, gerr := t.img.GetInsn(pc)
		if gerr != nil {
			return items, false, 0, nil, xerrors.WrapAt(xerrors.Binary, pc, gerr, "walking instruction stream")
		}
		items = append(items, trace.Retire(pc, info, size))
		if info.IsCall() {
			t.state.returnStack.Push(t.mask(pc + uint64(size)))
		}

		isDiscontinuity := info.IsUninferableDiscontinuity() || info.IsEcallOrEbreak()
		if isDiscontinuity {
			if info.IsReturn() && t.cfg.ImplicitReturn && t.state.returnStack.Depth() > 0 {
				addr, _ := t.state.returnStack.Pop()
				pc = t.mask(addr)
				continue
			}
			t.state.pc = pc
			return items, true, pc, info, nil
		}

		if info.IsBranch() {
			taken, ok := t.state.branchMap.PopTaken()
			if !ok {
				return items, false, 0, nil, xerrors.New(xerrors.Protocol, "branch instruction encountered with no outcome left in the branch map")
			}
			if taken {
				imm, _ := info.BranchTarget()
				pc = t.mask(pc + uint64(int64(imm)))
			} else {
				pc = t.mask(pc + uint64(size))
			}
			continue
		}

		if info.IsInferableJump() {
			imm, _ := info.InferableJumpTarget()
			pc = t.mask(uint64(int64(pc) + int64(imm)))
			continue
		}

		pc = t.mask(pc + uint64(size))
	}
	return items, false, 0, nil, xerrors.New(xerrors.Protocol, "instruction walk exceeded the step bound without reaching a stop condition")
}
