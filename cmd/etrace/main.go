// Command etrace is a minimal driver for the reconstruction engine: it
// decodes an SMI or encapsulation packet stream against a caller-supplied
// program image and prints one line per retired instruction in the
// spike_pc_trace-compatible format named in this module's external
// interfaces, so it doubles as a manual comparison driver against a
// golden spike trace without pulling the comparison harness itself into
// this repository.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/bits"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/binary"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet/encap"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/packet/smi"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/trace"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/tracer"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/unit"
)

// segment is a loaded code region, kept alongside the binary.Image
// built from it so the printer can recover the raw instruction bytes
// for the spike_pc_trace hex field without widening insn.Info.
type segment struct {
	base uint64
	code []byte
}

func (s segment) bytesAt(addr uint64, size int) []byte {
	if addr < s.base || addr+uint64(size) > s.base+uint64(len(s.code)) {
		return nil
	}
	off := addr - s.base
	return s.code[off : off+uint64(size)]
}

type segments []segment

func (segs segments) bytesAt(addr uint64, size int) []byte {
	for _, s := range segs {
		if b := s.bytesAt(addr, size); b != nil {
			return b
		}
	}
	return nil
}

func main() {
	traceFile := flag.String("trace", "", "path to the raw packet stream")
	elfFile := flag.String("elf", "", "path to an ELF image (mutually exclusive with -bin)")
	binFile := flag.String("bin", "", "path to a raw code segment (mutually exclusive with -elf)")
	binBase := flag.Uint64("base", 0, "load address of -bin's code segment")
	hart := flag.Uint64("hart", 0, "hart index to trace; other harts' packets are skipped")
	encapsulation := flag.Bool("encap", false, "decode the encapsulation envelope instead of SMI")
	pulpUnit := flag.Bool("pulp", false, "use the PULP (rv_tracer) unit instead of the reference encoder")
	addrWidth := flag.Uint("addr-width", 32, "iaddress_width_p")
	retStackDepth := flag.Uint("retstack-depth", 8, "return_stack_size_p")
	implicitReturn := flag.Bool("implicit-return", true, "implicit_return_p")
	implicitException := flag.Bool("implicit-exception", false, "implicit_exception_p")
	fullAddress := flag.Bool("full-address", false, "full_address_p")
	sijump := flag.Bool("sijump", false, "sijump_p")
	rv64 := flag.Bool("rv64", true, "decode against RV64I rather than RV32I")

	flag.Parse()

	if *traceFile == "" {
		fmt.Fprintln(os.Stderr, "etrace: -trace is required")
		os.Exit(1)
	}
	if (*elfFile == "") == (*binFile == "") {
		fmt.Fprintln(os.Stderr, "etrace: exactly one of -elf or -bin is required")
		os.Exit(1)
	}

	baseSet := insn.RV32I
	if *rv64 {
		baseSet = insn.RV64I
	}

	var img binary.Image
	var segs segments
	var err error
	if *elfFile != "" {
		img, segs, err = loadELFImage(*elfFile, baseSet)
	} else {
		img, segs, err = loadRawImage(*binFile, *binBase, baseSet)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "etrace: %v\n", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(*traceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "etrace: reading trace file: %v\n", err)
		os.Exit(1)
	}

	params := unit.DefaultParameters()
	params.IaddressWidthP = uint8(*addrWidth)
	params.ReturnStackSizeP = uint8(*retStackDepth)
	params.ImplicitReturnP = *implicitReturn
	params.ImplicitExceptionP = *implicitException
	params.FullAddressP = *fullAddress
	params.SijumpP = *sijump
	widths := unit.WidthsFrom(params)

	var u unit.Unit = unit.Reference{}
	if *pulpUnit {
		u = unit.PULP{}
	}

	mode := unit.AddressDelta
	if *fullAddress {
		mode = unit.AddressFull
	}

	t := tracer.New(img, tracer.Config{
		AddressWidth:      uint8(*addrWidth),
		AddressMode:       mode,
		SequentialJumps:   *sijump,
		ImplicitReturn:    *implicitReturn,
		ImplicitException: *implicitException,
		ReturnStackDepth:  int(*retStackDepth),
	})

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	d := bits.NewDecoder(raw)
	for d.BitsLeft() > 0 {
		payload, skipped, err := nextInstructionTrace(d, *encapsulation, widths, u, *hart)
		if err != nil {
			fmt.Fprintf(os.Stderr, "etrace: decoding packet at byte %d: %v\n", d.BytePos(), err)
			os.Exit(1)
		}
		if skipped {
			continue
		}
		items, err := t.ProcessPayload(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "etrace: processing payload at byte %d: %v\n", d.BytePos(), err)
			os.Exit(1)
		}
		for _, it := range items {
			printItem(out, *hart, it, segs)
		}
	}
}

// nextInstructionTrace decodes one envelope packet and, if it carries
// an instruction-trace payload for the hart being traced, returns the
// decoded payload. skipped is true for data-trace payloads and
// packets belonging to another hart.
func nextInstructionTrace(d *bits.Decoder, useEncap bool, w unit.Widths, u unit.Unit, hart uint64) (packet.InstructionTrace, bool, error) {
	if useEncap {
		p, err := encap.Decode(d, encap.Params{SrcIDWidth: 8, TimestampWidth: 0})
		if err != nil {
			return packet.InstructionTrace{}, false, err
		}
		if p.Flavor != encap.FlavorNormal || uint64(p.SrcID) != hart {
			p.Close()
			return packet.InstructionTrace{}, true, nil
		}
		it, err := p.DecodePayload(w, u)
		return it, false, err
	}
	p, err := smi.Decode(d, smi.DefaultParams(), 2)
	if err != nil {
		return packet.InstructionTrace{}, false, err
	}
	tt, ok := p.TraceType()
	if !ok || tt != smi.TraceInstruction || p.Hart != hart {
		p.Close()
		return packet.InstructionTrace{}, true, nil
	}
	it, err := p.DecodePayload(w, u)
	return it, false, err
}

// printItem renders a trace.Item in the spike_pc_trace-compatible
// format named in spec.md §6: "core N: <priv> <pc> (<hex instruction>)"
// for retirements, with "-" in the <priv> field because retire items
// carry no privilege; trap and context items get their own
// informational lines since spike's format has no room for them.
func printItem(out *bufio.Writer, core uint64, it trace.Item, segs segments) {
	switch it.Kind {
	case trace.ItemRetire:
		word := segs.bytesAt(it.PC, it.Size)
		fmt.Fprintf(out, "core %3d: %s %#016x (%s)\n", core, "-", it.PC, hexWord(word))
	case trace.ItemTrap:
		fmt.Fprintf(out, "core %3d: exception %s, epc %#016x\n", core, it.Privilege, it.EPC)
	case trace.ItemContext:
		fmt.Fprintf(out, "core %3d: context %s ctx=%#x\n", core, it.Privilege, it.Context)
	}
}

func hexWord(b []byte) string {
	if b == nil {
		return "????????"
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	switch len(b) {
	case 2:
		return fmt.Sprintf("%04x", v)
	case 4:
		return fmt.Sprintf("%08x", v)
	default:
		return fmt.Sprintf("%x", v)
	}
}
