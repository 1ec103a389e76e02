package main

import (
	"fmt"
	"os"

	elf_reader "github.com/yalue/elf_reader"

	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/binary"
	"github.com/fzi-forschungszentrum-informatik/riscv-etrace/insn"
)

// loadRawImage adapts a single raw code segment into a binary.Image,
// the simplest caller-side construction named in spec.md §6.
func loadRawImage(path string, base uint64, baseSet insn.BaseSet) (binary.Image, segments, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading raw segment: %w", err)
	}
	seg := binary.Segment{Base: base, Code: code, BaseSet: baseSet}
	return seg, segments{{base: base, code: code}}, nil
}

// loadELFImage walks an ELF file's PT_LOAD program headers with
// github.com/yalue/elf_reader and builds a binary.Chain of offset
// binary.Segment adapters, one per loadable segment — the concrete
// construction recipe spec.md §6 describes for ELF-backed images,
// kept entirely on the caller side of the binary.Image boundary.
func loadELFImage(path string, baseSet insn.BaseSet) (binary.Image, segments, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading ELF file: %w", err)
	}
	f, err := elf_reader.ParseELFFile(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing ELF file: %w", err)
	}

	var chain binary.Chain
	var segs segments
	count := f.GetSegmentCount()
	for i := uint16(0); i < count; i++ {
		ph, err := f.GetProgramHeader(i)
		if err != nil {
			return nil, nil, fmt.Errorf("reading ELF program header %d: %w", i, err)
		}
		if ph.GetType() != elf_reader.LoadableSegment {
			continue
		}
		fileSize := ph.GetFileSize()
		if fileSize == 0 {
			continue
		}
		off := ph.GetFileOffset()
		if off+fileSize > uint64(len(raw)) {
			return nil, nil, fmt.Errorf("ELF program header %d: segment runs past end of file", i)
		}
		code := raw[off : off+fileSize]
		vaddr := ph.GetVirtualAddress()
		chain = append(chain, binary.Offset{
			Image: binary.Segment{Base: 0, Code: code, BaseSet: baseSet},
			Base:  vaddr,
		})
		segs = append(segs, segment{base: vaddr, code: code})
	}
	if len(chain) == 0 {
		return nil, nil, fmt.Errorf("ELF file %s has no loadable (PT_LOAD) segments", path)
	}
	return chain, segs, nil
}
