package gadget

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Instruction is one decoded instruction from the executable section:
// its runtime address and the raw bytes it occupies.
type Instruction struct {
	Address uint64
	Bytes   []byte
}

// DisasmAll decodes every instruction in opcodes, front to back, returning
// them in address order. Addresses are emitted as base+offset.
// Implements the Disassembler adapter with golang.org/x/arch — the same
// dependency mewmew-x and the DataDog agent pull in for pure-Go decoding,
// with no native/cgo disassembler library anywhere in the retrieved pack.
func DisasmAll(arch Arch, opcodes []byte, base uint64) ([]Instruction, error) {
	switch {
	case arch.isX86():
		return disasmX86(arch, opcodes, base)
	case arch == ArchARM || arch == ArchThumb:
		return disasmARM(arch, opcodes, base)
	case arch == ArchARM64:
		return disasmARM64(opcodes, base)
	default:
		return nil, fmt.Errorf("disassembler: architecture not supported")
	}
}

func disasmX86(arch Arch, opcodes []byte, base uint64) ([]Instruction, error) {
	mode := 64
	switch arch {
	case ArchX86_16:
		mode = 16
	case ArchX86_32:
		mode = 32
	}

	var out []Instruction
	for off := 0; off < len(opcodes); {
		inst, err := x86asm.Decode(opcodes[off:], mode)
		if err != nil || inst.Len == 0 {
			off++ // resync on an undecodable byte, same as scanning byte-by-byte
			continue
		}
		out = append(out, Instruction{
			Address: base + uint64(off),
			Bytes:   append([]byte{}, opcodes[off:off+inst.Len]...),
		})
		off += inst.Len
	}
	return out, nil
}

func disasmARM(arch Arch, opcodes []byte, base uint64) ([]Instruction, error) {
	mode := armasm.ModeARM
	if arch == ArchThumb {
		mode = armasm.ModeThumb
	}

	var out []Instruction
	step := 4
	if mode == armasm.ModeThumb {
		step = 2
	}
	for off := 0; off+step <= len(opcodes); {
		inst, err := armasm.Decode(opcodes[off:], mode)
		if err != nil || inst.Len == 0 {
			off += step
			continue
		}
		out = append(out, Instruction{
			Address: base + uint64(off),
			Bytes:   append([]byte{}, opcodes[off:off+inst.Len]...),
		})
		off += inst.Len
	}
	return out, nil
}

func disasmARM64(opcodes []byte, base uint64) ([]Instruction, error) {
	var out []Instruction
	for off := 0; off+4 <= len(opcodes); off += 4 {
		if _, err := arm64asm.Decode(opcodes[off:]); err != nil {
			continue
		}
		out = append(out, Instruction{
			Address: base + uint64(off),
			Bytes:   append([]byte{}, opcodes[off:off+4]...),
		})
	}
	return out, nil
}
