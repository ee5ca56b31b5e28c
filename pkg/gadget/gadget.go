// Package gadget implements the code generation phase of the gadget-chain
// compiler: assembling candidate snippets, loading and searching a target
// binary, and formatting the matched addresses into a payload.
package gadget

import (
	"fmt"

	"github.com/ropcompiler/ropc/pkg/rop"
)

// Arch identifies a target instruction set.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchARM
	ArchThumb
	ArchARM64
	ArchMicro
	ArchMIPS3
	ArchMIPS32R6
	ArchMIPS32
	ArchMIPS64
	ArchSPARC32
	ArchSPARC64
	ArchSPARCV9
	ArchX86_16
	ArchX86_32
	ArchX86_64
)

// ParseArch maps a CLI `-c/--cputype` value to an Arch.
func ParseArch(cputype string) (Arch, error) {
	switch cputype {
	case "arm":
		return ArchARM, nil
	case "thumb":
		return ArchThumb, nil
	case "armv8":
		return ArchARM64, nil
	case "micro":
		return ArchMicro, nil
	case "mips3":
		return ArchMIPS3, nil
	case "mips32r6":
		return ArchMIPS32R6, nil
	case "mips32":
		return ArchMIPS32, nil
	case "mips64":
		return ArchMIPS64, nil
	case "sparc32":
		return ArchSPARC32, nil
	case "sparc64":
		return ArchSPARC64, nil
	case "sparcv9":
		return ArchSPARCV9, nil
	case "x86-16":
		return ArchX86_16, nil
	case "x86-32":
		return ArchX86_32, nil
	case "x86-64":
		return ArchX86_64, nil
	default:
		return ArchUnknown, fmt.Errorf("unrecognized cputype %q", cputype)
	}
}

func (a Arch) isX86() bool { return a == ArchX86_16 || a == ArchX86_32 || a == ArchX86_64 }

// Syntax identifies an assembly dialect, required for x86 modes.
type Syntax int

const (
	SyntaxUnknown Syntax = iota
	SyntaxATT
	SyntaxGAS
	SyntaxIntel
	SyntaxNASM
)

// ParseSyntax maps a CLI `-s/--syntax` value to a Syntax.
func ParseSyntax(syntax string) (Syntax, error) {
	switch syntax {
	case "att":
		return SyntaxATT, nil
	case "gas":
		return SyntaxGAS, nil
	case "intel":
		return SyntaxIntel, nil
	case "nasm":
		return SyntaxNASM, nil
	default:
		return SyntaxUnknown, fmt.Errorf("unrecognized syntax %q", syntax)
	}
}

// Match is one gadget's resolved location: the address it was found at, the
// raw bytes matched, and which candidate string produced the match.
type Match struct {
	Address   uint64
	Bytes     []byte
	Candidate string
}

// Candidate is one alternative snippet within a gadget's disjunction,
// carrying the source position an assembler failure on it must be
// anchored to (§4.4, §7).
type Candidate struct {
	Text string
	Pos  rop.Position
}

// Options bundles the CLI-surface toggles that affect codegen.
type Options struct {
	Arch         Arch
	Syntax       Syntax
	Bytewise     bool // -b/--bytewise: KMP bytewise search instead of mnemonic-wise
	ByteOrder    bool // -e/--byteorder: little-endian byte-pair reversal
	Individually bool // -i/--individually: echo the candidate alongside each address
	Bitwidth     int  // -w/--bitwidth: 0 (none), 16, 32 or 64
}
