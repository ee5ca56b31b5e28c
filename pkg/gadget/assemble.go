package gadget

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ----------------------------------------------------------------------------
// Translation tables
//
// No pack dependency exposes a general multi-syntax (AT&T/Intel/NASM/GAS)
// text-to-bytes assembler, so the adapter is a hand-built, table-driven
// encoder in the same idiom as the Hack codegen's CompTable/DestTable/
// JumpTable: string mnemonic (or operand) in, opcode bits out. Coverage is
// the instruction shapes gadget chains actually use — control-flow
// terminators, register moves, stack ops and the handful of ALU forms a
// "pop rdi; ret"-style snippet needs — not a full ISA.

// reg64Table maps an x86-64 general purpose register name to its 3-bit
// encoding used by the opcode+register forms below; isExtendedReg64 tells
// whether the register also needs the REX extension bit (r8..r15).
var reg64Table = map[string]byte{
	"rax": 0, "rcx": 1, "rdx": 2, "rbx": 3, "rsp": 4, "rbp": 5, "rsi": 6, "rdi": 7,
	"r8": 0, "r9": 1, "r10": 2, "r11": 3, "r12": 4, "r13": 5, "r14": 6, "r15": 7,
}

func isExtendedReg64(name string) bool {
	return strings.HasPrefix(name, "r") && len(name) >= 2 && name[1] >= '0' && name[1] <= '9'
}

// zeroOperandTable covers mnemonics that, written without operands,
// assemble to a fixed byte sequence in every syntax.
var zeroOperandTable = map[string][]byte{
	"ret":    {0xc3},
	"retq":   {0xc3},
	"nop":    {0x90},
	"int3":   {0xcc},
	"syscall": {0x0f, 0x05},
	"leave":  {0xc9},
	"leaveq": {0xc9},
	"cld":    {0xfc},
	"std":    {0xfd},
	"pushf":  {0x9c},
	"popf":   {0x9d},
}

// NativeEngine is the Assembler adapter: `assemble(arch, mode, syntax, text,
// pos) -> bytes`. It is constructed once per codegen invocation and reused
// across every candidate.
type NativeEngine struct {
	arch   Arch
	syntax Syntax
}

// NewNativeEngine returns a NativeEngine for the given architecture and
// syntax. Only x86 modes are supported by the table-driven encoder; for
// every other Arch (including `micro`) it returns no engine and a
// "not supported" error, as it does for an x86 mode with no syntax.
func NewNativeEngine(arch Arch, syntax Syntax) (*NativeEngine, error) {
	if !arch.isX86() {
		return nil, fmt.Errorf("assembler: architecture not supported for native encoding")
	}
	if syntax == SyntaxUnknown {
		return nil, fmt.Errorf("assembler: syntax is required for x86 modes")
	}
	return &NativeEngine{arch: arch, syntax: syntax}, nil
}

// Assemble encodes a single candidate snippet — one or more `;`-separated
// instructions — into its machine bytes. The assembler base address is
// zero: addresses in the emitted bytes are irrelevant since the search
// stage is relocatable.
func (e *NativeEngine) Assemble(text string) ([]byte, error) {
	out := []byte{}
	for _, raw := range strings.Split(text, ";") {
		insn := strings.TrimSpace(raw)
		if insn == "" {
			continue
		}
		bs, err := e.assembleOne(insn)
		if err != nil {
			return nil, errors.Wrapf(err, "assembling %q", insn)
		}
		out = append(out, bs...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("assembler: empty instruction sequence")
	}
	return out, nil
}

func (e *NativeEngine) assembleOne(insn string) ([]byte, error) {
	mnemonic, operands := splitMnemonic(e.normalize(insn))

	if bs, ok := zeroOperandTable[mnemonic]; ok && len(operands) == 0 {
		return bs, nil
	}

	switch mnemonic {
	case "push":
		return e.encodePushPop(0x50, operands)
	case "pop":
		return e.encodePushPop(0x58, operands)
	case "inc":
		return e.encodeUnaryModRM(0xff, 0, operands)
	case "dec":
		return e.encodeUnaryModRM(0xff, 1, operands)
	case "jmp":
		return e.encodeUnaryModRM(0xff, 4, operands)
	case "call":
		return e.encodeUnaryModRM(0xff, 2, operands)
	case "mov":
		return e.encodeMovRegReg(operands)
	case "xor":
		return e.encodeXorRegReg(operands)
	default:
		return nil, fmt.Errorf("unrecognized mnemonic %q", mnemonic)
	}
}

// normalize strips AT&T/GAS register decoration (the leading '%') so the
// remaining tables only have to know register base names. Mnemonic size
// suffixes are not stripped: only the suffixed forms listed in
// zeroOperandTable (retq, leaveq) are recognized. NASM/Intel square-bracket
// memory forms stay unsupported.
func (e *NativeEngine) normalize(insn string) string {
	insn = strings.TrimSpace(insn)
	if e.syntax == SyntaxATT || e.syntax == SyntaxGAS {
		insn = strings.ReplaceAll(insn, "%", "")
	}
	return insn
}

func splitMnemonic(insn string) (string, []string) {
	fields := strings.Fields(strings.ReplaceAll(insn, ",", " "))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (e *NativeEngine) reg(name string) (byte, bool, error) {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(name, "q"), ","))
	code, ok := reg64Table[name]
	if !ok {
		return 0, false, fmt.Errorf("unrecognized register %q", name)
	}
	return code, isExtendedReg64(name), nil
}

// encodePushPop handles the single-byte `opcode+reg` forms (50..57 push,
// 58..5f pop), with a REX.B prefix when the register needs the extended bit.
func (e *NativeEngine) encodePushPop(base byte, operands []string) ([]byte, error) {
	if len(operands) != 1 {
		return nil, fmt.Errorf("expected exactly one register operand")
	}
	code, ext, err := e.reg(operands[0])
	if err != nil {
		return nil, err
	}
	if ext {
		return []byte{0x41, base + code}, nil
	}
	return []byte{base + code}, nil
}

// encodeUnaryModRM handles the ff /digit family (inc/dec/jmp/call reg).
func (e *NativeEngine) encodeUnaryModRM(opcode byte, digit byte, operands []string) ([]byte, error) {
	if len(operands) != 1 {
		return nil, fmt.Errorf("expected exactly one register operand")
	}
	code, ext, err := e.reg(operands[0])
	if err != nil {
		return nil, err
	}
	modrm := 0xc0 | (digit << 3) | code
	if ext {
		return []byte{0x49, opcode, modrm}, nil
	}
	return []byte{0x48, opcode, modrm}, nil
}

func (e *NativeEngine) encodeMovRegReg(operands []string) ([]byte, error) {
	if len(operands) != 2 {
		return nil, fmt.Errorf("expected exactly two register operands")
	}
	dst, dstExt, err := e.reg(operands[0])
	if err != nil {
		return nil, err
	}
	src, srcExt, err := e.reg(operands[1])
	if err != nil {
		return nil, err
	}
	rex := byte(0x48)
	if dstExt {
		rex |= 0x01
	}
	if srcExt {
		rex |= 0x04
	}
	modrm := 0xc0 | (src << 3) | dst
	return []byte{rex, 0x89, modrm}, nil
}

func (e *NativeEngine) encodeXorRegReg(operands []string) ([]byte, error) {
	if len(operands) != 2 {
		return nil, fmt.Errorf("expected exactly two register operands")
	}
	dst, dstExt, err := e.reg(operands[0])
	if err != nil {
		return nil, err
	}
	src, srcExt, err := e.reg(operands[1])
	if err != nil {
		return nil, err
	}
	rex := byte(0x48)
	if dstExt {
		rex |= 0x01
	}
	if srcExt {
		rex |= 0x04
	}
	modrm := 0xc0 | (src << 3) | dst
	return []byte{rex, 0x31, modrm}, nil
}

// parseImmediate accepts decimal or 0x-hex immediates, used by callers that
// extend the table (kept small and unexported: the core gadget vocabulary
// above needs no immediates yet).
func parseImmediate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
