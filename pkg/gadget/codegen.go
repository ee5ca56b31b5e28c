package gadget

import (
	"fmt"
	"strings"

	"github.com/ropcompiler/ropc/pkg/rop"
)

// ----------------------------------------------------------------------------
// Code Generator
//
// CodeGenerator mirrors the Hack CodeGenerator's shape — one pass over a
// Program, a translation step per statement, a growing output slice — but
// generalized to a much heavier per-statement pipeline: assemble every
// candidate, search the binary, format the match.
type CodeGenerator struct {
	program Program
	engine  *NativeEngine
	section *Executable
	insns   []Instruction // populated lazily, at most once, for mnemonic-wise search
	opts    Options
}

// Program is an alias of rop.Program, the type-checked statement list that
// CodeGenerator walks.
type Program = rop.Program

// NewCodeGenerator constructs the Code Generator. The assembler engine is
// built once here and reused for every candidate across the whole program;
// the executable section is borrowed read-only from the caller for the
// duration of Generate.
func NewCodeGenerator(program Program, section *Executable, opts Options) (*CodeGenerator, error) {
	engine, err := NewNativeEngine(opts.Arch, opts.Syntax)
	if err != nil {
		return nil, err
	}
	return &CodeGenerator{program: program, engine: engine, section: section, opts: opts}, nil
}

// Generate walks the program in source order and emits the payload: the
// concatenation of every statement's contribution. Empty-statement
// contributions are the empty string; Let contributes nothing on its own
// (its gadget is only emitted where it's later invoked by Call, or where it
// appears as a bare top-level Gadget statement).
func (cg *CodeGenerator) Generate() (string, error) {
	var sb strings.Builder

	for i, stmt := range cg.program {
		switch e := stmt.Expr.(type) {
		case rop.GadgetExpr:
			match, err := cg.resolveGadget(e)
			if err != nil {
				return "", fmt.Errorf("statement %d (%s): %w", i, stmt.Pos, err)
			}
			sb.WriteString(FormatMatch(match, cg.opts))

		case rop.CallExpr:
			gadget, err := cg.resolveCallTarget(e, i)
			if err != nil {
				return "", fmt.Errorf("statement %d (%s): %w", i, stmt.Pos, err)
			}
			match, err := cg.resolveGadget(gadget)
			if err != nil {
				return "", fmt.Errorf("statement %d (%s): %w", i, stmt.Pos, err)
			}
			sb.WriteString(FormatMatch(match, cg.opts))

		default: // LetExpr, EmptyExpr: no direct output
			continue
		}
	}

	return sb.String(), nil
}

// resolveCallTarget finds the GadgetExpr a Call's variable was ultimately
// bound to, by looking the name back up in the program (the type checker
// has already guaranteed it resolves to GadgetType). A binding whose right
// side is itself a Call (`let h = g;`) is followed to g's binding, looked up
// among the statements before it.
func (cg *CodeGenerator) resolveCallTarget(call rop.CallExpr, upto int) (rop.GadgetExpr, error) {
	name := call.Var.Name
	for i := upto - 1; i >= 0; i-- {
		let, ok := cg.program[i].Expr.(rop.LetExpr)
		if !ok || let.Var.Name != name {
			continue
		}
		switch rhs := let.Rhs.(type) {
		case rop.GadgetExpr:
			return rhs, nil
		case rop.CallExpr:
			name = rhs.Var.Name
		default:
			return rop.GadgetExpr{}, fmt.Errorf("internal error: call target %q is not a gadget", name)
		}
	}
	return rop.GadgetExpr{}, fmt.Errorf("internal error: call target %q vanished after type checking", name)
}

// resolveGadget runs the search stage (bytewise or mnemonic-wise) over a
// gadget's candidate list, in source order.
func (cg *CodeGenerator) resolveGadget(g rop.GadgetExpr) (*Match, error) {
	candidates := make([]Candidate, len(g.Alts))
	for i, c := range g.Alts {
		candidates[i] = Candidate{Text: c.Text, Pos: c.Pos}
	}

	if cg.opts.Bytewise {
		return BytewiseSearch(cg.engine, cg.section, candidates)
	}

	if cg.insns == nil {
		insns, err := DisasmAll(cg.opts.Arch, cg.section.Bytes, cg.section.BaseAddress)
		if err != nil {
			return nil, err
		}
		cg.insns = insns
	}
	return MnemonicwiseSearch(cg.engine, cg.insns, candidates)
}
