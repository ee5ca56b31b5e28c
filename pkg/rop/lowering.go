package rop

import "strings"

// ----------------------------------------------------------------------------
// IR pass
//
// The IRPass takes a Program and produces its macro-expanded counterpart.
// Like the Asm Lowerer it mirrors, it walks the statement list once and
// dispatches on the concrete Expression type of each statement, rewriting
// only the Gadget, Array and Constant payloads into a new Program — Call
// and Empty pass through untouched, and the input Program is not modified.
type IRPass struct{ program Program }

// NewIRPass returns an IRPass over the given Program.
func NewIRPass(p Program) IRPass { return IRPass{program: p} }

// Lower runs the reference-expansion algorithm once over the program and
// returns the rewritten Program. Running Lower again over its own output
// is a no-op (idempotent): once every `@name` has been substituted,
// extractRefs finds nothing left to expand.
//
// Lookups resolve against out — the rewritten prefix being built, not the
// original program — so a reference to a name that is itself still
// carrying unexpanded `@name` text (e.g. `let leaf = [...]; let mid =
// ["@leaf"]; { "push @mid" };`) sees mid already expanded by the time the
// gadget statement resolves it: inner references expand first, bottom-up,
// per spec.md §8.
func (ir IRPass) Lower() (Program, error) {
	out := make(Program, len(ir.program))

	for i, stmt := range ir.program {
		switch e := stmt.Expr.(type) {
		case GadgetExpr:
			alts, err := expandGadget(out, e, i)
			if err != nil {
				return nil, err
			}
			out[i] = Statement{Pos: stmt.Pos, Expr: GadgetExpr{Alts: alts}}

		case LetExpr:
			rhs, err := expandRhs(out, e.Rhs, i)
			if err != nil {
				return nil, err
			}
			out[i] = Statement{Pos: stmt.Pos, Expr: LetExpr{Var: e.Var, Rhs: rhs}}

		default: // CallExpr, EmptyExpr: nothing to expand
			out[i] = stmt
		}
	}

	return out, nil
}

func expandRhs(out Program, e Expression, idx int) (Expression, error) {
	switch rhs := e.(type) {
	case GadgetExpr:
		alts, err := expandGadget(out, rhs, idx)
		if err != nil {
			return nil, err
		}
		return GadgetExpr{Alts: alts}, nil
	case ArrayExpr:
		elems, err := expandArray(out, rhs, idx)
		if err != nil {
			return nil, err
		}
		return ArrayExpr{Elems: elems}, nil
	case ConstExpr:
		return expandConst(out, rhs, idx)
	default: // CallExpr: nothing textual to expand
		return e, nil
	}
}

// expandGadget replaces each original alternative with the set of its
// expansions — the gadget's alternative count grows multiplicatively.
func expandGadget(out Program, g GadgetExpr, idx int) ([]Constant, error) {
	res := []Constant{}
	for _, alt := range g.Alts {
		strs, err := expandRefs(out, idx, alt.Text)
		if err != nil {
			return nil, err
		}
		for _, s := range strs {
			res = append(res, Constant{Text: s, Pos: alt.Pos, Typ: AsmType})
		}
	}
	return res, nil
}

// expandArray does the same, appended in order.
func expandArray(out Program, a ArrayExpr, idx int) ([]Constant, error) {
	res := []Constant{}
	for _, elem := range a.Elems {
		strs, err := expandRefs(out, idx, elem.Text)
		if err != nil {
			return nil, err
		}
		for _, s := range strs {
			res = append(res, Constant{Text: s, Pos: elem.Pos, Typ: AsmType})
		}
	}
	return res, nil
}

// expandConst concatenates every Cartesian variant into a single Asm — the
// deliberate choice for macro-like assembly text bound by a standalone
// `let`.
func expandConst(out Program, c ConstExpr, idx int) (ConstExpr, error) {
	strs, err := expandRefs(out, idx, c.Const.Text)
	if err != nil {
		return ConstExpr{}, err
	}
	joined := strings.Join(strs, "")
	return ConstExpr{Const: Constant{Text: joined, Pos: c.Const.Pos, Typ: AsmType}}, nil
}

// expandRefs finds every `@name` in text, resolves each name's replacement
// set against bindings strictly before index upto, and returns the
// Cartesian product of substitutions applied left to right. A name with
// no matching set is treated as having an empty set, which makes the
// whole product empty — that candidate contributes nothing.
func expandRefs(prog Program, upto int, text string) ([]string, error) {
	names := extractRefs(text)
	if len(names) == 0 {
		return []string{text}, nil
	}

	sets := make([][]string, len(names))
	for i, name := range names {
		sets[i] = replacementSet(prog, upto, name)
	}

	combos := cartesian(sets)
	out := make([]string, 0, len(combos))
	for _, combo := range combos {
		s := text
		for i, name := range names {
			s = strings.Replace(s, "@"+name, combo[i], 1)
		}
		out = append(out, s)
	}
	return out, nil
}

func replacementSet(prog Program, upto int, name string) []string {
	v, rhs, found := lookup(prog, upto, Identifier(name))
	if !found {
		return nil
	}
	switch v.Typ {
	case AsmType:
		return []string{rhs.(ConstExpr).Const.Text}
	case ArrayType:
		arr := rhs.(ArrayExpr)
		vals := make([]string, len(arr.Elems))
		for i, e := range arr.Elems {
			vals[i] = e.Text
		}
		return vals
	default:
		return nil
	}
}

// cartesian computes the Cartesian product of sets, in order. An empty
// factor anywhere makes the whole product empty, matching the "silently
// expands to nothing" rule.
func cartesian(sets [][]string) [][]string {
	result := [][]string{{}}
	for _, set := range sets {
		if len(set) == 0 {
			return nil
		}
		next := make([][]string, 0, len(result)*len(set))
		for _, combo := range result {
			for _, v := range set {
				nc := make([]string, len(combo)+1)
				copy(nc, combo)
				nc[len(combo)] = v
				next = append(next, nc)
			}
		}
		result = next
	}
	return result
}
