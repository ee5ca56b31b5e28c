package rop_test

import (
	"testing"

	"github.com/ropcompiler/ropc/pkg/rop"
)

func compile(t *testing.T, src string) (rop.Program, error) {
	t.Helper()
	parser := rop.NewParser(src)
	prog, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	ir := rop.NewIRPass(prog)
	prog, err = ir.Lower()
	if err != nil {
		return nil, err
	}
	tc := rop.NewTypeChecker(prog, src)
	if err := tc.Check(); err != nil {
		return nil, err
	}
	return prog, nil
}

func TestParseValidSources(t *testing.T) {
	test := func(name, src string, wantStatements int) {
		t.Run(name, func(t *testing.T) {
			prog, err := compile(t, src)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if len(prog) != wantStatements {
				t.Fatalf("expected %d statements, got %d", wantStatements, len(prog))
			}
		})
	}

	test("minimal literal gadget", `{ "ret" };`, 2)
	test("candidate fallback", `{ "pop rdi; ret", "pop rsi; ret" };`, 2)
	test("let then call", `let g = { "ret" }; g;`, 2)
	test("array binding", `let regs = [ "rdi", "rsi" ];`, 1)
	test("macro reference in gadget", `let regs = [ "rdi", "rsi" ]; { "pop @regs; ret" };`, 3)
	test("typed let annotation", `let g : Gadget = { "ret" };`, 1)
	test("bare empty statement", `;`, 1)
}

func TestParseFailures(t *testing.T) {
	test := func(name, src string) {
		t.Run(name, func(t *testing.T) {
			if _, err := compile(t, src); err == nil {
				t.Fatalf("expected an error, got none")
			}
		})
	}

	test("empty source", ``)
	test("empty gadget", `{ };`)
	test("undefined identifier call", `foo;`)
	test("undefined identifier element", `{ foo };`)
	test("unterminated string", `{ "ret };`)
	test("unterminated block comment", `/* never closes { "ret" };`)
	test("missing semicolon after let", `let g = { "ret" }`)
}

func TestMacroExpansion(t *testing.T) {
	src := `let regs = [ "rdi", "rsi" ]; { "pop @regs; ret" };`
	prog, err := compile(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	gadget, ok := prog[1].Expr.(rop.GadgetExpr)
	if !ok {
		t.Fatalf("expected the second statement to be a gadget, got %T", prog[1].Expr)
	}
	if len(gadget.Alts) != 2 {
		t.Fatalf("expected 2 expanded alternatives, got %d", len(gadget.Alts))
	}

	want := map[string]bool{"pop rdi; ret": true, "pop rsi; ret": true}
	for _, alt := range gadget.Alts {
		if !want[alt.Text] {
			t.Fatalf("unexpected expansion %q", alt.Text)
		}
	}
}

// TestMacroExpansionNestedReference is §8's boundary case: "@name
// reference where name binds another @name-bearing array → inner
// references expanded first (bottom-up)."
func TestMacroExpansionNestedReference(t *testing.T) {
	src := `let leaf = [ "rdi", "rsi" ]; let mid = [ "@leaf" ]; { "push @mid" };`
	prog, err := compile(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	gadget, ok := prog[2].Expr.(rop.GadgetExpr)
	if !ok {
		t.Fatalf("expected the third statement to be a gadget, got %T", prog[2].Expr)
	}

	want := map[string]bool{"push rdi": true, "push rsi": true}
	if len(gadget.Alts) != len(want) {
		t.Fatalf("expected %d expanded alternatives, got %d: %+v", len(want), len(gadget.Alts), gadget.Alts)
	}
	for _, alt := range gadget.Alts {
		if !want[alt.Text] {
			t.Fatalf("unexpected expansion %q (inner @leaf reference was not resolved bottom-up)", alt.Text)
		}
	}
}

func TestIRPassIdempotence(t *testing.T) {
	src := `let regs = [ "rdi", "rsi" ]; { "pop @regs; ret" };`
	parser := rop.NewParser(src)
	prog, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}

	first, err := rop.NewIRPass(prog).Lower()
	if err != nil {
		t.Fatalf("unexpected lowering error: %s", err)
	}
	second, err := rop.NewIRPass(first).Lower()
	if err != nil {
		t.Fatalf("unexpected second-pass error: %s", err)
	}

	g1, _ := first[1].Expr.(rop.GadgetExpr)
	g2, _ := second[1].Expr.(rop.GadgetExpr)
	if len(g1.Alts) != len(g2.Alts) {
		t.Fatalf("second pass changed alternative count: %d vs %d", len(g1.Alts), len(g2.Alts))
	}
	for i := range g1.Alts {
		if g1.Alts[i].Text != g2.Alts[i].Text {
			t.Fatalf("second pass is not a no-op: %q vs %q", g1.Alts[i].Text, g2.Alts[i].Text)
		}
	}
}

// TestIRPassIdempotenceNestedReference guards the chained-reference case:
// a single Lower() pass must already fully resolve @mid's inner @leaf, so
// a second pass over its output changes nothing.
func TestIRPassIdempotenceNestedReference(t *testing.T) {
	src := `let leaf = [ "rdi", "rsi" ]; let mid = [ "@leaf" ]; { "push @mid" };`
	parser := rop.NewParser(src)
	prog, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}

	first, err := rop.NewIRPass(prog).Lower()
	if err != nil {
		t.Fatalf("unexpected lowering error: %s", err)
	}
	second, err := rop.NewIRPass(first).Lower()
	if err != nil {
		t.Fatalf("unexpected second-pass error: %s", err)
	}

	g1, _ := first[2].Expr.(rop.GadgetExpr)
	g2, _ := second[2].Expr.(rop.GadgetExpr)
	if len(g1.Alts) != 2 {
		t.Fatalf("expected the first pass to fully resolve the nested reference into 2 alternatives, got %d: %+v", len(g1.Alts), g1.Alts)
	}
	if len(g1.Alts) != len(g2.Alts) {
		t.Fatalf("second pass changed alternative count: %d vs %d", len(g1.Alts), len(g2.Alts))
	}
	for i := range g1.Alts {
		if g1.Alts[i].Text != g2.Alts[i].Text {
			t.Fatalf("second pass is not a no-op: %q vs %q", g1.Alts[i].Text, g2.Alts[i].Text)
		}
	}
}

func TestTypeCheckerShapeMismatch(t *testing.T) {
	// let g = { "ret" }; let a : Array = g; — shape mismatch (§8 scenario 5).
	_, err := compile(t, `let g = { "ret" }; let a : Array = g;`)
	if err == nil {
		t.Fatalf("expected a type mismatch error")
	}
}

func TestShadowing(t *testing.T) {
	prog, err := compile(t, `let x = "ret"; let x = "nop"; { x };`)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	gadget := prog[2].Expr.(rop.GadgetExpr)
	if gadget.Alts[0].Text != "nop" {
		t.Fatalf("expected shadowing to pick the later binding, got %q", gadget.Alts[0].Text)
	}
}
