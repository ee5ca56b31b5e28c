package rop

import (
	"fmt"
	"io"
	"strings"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)
//
// This mirrors the Asm grammar's structure: one combinator per production,
// composed with And/OrdChoice/Maybe/Many, feeding a DFS conversion pass that
// turns the raw, library-owned tree into the typed rop.Program of rop.go.
// Reserved-character lexing, string-escape handling and "unterminated ..."
// diagnostics are the hand-rolled lexer's job (lexer.go); this layer only
// has to get the shape of a statement right.

var ast = pc.NewAST("rop", 100)

var (
	pProgram = ast.ManyUntil("program", nil, pStatement, pc.End())

	pStatement = ast.OrdChoice("statement", nil, pGadget, pLetStmt, pCallStmt, pEmptyStmt)

	pGadget = ast.And("gadget", nil, pc.Atom("{", "{"), pAsmList, pc.Atom("}", "}"))
	pArray  = ast.And("array", nil, pc.Atom("[", "["), pAsmList, pc.Atom("]", "]"))

	pAsmList = ast.Many("asm-list", nil, pAsm, pc.Atom(",", ","))
	pAsm     = ast.OrdChoice("asm", nil, pString, pIdent)

	pString = pc.Token(`"(\\.|[^"\\])*"`, "STRING")
	pIdent  = pc.Token(`[^\s{}\[\],;=:#@?'"/*+><|&!%()-][^\s{}\[\],;=:#@?'"]*`, "IDENT")

	pTypeName = ast.OrdChoice("type-name", nil,
		pc.Atom("Array", "Array"), pc.Atom("Asm", "Asm"), pc.Atom("Gadget", "Gadget"))

	pRhs = ast.OrdChoice("rhs", nil, pGadget, pArray, pString, pIdent)

	pLetStmt = ast.And("let-stmt", nil,
		pc.Atom("let", "let"), pIdent,
		ast.Maybe("maybe-type", nil, ast.And("type-ann", nil, pc.Atom(":", ":"), pTypeName)),
		pc.Atom("=", "="), pRhs, pc.Atom(";", ";"))

	pCallStmt  = ast.And("call-stmt", nil, pIdent, pc.Atom(";", ";"))
	pEmptyStmt = ast.And("empty-stmt", nil, pc.Atom(";", ";"))
)

// ----------------------------------------------------------------------------
// Parser

// Parser divides the pipeline's first two responsibilities: a lexical
// validation pass (exact, position-anchored diagnostics) followed by a
// structural parse via goparsec combinators and a DFS conversion into the
// typed Program.
type Parser struct {
	src string
}

// NewParser returns a Parser over the given .rop source text.
func NewParser(src string) Parser { return Parser{src: src} }

// Parse runs the full front-end: lexical validation, structural parse,
// AST construction (with parse-time identifier resolution, §4.1), and
// leaves the result ready for the IR pass.
func (p *Parser) Parse() (Program, error) {
	if strings.TrimSpace(p.src) == "" {
		return nil, errorf(p.src, Position{Line: 1, Col: 1}, "empty source")
	}

	lx := newLexer(p.src)
	if diag := lx.Validate(); diag != nil {
		return nil, diag
	}

	root, ok := p.fromSource([]byte(p.src))
	if !ok {
		return nil, errorf(p.src, Position{Line: 1, Col: 1}, "unexpected symbol: failed to parse source")
	}

	return p.fromAST(root)
}

func (p *Parser) fromSource(content []byte) (pc.Queryable, bool) {
	root, _ := ast.Parsewith(pProgram, pc.NewScanner(content))
	return root, root != nil
}

// fromAST walks the raw tree in source order, resolving identifiers and
// positions as it goes. A forward-only cursor into the original source
// recovers (line, col) for each leaf token, since goparsec nodes carry
// their matched text but not a line/column pair of their own.
func (p *Parser) fromAST(root pc.Queryable) (Program, error) {
	cur := newCursor(p.src)
	prog := Program{}

	if root.GetName() != "program" {
		return nil, fmt.Errorf("expected node 'program', found %s", root.GetName())
	}

	for _, child := range root.GetChildren() {
		stmt, err := p.handleStatement(cur, prog, child)
		if err != nil {
			return nil, err
		}
		prog = append(prog, stmt)
	}

	return prog, nil
}

func (p *Parser) handleStatement(cur *cursor, prog Program, node pc.Queryable) (Statement, error) {
	switch node.GetName() {
	case "gadget":
		return p.handleGadget(cur, prog, node)
	case "let-stmt":
		return p.handleLet(cur, prog, node)
	case "call-stmt":
		return p.handleCall(cur, prog, node)
	case "empty-stmt":
		pos := cur.advance(";")
		return Statement{Pos: pos, Expr: EmptyExpr{}}, nil
	default:
		return Statement{}, fmt.Errorf("unrecognized statement node %q", node.GetName())
	}
}

func (p *Parser) handleGadget(cur *cursor, prog Program, node pc.Queryable) (Statement, error) {
	pos := cur.advance("{")
	list := node.GetChildren()[1]
	consts, err := p.handleAsmList(cur, prog, list)
	if err != nil {
		return Statement{}, err
	}
	cur.advance("}")
	if len(consts) == 0 {
		return Statement{}, errorf(p.src, pos, "empty gadget")
	}
	return Statement{Pos: pos, Expr: GadgetExpr{Alts: consts}}, nil
}

func (p *Parser) handleArray(cur *cursor, prog Program, node pc.Queryable) (ArrayExpr, Position, error) {
	pos := cur.advance("[")
	list := node.GetChildren()[1]
	consts, err := p.handleAsmList(cur, prog, list)
	if err != nil {
		return ArrayExpr{}, pos, err
	}
	cur.advance("]")
	if len(consts) == 0 {
		return ArrayExpr{}, pos, errorf(p.src, pos, "empty array")
	}
	return ArrayExpr{Elems: consts}, pos, nil
}

// handleAsmList resolves every element of a `{...}` / `[...]` body: a quoted
// string becomes a fresh Asm constant, a bare identifier is resolved against
// prior bindings per §4.1's parse-time rules (inline Asm, splice Array,
// placeholder Gadget, else "undefined identifier").
func (p *Parser) handleAsmList(cur *cursor, prog Program, node pc.Queryable) ([]Constant, error) {
	out := []Constant{}
	for _, elem := range node.GetChildren() {
		if elem.GetName() == "," {
			cur.advance(",")
			continue
		}
		consts, err := p.resolveAsmElem(cur, prog, elem)
		if err != nil {
			return nil, err
		}
		out = append(out, consts...)
	}
	return out, nil
}

func (p *Parser) resolveAsmElem(cur *cursor, prog Program, node pc.Queryable) ([]Constant, error) {
	asmNode := node
	if asmNode.GetName() == "asm" {
		asmNode = asmNode.GetChildren()[0]
	}

	switch asmNode.GetName() {
	case "STRING":
		pos := cur.advance(asmNode.GetValue())
		return []Constant{{Text: unquote(asmNode.GetValue()), Pos: pos, Typ: AsmType}}, nil
	case "IDENT":
		pos := cur.advance(asmNode.GetValue())
		return p.resolveIdentElems(prog, asmNode.GetValue(), pos)
	default:
		return nil, fmt.Errorf("unrecognized asm element node %q", asmNode.GetName())
	}
}

func (p *Parser) resolveIdentElems(prog Program, name string, pos Position) ([]Constant, error) {
	v, rhs, found := lookup(prog, len(prog), Identifier(name))
	if !found {
		return nil, errorf(p.src, pos, "undefined identifier referenced: %s", name)
	}
	switch v.Typ {
	case GadgetType:
		return []Constant{{Text: name, Pos: pos, Typ: GadgetType}}, nil
	case AsmType:
		c := rhs.(ConstExpr).Const
		return []Constant{{Text: c.Text, Pos: pos, Typ: AsmType}}, nil
	case ArrayType:
		arr := rhs.(ArrayExpr)
		out := make([]Constant, len(arr.Elems))
		copy(out, arr.Elems)
		return out, nil
	default:
		return nil, errorf(p.src, pos, "undefined identifier referenced: %s", name)
	}
}

func (p *Parser) handleLet(cur *cursor, prog Program, node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	pos := cur.advance("let")

	nameNode := children[1]
	name := nameNode.GetValue()
	namePos := cur.advance(name)

	var declared Type = VoidType
	maybeType := children[2]
	if maybeType.GetName() == "type-ann" {
		typeNode := maybeType.GetChildren()[1]
		cur.advance(":")
		cur.advance(typeNode.GetValue())
		switch typeNode.GetValue() {
		case "Array":
			declared = ArrayType
		case "Asm":
			declared = AsmType
		case "Gadget":
			declared = GadgetType
		}
	}

	cur.advance("=")
	rhsNode := children[4]
	expr, err := p.handleRhs(cur, prog, rhsNode)
	if err != nil {
		return Statement{}, err
	}
	cur.advance(";")

	if declared == VoidType {
		declared = inferredType(expr)
	}

	return Statement{Pos: pos, Expr: LetExpr{Var: Variable{Name: Identifier(name), Pos: namePos, Typ: declared}, Rhs: expr}}, nil
}

func inferredType(e Expression) Type {
	switch e.(type) {
	case GadgetExpr, CallExpr:
		return GadgetType
	case ArrayExpr:
		return ArrayType
	case ConstExpr:
		return AsmType
	default:
		return VoidType
	}
}

func (p *Parser) handleRhs(cur *cursor, prog Program, node pc.Queryable) (Expression, error) {
	inner := node
	if inner.GetName() == "rhs" {
		inner = inner.GetChildren()[0]
	}

	switch inner.GetName() {
	case "gadget":
		stmt, err := p.handleGadget(cur, prog, inner)
		if err != nil {
			return nil, err
		}
		return stmt.Expr, nil
	case "array":
		arr, _, err := p.handleArray(cur, prog, inner)
		if err != nil {
			return nil, err
		}
		return arr, nil
	case "STRING":
		pos := cur.advance(inner.GetValue())
		return ConstExpr{Const: Constant{Text: unquote(inner.GetValue()), Pos: pos, Typ: AsmType}}, nil
	case "IDENT":
		pos := cur.advance(inner.GetValue())
		return p.resolveIdentRhs(prog, inner.GetValue(), pos)
	default:
		return nil, fmt.Errorf("unrecognized rhs node %q", inner.GetName())
	}
}

func (p *Parser) resolveIdentRhs(prog Program, name string, pos Position) (Expression, error) {
	v, rhs, found := lookup(prog, len(prog), Identifier(name))
	if !found {
		return nil, errorf(p.src, pos, "undefined identifier referenced: %s", name)
	}
	switch v.Typ {
	case GadgetType:
		return CallExpr{Var: v}, nil
	case AsmType:
		return rhs.(ConstExpr), nil
	case ArrayType:
		return rhs.(ArrayExpr), nil
	default:
		return nil, errorf(p.src, pos, "undefined identifier referenced: %s", name)
	}
}

func (p *Parser) handleCall(cur *cursor, prog Program, node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	nameNode := children[0]
	name := nameNode.GetValue()
	pos := cur.advance(name)
	cur.advance(";")

	v, _, found := lookup(prog, len(prog), Identifier(name))
	if !found {
		return Statement{}, errorf(p.src, pos, "undefined identifier referenced: %s", name)
	}
	if v.Typ != GadgetType {
		return Statement{}, errorf(p.src, pos, "call target not of GadgetType: %s", name)
	}

	return Statement{Pos: pos, Expr: CallExpr{Var: v}}, nil
}

func unquote(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

// ----------------------------------------------------------------------------
// Source cursor
//
// goparsec's Queryable nodes carry matched text but not a (line, col) pair.
// cursor recovers positions by walking the original source forward, in the
// same left-to-right order the DFS visits leaves, advancing past each
// located token exactly once.
type cursor struct {
	src  string
	offs int
}

func newCursor(src string) *cursor { return &cursor{src: src} }

// advance locates the next occurrence of text at or after the cursor,
// returns its (line, col), and moves the cursor past it.
func (c *cursor) advance(text string) Position {
	idx := strings.Index(c.src[c.offs:], text)
	if idx < 0 {
		return offsetToPos(c.src, c.offs)
	}
	start := c.offs + idx
	pos := offsetToPos(c.src, start)
	c.offs = start + len(text)
	return pos
}

func offsetToPos(src string, offset int) Position {
	if offset > len(src) {
		offset = len(src)
	}
	line, col := 1, 1
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Position{Line: line, Col: col}
}

// Queryable's io.Reader based constructor, kept for parity with callers that
// hold a reader rather than an in-memory string (mirrors the teacher's
// NewParser(io.Reader) signature).
func NewParserFromReader(r io.Reader) (Parser, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Parser{}, err
	}
	return NewParser(string(b)), nil
}
