package rop

import (
	"fmt"
	"strings"
)

// Diagnostic is a single, source-anchored, fatal compiler error. Every stage
// of the pipeline (lexer, parser, IR pass, type checker) reports failures
// through this type so the CLI shell can render them uniformly (§6, §7).
type Diagnostic struct {
	Pos     Position
	Message string
	Line    string // the full source line the position falls on, for the caret render
}

func (d *Diagnostic) Error() string {
	if d.Line == "" {
		return fmt.Sprintf("error: %s", d.Message)
	}
	return fmt.Sprintf("error: %s\n%s | %s\n%s^", d.Message, d.Pos, d.Line, strings.Repeat(" ", len(d.Pos.String())+3+d.Pos.Col-1))
}

// Diagnostics aggregates more than one Diagnostic, mirroring the teacher's
// ErrAsm style of collecting positional parse errors rather than bailing on
// the first one when a caller wants the full picture (unused by the fatal,
// single-error-then-stop pipeline in cmd/ropc, kept for callers — tests,
// tooling — that want every error at once).
type Diagnostics []*Diagnostic

func (ds Diagnostics) Error() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.Error()
	}
	return strings.Join(lines, "\n")
}

// lineAt extracts the 1-indexed source line containing pos from src, for
// attaching to a Diagnostic at the point of failure.
func lineAt(src string, pos Position) string {
	lines := strings.Split(src, "\n")
	if pos.Line < 1 || pos.Line > len(lines) {
		return ""
	}
	return lines[pos.Line-1]
}

// errorf builds a Diagnostic anchored at pos, pulling the offending line out
// of src for the caret render.
func errorf(src string, pos Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...), Line: lineAt(src, pos)}
}
