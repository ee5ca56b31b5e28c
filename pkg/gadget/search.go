package gadget

import (
	"bytes"
	"fmt"
	"strings"
)

// ----------------------------------------------------------------------------
// Search engine
//
// Two strategies, chosen by CLI flag: bytewise Knuth-Morris-Pratt scanning
// of the raw section bytes, or a match against a one-time disassembly of
// the whole section. Both return the first match in source/candidate order.

// kmpTable builds the KMP failure function for needle, computed from needle
// alone — no preprocessing is shared across candidates.
func kmpTable(needle []byte) []int {
	table := make([]int, len(needle))
	k := 0
	for i := 1; i < len(needle); i++ {
		for k > 0 && needle[i] != needle[k] {
			k = table[k-1]
		}
		if needle[i] == needle[k] {
			k++
		}
		table[i] = k
	}
	return table
}

// kmpSearch returns the offset of the first occurrence of needle in
// haystack, or -1 if absent, in O(|haystack| + |needle|).
func kmpSearch(haystack, needle []byte) int {
	if len(needle) == 0 {
		return -1
	}
	table := kmpTable(needle)
	k := 0
	for i := 0; i < len(haystack); i++ {
		for k > 0 && haystack[i] != needle[k] {
			k = table[k-1]
		}
		if haystack[i] == needle[k] {
			k++
		}
		if k == len(needle) {
			return i - k + 1
		}
	}
	return -1
}

// BytewiseSearch assembles every candidate and scans the executable section
// for the first byte-identical occurrence, in candidate (source) order. A
// candidate that fails to assemble is a fatal error, anchored at its
// position — it does not fall through to the next candidate, matching the
// original codegen's assemble() (which aborts on the first assembler
// failure rather than treating it as "this candidate doesn't match").
func BytewiseSearch(engine *NativeEngine, section *Executable, candidates []Candidate) (*Match, error) {
	for _, cand := range candidates {
		bs, err := engine.Assemble(cand.Text)
		if err != nil {
			return nil, fmt.Errorf("assembler error at %s: %w", cand.Pos, err)
		}
		if off := kmpSearch(section.Bytes, bs); off >= 0 {
			return &Match{Address: section.BaseAddress + uint64(off), Bytes: bs, Candidate: cand.Text}, nil
		}
	}
	return nil, fmt.Errorf("search: no candidate matched in the executable section:\n%s", joinCandidates(candidates))
}

// MnemonicwiseSearch takes the executable section's disassembly, decoded
// once by the caller (CodeGenerator shares it across every gadget within
// one codegen invocation) and, for each candidate, looks for a decoded
// instruction whose bytes equal the assembled candidate exactly. As in BytewiseSearch, an assembler
// failure on any candidate is immediately fatal.
func MnemonicwiseSearch(engine *NativeEngine, insns []Instruction, candidates []Candidate) (*Match, error) {
	for _, cand := range candidates {
		bs, err := engine.Assemble(cand.Text)
		if err != nil {
			return nil, fmt.Errorf("assembler error at %s: %w", cand.Pos, err)
		}
		for _, insn := range insns {
			if bytes.Equal(insn.Bytes, bs) {
				return &Match{Address: insn.Address, Bytes: bs, Candidate: cand.Text}, nil
			}
		}
	}
	return nil, fmt.Errorf("search: no candidate matched in the disassembly:\n%s", joinCandidates(candidates))
}

func joinCandidates(candidates []Candidate) string {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n")
}
