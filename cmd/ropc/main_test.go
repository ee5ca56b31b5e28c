package main

import "testing"

func TestSplitPositionals(t *testing.T) {
	test := func(args []string, wantSource, wantBinary string, fail bool) {
		source, binary, err := splitPositionals(args)
		if fail {
			if err == nil {
				t.Fatalf("expected an error for args %v", args)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if source != wantSource || binary != wantBinary {
			t.Fatalf("splitPositionals(%v) = (%q, %q), want (%q, %q)", args, source, binary, wantSource, wantBinary)
		}
	}

	t.Run("source then binary", func(t *testing.T) {
		test([]string{"chain.rop", "target"}, "chain.rop", "target", false)
	})

	t.Run("binary then source (order-independent)", func(t *testing.T) {
		test([]string{"target", "chain.rop"}, "chain.rop", "target", false)
	})

	t.Run("too few arguments", func(t *testing.T) {
		test([]string{"chain.rop"}, "", "", true)
	})

	t.Run("too many arguments", func(t *testing.T) {
		test([]string{"chain.rop", "target", "extra"}, "", "", true)
	})

	t.Run("two source files", func(t *testing.T) {
		test([]string{"a.rop", "b.rop"}, "", "", true)
	})

	t.Run("two binaries", func(t *testing.T) {
		test([]string{"a", "b"}, "", "", true)
	})
}

func TestParseOptions(t *testing.T) {
	t.Run("missing cputype", func(t *testing.T) {
		if _, err := parseOptions(map[string]string{}); err == nil {
			t.Fatalf("expected missing -c/--cputype to be rejected")
		}
	})

	t.Run("x86 mode requires syntax", func(t *testing.T) {
		if _, err := parseOptions(map[string]string{"cputype": "x86-64"}); err == nil {
			t.Fatalf("expected missing -s/--syntax on an x86 mode to be rejected")
		}
	})

	t.Run("non-x86 mode does not require syntax", func(t *testing.T) {
		if _, err := parseOptions(map[string]string{"cputype": "arm"}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	})

	t.Run("invalid bitwidth", func(t *testing.T) {
		opts := map[string]string{"cputype": "x86-64", "syntax": "intel", "bitwidth": "48"}
		if _, err := parseOptions(opts); err == nil {
			t.Fatalf("expected an invalid bitwidth of 48 to be rejected")
		}
	})

	t.Run("well formed x86-64 options", func(t *testing.T) {
		opts := map[string]string{"cputype": "x86-64", "syntax": "intel", "bitwidth": "64", "byteorder": "true"}
		got, err := parseOptions(opts)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got.Bitwidth != 64 || !got.ByteOrder {
			t.Fatalf("unexpected parsed options: %+v", got)
		}
	})
}
