package gadget_test

import (
	"testing"

	"github.com/ropcompiler/ropc/pkg/gadget"
)

func TestFormatAddress(t *testing.T) {
	test := func(addr uint64, byteorder bool, bitwidth int, expected string) {
		got := gadget.FormatAddress(addr, byteorder, bitwidth)
		if got != expected {
			t.Errorf("FormatAddress(%#x, %v, %d) = %q, want %q", addr, byteorder, bitwidth, got, expected)
		}
	}

	t.Run("minimal literal gadget", func(t *testing.T) {
		// hexafy("400100") is not byte-order reversed, then right-padded
		// with trailing zeros to 16 hex chars — verified against the
		// original codegen.rs's hexafy/align_byteorder/pack pipeline.
		test(0x400100, false, 64, "4001000000000000")
	})

	t.Run("byte-order toggle", func(t *testing.T) {
		test(0x4011a0, true, 64, "a011400000000000")
	})

	t.Run("no padding requested", func(t *testing.T) {
		test(0xc3, false, 0, "c3")
	})

	t.Run("width 16 pads to 4 chars", func(t *testing.T) {
		test(0x41, false, 16, "4100")
	})

	t.Run("width 32 pads to 8 chars", func(t *testing.T) {
		test(0x1234, false, 32, "12340000")
	})
}

func TestByteOrderInvolution(t *testing.T) {
	// Little-endian byte-order toggle is an involution on hex strings of
	// even length.
	inputs := []string{"4011a0b2", "00", "ffeeddcc", "0123456789abcdef"}
	for _, in := range inputs {
		once := gadget.FormatAddress(mustParseHex(t, in), true, 0)
		twice := gadget.FormatAddress(mustParseHex(t, once), true, 0)
		if twice != pad(in) {
			t.Errorf("byte-order toggle is not an involution: %q -> %q -> %q", in, once, twice)
		}
	}
}

func pad(s string) string {
	if len(s)%2 != 0 {
		return "0" + s
	}
	return s
}

func mustParseHex(t *testing.T, s string) uint64 {
	t.Helper()
	var v uint64
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		default:
			t.Fatalf("bad hex digit %q in %q", c, s)
		}
	}
	return v
}
