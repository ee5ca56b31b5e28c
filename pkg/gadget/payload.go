package gadget

import "fmt"

// ----------------------------------------------------------------------------
// Payload formatter

// widthChars maps a requested bitwidth to the hex-character width it pads
// to: none stays as-is, 16 -> 4, 32 -> 8, 64 -> 16.
func widthChars(bitwidth int) int {
	switch bitwidth {
	case 16:
		return 4
	case 32:
		return 8
	case 64:
		return 16
	default:
		return 0
	}
}

// FormatAddress renders a matched address as the final wire form: lowercase
// hex, optionally byte-order reversed, then right-padded with '0' to the
// requested bitwidth. The right-padding (not the usual left zero-extension)
// is intentional and preserved exactly.
func FormatAddress(addr uint64, byteorder bool, bitwidth int) string {
	hexStr := fmt.Sprintf("%x", addr)

	if byteorder {
		hexStr = reverseByteOrder(hexStr)
	}

	if width := widthChars(bitwidth); width > 0 {
		for len(hexStr) < width {
			hexStr += "0"
		}
	}

	return hexStr
}

// reverseByteOrder pairs the hex digits into bytes and reverses the byte
// order (little-endian alignment). Odd-length input is left-padded to even
// length before pairing.
func reverseByteOrder(hexStr string) string {
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}

	pairs := make([]string, 0, len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		pairs = append(pairs, hexStr[i:i+2])
	}

	reversed := make([]string, len(pairs))
	for i, p := range pairs {
		reversed[len(pairs)-1-i] = p
	}

	out := ""
	for _, p := range reversed {
		out += p
	}
	return out
}

// FormatMatch renders one statement's contribution to the payload:
// `<candidate>\n<hex>\n` under --individually, or just `<hex>` otherwise.
func FormatMatch(m *Match, opts Options) string {
	hexStr := FormatAddress(m.Address, opts.ByteOrder, opts.Bitwidth)
	if opts.Individually {
		return fmt.Sprintf("%s\n%s\n", m.Candidate, hexStr)
	}
	return hexStr
}
