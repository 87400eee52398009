package siardlite

import (
	"bytes"
	"strings"
)

// SIARD escapes bytes that cannot appear in XML text as \u00HH. The
// decoded payload may contain 0x00, so everything below works on byte
// slices, never on NUL-hostile string APIs.

const escapePrefix = `\u00`

// hexPairs holds the two lowercase hex digits for every byte value,
// precomputed so the LOB hot path never formats per byte.
var hexPairs [512]byte

func init() {
	const digits = "0123456789abcdef"
	for i := 0; i < 256; i++ {
		hexPairs[2*i] = digits[i>>4]
		hexPairs[2*i+1] = digits[i&0x0f]
	}
}

// needsDecode reports whether s contains the literal 6-character SIARD
// escape prefix \u00.
func needsDecode(s string) bool {
	return strings.Contains(s, escapePrefix)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeEscapes replaces each \u00HH (upper or lower hex) in s with the
// byte 0xHH; all other characters pass through unchanged. A \u00 prefix
// not followed by two hex digits passes through literally and scanning
// resumes after the prefix.
func decodeEscapes(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], escapePrefix) {
			if i+6 <= len(s) {
				hi, okHi := hexVal(s[i+4])
				lo, okLo := hexVal(s[i+5])
				if okHi && okLo {
					out = append(out, hi<<4|lo)
					i += 6
					continue
				}
			}
			out = append(out, escapePrefix...)
			i += len(escapePrefix)
			continue
		}
		out = append(out, s[i])
		i++
	}
	return out
}

// appendHex appends the lowercase hex encoding of src to dst, two digits
// per byte, four source bytes per iteration where possible.
func appendHex(dst, src []byte) []byte {
	i := 0
	for ; i+4 <= len(src); i += 4 {
		a, b, c, d := src[i], src[i+1], src[i+2], src[i+3]
		dst = append(dst,
			hexPairs[2*int(a)], hexPairs[2*int(a)+1],
			hexPairs[2*int(b)], hexPairs[2*int(b)+1],
			hexPairs[2*int(c)], hexPairs[2*int(c)+1],
			hexPairs[2*int(d)], hexPairs[2*int(d)+1])
	}
	for ; i < len(src); i++ {
		v := src[i]
		dst = append(dst, hexPairs[2*int(v)], hexPairs[2*int(v)+1])
	}
	return dst
}

func writeHex(buf *bytes.Buffer, b []byte) {
	var scratch [8 * 1024]byte
	for len(b) > 0 {
		n := len(b)
		if n > len(scratch)/2 {
			n = len(scratch) / 2
		}
		buf.Write(appendHex(scratch[:0], b[:n]))
		b = b[n:]
	}
}

// blobLiteral renders b as a SQLite blob literal X'<hex>' with lowercase
// hex, two digits per byte. The empty blob is X''.
func blobLiteral(b []byte) string {
	out := make([]byte, 0, 3+2*len(b))
	out = append(out, 'X', '\'')
	out = appendHex(out, b)
	out = append(out, '\'')
	return string(out)
}

// castBlobAsText renders b as CAST(X'<hex>' AS TEXT), used whenever a
// TEXT-affinity cell must carry bytes that cannot be single-quoted: a
// decoded payload containing 0x00, or LOB bytes assigned to a TEXT column.
func castBlobAsText(b []byte) string {
	return "CAST(" + blobLiteral(b) + " AS TEXT)"
}

// quoteText renders s as a SQLite string literal with every single quote
// doubled.
func quoteText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
