package io

import (
	"unicode/utf8"
)

// DecodeModifiedUTF8 converts Java's modified UTF-8 into a Go string. The
// two-byte NUL form becomes "\x00" and surrogate pairs are folded into
// regular four-byte UTF-8 sequences. Anything else, including lone
// surrogates and malformed input, is kept byte for byte so that
// EncodeModifiedUTF8 restores it.
func DecodeModifiedUTF8(b []byte) string {
	if isPlainASCII(b) {
		return string(b)
	}
	res := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0xC0 && i+1 < len(b) && b[i+1] == 0x80:
			res = append(res, 0)
			i += 2
		case c == 0xED && i+5 < len(b) && isHighSurrogate(b[i:i+3]) && b[i+3] == 0xED && isLowSurrogate(b[i+3:i+6]):
			hi := surrogateValue(b[i : i+3])
			lo := surrogateValue(b[i+3 : i+6])
			r := 0x10000 + (hi-0xD800)<<10 + (lo - 0xDC00)
			res = utf8.AppendRune(res, r)
			i += 6
		default:
			res = append(res, c)
			i++
		}
	}
	return string(res)
}

// EncodeModifiedUTF8 is the inverse of DecodeModifiedUTF8.
func EncodeModifiedUTF8(s string) []byte {
	if isPlainASCII([]byte(s)) {
		return []byte(s)
	}
	res := make([]byte, 0, len(s)+len(s)/2)
	for i := 0; i < len(s); {
		c := s[i]
		if c == 0 {
			res = append(res, 0xC0, 0x80)
			i++
			continue
		}
		if c >= 0xF0 {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r != utf8.RuneError && size == 4 {
				r -= 0x10000
				res = appendSurrogate(res, 0xD800+(r>>10))
				res = appendSurrogate(res, 0xDC00+(r&0x3FF))
				i += size
				continue
			}
		}
		res = append(res, c)
		i++
	}
	return res
}

// ModifiedUTF8Len returns the length of s in modified UTF-8.
func ModifiedUTF8Len(s string) int {
	return len(EncodeModifiedUTF8(s))
}

func isPlainASCII(b []byte) bool {
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			return false
		}
	}
	return true
}

func isHighSurrogate(b []byte) bool {
	return b[0] == 0xED && b[1] >= 0xA0 && b[1] <= 0xAF && b[2]&0xC0 == 0x80
}

func isLowSurrogate(b []byte) bool {
	return b[0] == 0xED && b[1] >= 0xB0 && b[1] <= 0xBF && b[2]&0xC0 == 0x80
}

func surrogateValue(b []byte) rune {
	return rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F)
}

func appendSurrogate(b []byte, r rune) []byte {
	return append(b, 0xE0|byte(r>>12), 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
}
