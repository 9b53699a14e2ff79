package editdoc

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nspcc-dev/jserial/pkg/objstream"
)

// Canonical NaN bit patterns, rendered as "NaN". Any other NaN keeps its
// payload by being rendered as raw bits.
const (
	canonicalNaN32 = 0x7fc00000
	canonicalNaN64 = 0x7ff8000000000000
)

// formatPrimitive returns the text of a primitive element.
func formatPrimitive(p *objstream.Primitive) (string, error) {
	switch p.Type {
	case objstream.TypeByte, objstream.TypeChar, objstream.TypeShort,
		objstream.TypeInt, objstream.TypeLong:
		return strconv.FormatInt(p.Int, 10), nil
	case objstream.TypeBoolean:
		switch p.Int {
		case 0:
			return "false", nil
		case 1:
			return "true", nil
		default:
			return strconv.FormatInt(p.Int, 10), nil
		}
	case objstream.TypeFloat:
		if p.Bits > math.MaxUint32 {
			return fmt.Sprintf("0x%x", p.Bits), nil
		}
		f := math.Float32frombits(uint32(p.Bits))
		if math.IsNaN(float64(f)) {
			if p.Bits == canonicalNaN32 {
				return "NaN", nil
			}
			return fmt.Sprintf("0x%08x", p.Bits), nil
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	case objstream.TypeDouble:
		f := math.Float64frombits(p.Bits)
		if math.IsNaN(f) {
			if p.Bits == canonicalNaN64 {
				return "NaN", nil
			}
			return fmt.Sprintf("0x%016x", p.Bits), nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s is not a primitive type", ErrTypeMismatch, p.Type)
	}
}

// parsePrimitive is the inverse of formatPrimitive. Integers aren't checked
// against the width of t, that's up to the encoder.
func parsePrimitive(t objstream.FieldType, s string) (*objstream.Primitive, error) {
	s = strings.TrimSpace(s)
	p := &objstream.Primitive{Type: t}
	switch t {
	case objstream.TypeFloat, objstream.TypeDouble:
		if rest, ok := strings.CutPrefix(s, "0x"); ok {
			bits, err := strconv.ParseUint(rest, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s bits %q", ErrTypeMismatch, t, s)
			}
			p.Bits = bits
			return p, nil
		}
		size := 64
		if t == objstream.TypeFloat {
			size = 32
		}
		f, err := strconv.ParseFloat(s, size)
		if err != nil {
			return nil, fmt.Errorf("%w: %s value %q", ErrTypeMismatch, t, s)
		}
		switch {
		case math.IsNaN(f) && t == objstream.TypeFloat:
			p.Bits = canonicalNaN32
		case math.IsNaN(f):
			p.Bits = canonicalNaN64
		case t == objstream.TypeFloat:
			p.Bits = uint64(math.Float32bits(float32(f)))
		default:
			p.Bits = math.Float64bits(f)
		}
		return p, nil
	case objstream.TypeBoolean:
		switch s {
		case "true":
			p.Int = 1
			return p, nil
		case "false":
			return p, nil
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s value %q", ErrTypeMismatch, t, s)
	}
	p.Int = v
	return p, nil
}

// needsHex checks whether s can't be carried as XML character data as is.
func needsHex(s string) bool {
	if !utf8.ValidString(s) {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool { return !isXMLChar(r) }) >= 0
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// decodeHex accepts hex with arbitrary whitespace inside, so that long
// blobs can be wrapped when edited.
func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}

func parseHandle(s string) (objstream.Handle, error) {
	h, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: handle %q", ErrTypeMismatch, s)
	}
	return objstream.Handle(h), nil
}
