package objstream

import (
	"fmt"
	"slices"
)

// valueFields returns fields whose values are written for the class, in
// wire order.
func (c *ClassDesc) valueFields() []FieldDesc {
	if c.Proxy || !c.Has(FlagSerializable) {
		return nil
	}
	return c.WireFields()
}

// hasAnnotation checks whether class data is followed by an annotation
// written by custom write logic.
func (c *ClassDesc) hasAnnotation() bool {
	return !c.Proxy && c.Has(FlagSerializable|FlagWriteMethod)
}

// hierarchy returns the descriptor chain of cd, root-most superclass first.
func hierarchy(cd *ClassDesc, resolve func(Node) (*ClassDesc, error), cycleErr error) ([]*ClassDesc, error) {
	var chain []*ClassDesc
	seen := make(map[*ClassDesc]bool)
	for c := cd; c != nil; {
		if seen[c] {
			return nil, fmt.Errorf("%w: cyclic superclass chain of %q", cycleErr, cd.Name)
		}
		seen[c] = true
		chain = append(chain, c)
		switch c.Super.(type) {
		case nil, *Null:
			c = nil
		default:
			next, err := resolve(c.Super)
			if err != nil {
				return nil, err
			}
			c = next
		}
	}
	slices.Reverse(chain)
	return chain, nil
}

// componentType returns the element type of an array class.
func componentType(cd *ClassDesc) (FieldType, error) {
	if cd.Proxy || len(cd.Name) < 2 || cd.Name[0] != '[' {
		return 0, fmt.Errorf("%w: %q is not an array class", ErrFieldMismatch, cd.Name)
	}
	t := FieldType(cd.Name[1])
	if !t.IsValid() {
		return 0, fmt.Errorf("%w: array component 0x%02x of %q", ErrUnknownTypeCode, cd.Name[1], cd.Name)
	}
	return t, nil
}
