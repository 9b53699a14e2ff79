package objstream

import "errors"

// FieldType is the JVM type code of a field or an array component.
type FieldType byte

// This block defines all known field types.
const (
	TypeByte    FieldType = 'B'
	TypeChar    FieldType = 'C'
	TypeDouble  FieldType = 'D'
	TypeFloat   FieldType = 'F'
	TypeInt     FieldType = 'I'
	TypeLong    FieldType = 'J'
	TypeShort   FieldType = 'S'
	TypeBoolean FieldType = 'Z'
	TypeArray   FieldType = '['
	TypeObject  FieldType = 'L'
)

// String implements fmt.Stringer interface.
func (t FieldType) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeChar:
		return "char"
	case TypeDouble:
		return "double"
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeShort:
		return "short"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "INVALID"
	}
}

// IsValid checks if t is a well defined field type.
func (t FieldType) IsValid() bool {
	switch t {
	case TypeByte, TypeChar, TypeDouble, TypeFloat, TypeInt, TypeLong,
		TypeShort, TypeBoolean, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// IsPrimitive checks if t is one of the primitive types.
func (t FieldType) IsPrimitive() bool {
	return t.IsValid() && t != TypeArray && t != TypeObject
}

// FieldTypeFromString returns field type from its String representation.
func FieldTypeFromString(s string) (FieldType, error) {
	switch s {
	case "byte":
		return TypeByte, nil
	case "char":
		return TypeChar, nil
	case "double":
		return TypeDouble, nil
	case "float":
		return TypeFloat, nil
	case "int":
		return TypeInt, nil
	case "long":
		return TypeLong, nil
	case "short":
		return TypeShort, nil
	case "boolean":
		return TypeBoolean, nil
	case "array":
		return TypeArray, nil
	case "object":
		return TypeObject, nil
	default:
		return 0, errors.New("invalid field type")
	}
}
