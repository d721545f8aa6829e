package resp

import (
	"errors"
	"fmt"
)

// Type is the leading byte that tags every RESP value on the wire
type Type byte

const (
	TypeSimpleString Type = '+'
	TypeError        Type = '-'
	TypeInteger      Type = ':'
	TypeBulkString   Type = '$'
	TypeArray        Type = '*'
)

// ErrUnknownType is returned when a Value carries a tag outside the five RESP types
var ErrUnknownType = errors.New("unknown RESP type")

// String returns a readable name of the type, used in logs and error messages
func (t Type) String() string {
	switch t {
	case TypeSimpleString:
		return "simple string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		return "bulk string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("unknown(%q)", byte(t))
	}
}

// Value is a single decoded RESP value. Type selects which of the fields is meaningful:
//   - TypeSimpleString, TypeError, TypeBulkString: Str
//   - TypeInteger: Integer
//   - TypeArray: Array
//
// IsNull marks the null bulk string ($-1) and the null array (*-1),
// which are distinct from an empty payload or an empty array
type Value struct {
	Str     []byte
	Array   []Value
	Integer int64
	Type    Type
	IsNull  bool
}

// Equal reports whether two values have the same type, nullness and contents.
// A nil and an empty payload are equal unless one of them is null
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.IsNull != o.IsNull {
		return false
	}

	switch v.Type {
	case TypeSimpleString, TypeError, TypeBulkString:
		return string(v.Str) == string(o.Str)
	case TypeInteger:
		return v.Integer == o.Integer
	case TypeArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
