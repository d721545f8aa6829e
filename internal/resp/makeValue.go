package resp

import (
	"fmt"
	"strings"
)

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// MakeSimpleString construct SimpleString Value from string
func MakeSimpleString(s string) Value {
	return Value{
		Type: TypeSimpleString,
		Str:  []byte(s),
	}
}

// MakeError construct Error Value from string. Callers add the "ERR " prefix.
// CR and LF are replaced with spaces so the reply stays a single line
func MakeError(s string) Value {
	return Value{
		Type: TypeError,
		Str:  []byte(lineBreaks.Replace(s)),
	}
}

// MakeErrorf construct a generic "ERR ..." Error Value from a format string
func MakeErrorf(format string, args ...any) Value {
	return MakeError("ERR " + fmt.Sprintf(format, args...))
}

// MakeErrorWrongNumberOfArguments construct Error Value that command had wrong number of arguments for command
func MakeErrorWrongNumberOfArguments(cmd string) Value {
	return MakeErrorf("wrong number of arguments for '%s' command", strings.ToLower(cmd))
}

// MakeBulkString construct BulkString Value from string
func MakeBulkString(s string) Value {
	return Value{
		Type: TypeBulkString,
		Str:  []byte(s),
	}
}

// MakeBulkBytes construct BulkString Value from raw bytes without copying them
func MakeBulkBytes(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{
		Type: TypeBulkString,
		Str:  b,
	}
}

// MakeNilBulkString construct nil BulkSting Value
func MakeNilBulkString() Value {
	return Value{
		Type:   TypeBulkString,
		IsNull: true,
	}
}

// MakeInteger construct Integer Value from int64
func MakeInteger(n int64) Value {
	return Value{
		Type:    TypeInteger,
		Integer: n,
	}
}

// MakeArray creates a standard RESP array containing the provided elements
func MakeArray(values []Value) Value {
	if values == nil {
		values = []Value{}
	}
	return Value{
		Type:  TypeArray,
		Array: values,
	}
}

// MakeNilArray construct nil Array Value
func MakeNilArray() Value {
	return Value{
		Type:   TypeArray,
		IsNull: true,
	}
}
