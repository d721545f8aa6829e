package resp

import (
	"bytes"
)

// SerializeCommand encodes a request array of bulk strings, the shape clients send to the server
func SerializeCommand(cmd string, args ...string) ([]byte, error) {
	elements := make([]Value, 0, 1+len(args))
	elements = append(elements, MakeBulkString(cmd))
	for _, a := range args {
		elements = append(elements, MakeBulkString(a))
	}

	return Serialize(MakeArray(elements))
}

// Serialize uses a standard Encoder to convert a value to its wire bytes
func Serialize(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	if err := enc.Write(v); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
