package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrProtocol is wrapped by every framing violation returned from Decoder.Read.
// Such an error leaves the stream in an unknown position, the connection can not be reused
var ErrProtocol = errors.New("protocol error")

// Default protocol limits
const (
	DefaultMaxDepth    = 32
	DefaultMaxBulkLen  = 512 * 1024 * 1024
	DefaultMaxArrayLen = 1024 * 1024
	DefaultMaxLineLen  = 64 * 1024
)

// bulk payloads larger than this are read in chunks instead of being allocated upfront
const bulkPrealloc = 64 * 1024

// Limits bounds the resources a single decoded value may claim
type Limits struct {
	MaxDepth    int // maximum array nesting, the top level array is depth 1
	MaxBulkLen  int // maximum bulk string payload in bytes
	MaxArrayLen int // maximum number of elements of one array
	MaxLineLen  int // maximum length of a simple string, error or header line
}

// DefaultLimits returns the limits used when no option is passed to NewDecoder
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:    DefaultMaxDepth,
		MaxBulkLen:  DefaultMaxBulkLen,
		MaxArrayLen: DefaultMaxArrayLen,
		MaxLineLen:  DefaultMaxLineLen,
	}
}

// DecoderOption customizes a Decoder
type DecoderOption func(*Decoder)

// WithLimits overrides the decoder limits. Zero fields keep their defaults
func WithLimits(l Limits) DecoderOption {
	return func(d *Decoder) {
		if l.MaxDepth > 0 {
			d.limits.MaxDepth = l.MaxDepth
		}
		if l.MaxBulkLen > 0 {
			d.limits.MaxBulkLen = l.MaxBulkLen
		}
		if l.MaxArrayLen > 0 {
			d.limits.MaxArrayLen = l.MaxArrayLen
		}
		if l.MaxLineLen > 0 {
			d.limits.MaxLineLen = l.MaxLineLen
		}
	}
}

// Decoder reads RESP values from a byte stream
type Decoder struct {
	rd     *bufio.Reader
	limits Limits
}

// NewDecoder initializes a Decoder with a buffered reader
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		rd:     bufio.NewReader(r),
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Read decodes the next value from the stream.
// It returns io.EOF only when the stream ended before the first byte of a value.
// Framing violations, including an end of stream in the middle of a value, wrap ErrProtocol.
// Other transport errors are returned unchanged
func (d *Decoder) Read() (Value, error) {
	t, err := d.rd.ReadByte()
	if err != nil {
		return Value{}, err
	}

	return d.readValue(Type(t), 1)
}

func (d *Decoder) readValue(t Type, depth int) (Value, error) {
	switch t {
	case TypeSimpleString, TypeError:
		line, err := d.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Str: line}, nil

	case TypeInteger:
		n, err := d.readInteger("integer")
		if err != nil {
			return Value{}, err
		}
		return MakeInteger(n), nil

	case TypeBulkString:
		return d.readBulkString()

	case TypeArray:
		return d.readArray(depth)

	default:
		return Value{}, fmt.Errorf("%w: unexpected type byte %q", ErrProtocol, byte(t))
	}
}

// readLine reads up to the next CRLF and returns the line without it.
// A CR or LF on its own is part of the line
func (d *Decoder) readLine() ([]byte, error) {
	var line []byte

	for {
		frag, err := d.rd.ReadSlice('\n')
		line = append(line, frag...)

		if len(line) > d.limits.MaxLineLen+2 {
			return nil, fmt.Errorf("%w: line length exceeds limit %d", ErrProtocol, d.limits.MaxLineLen)
		}

		switch {
		case err == nil:
			if len(line) >= 2 && line[len(line)-2] == '\r' {
				return line[:len(line)-2], nil
			}
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if len(line) > 0 && line[len(line)-1] == '\r' {
				return nil, fmt.Errorf("%w: truncated terminator", ErrProtocol)
			}
			return nil, fmt.Errorf("%w: unexpected end of stream in line", ErrProtocol)
		default:
			return nil, err
		}
	}
}

func (d *Decoder) readInteger(what string) (int64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", ErrProtocol, what)
	}

	return n, nil
}

func (d *Decoder) readBulkString() (Value, error) {
	n, err := d.readInteger("bulk length")
	if err != nil {
		return Value{}, err
	}

	switch {
	case n == -1:
		return MakeNilBulkString(), nil
	case n < -1:
		return Value{}, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	case n > int64(d.limits.MaxBulkLen):
		return Value{}, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrProtocol, n, d.limits.MaxBulkLen)
	}

	// payload and its CRLF
	var buf bytes.Buffer
	buf.Grow(int(min(n+2, bulkPrealloc)))
	if _, err := io.CopyN(&buf, d.rd, n+2); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Value{}, fmt.Errorf("%w: truncated bulk string", ErrProtocol)
		}
		return Value{}, err
	}

	b := buf.Bytes()
	if b[n] != '\r' || b[n+1] != '\n' {
		return Value{}, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}

	return MakeBulkBytes(b[:n:n]), nil
}

func (d *Decoder) readArray(depth int) (Value, error) {
	if depth > d.limits.MaxDepth {
		return Value{}, fmt.Errorf("%w: nesting exceeds max depth %d", ErrProtocol, d.limits.MaxDepth)
	}

	n, err := d.readInteger("array length")
	if err != nil {
		return Value{}, err
	}

	switch {
	case n == -1:
		return MakeNilArray(), nil
	case n < -1:
		return Value{}, fmt.Errorf("%w: invalid array length", ErrProtocol)
	case n > int64(d.limits.MaxArrayLen):
		return Value{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrProtocol, n, d.limits.MaxArrayLen)
	}

	values := make([]Value, 0, min(n, 1024))
	for i := int64(0); i < n; i++ {
		t, err := d.rd.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Value{}, fmt.Errorf("%w: truncated array, got %d of %d elements", ErrProtocol, i, n)
			}
			return Value{}, err
		}

		v, err := d.readValue(Type(t), depth+1)
		if err != nil {
			return Value{}, err
		}
		values = append(values, v)
	}

	return MakeArray(values), nil
}
