package server

import (
	"net"
	"sync"
	"time"

	"github.com/eternalApril/crescent/internal/resp"
)

// Peer represents a connected client.
// It wraps a network connection and provides methods for reading and writing RESP-encoded data.
// Reads and writes belong to the goroutine serving the connection, only Close may be called from elsewhere
type Peer struct {
	id           int64
	conn         net.Conn
	in           *idleReader
	reader       *resp.Decoder
	writer       *resp.Encoder
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewPeer initializes a new client peer from a network connection
func NewPeer(id int64, conn net.Conn, limits resp.Limits) *Peer {
	in := &idleReader{conn: conn}
	return &Peer{
		id:     id,
		conn:   conn,
		in:     in,
		reader: resp.NewDecoder(in, resp.WithLimits(limits)),
		writer: resp.NewEncoder(conn),
	}
}

// SetTimeouts sets how long the client may stay silent while a request is awaited or being read,
// and how long a reply flush may block. Zero disables a timeout
func (p *Peer) SetTimeouts(idle, write time.Duration) {
	p.in.timeout = idle
	p.writeTimeout = write
}

// ID returns the client id, unique within the server
func (p *Peer) ID() int64 {
	return p.id
}

// RemoteAddr returns the address of the client
func (p *Peer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

// ReadCommand reads and decodes the next RESP value from the client's input stream
func (p *Peer) ReadCommand() (resp.Value, error) {
	return p.reader.Read()
}

// Send encodes a RESP value into the output buffer.
// A large reply may reach the connection before Flush
func (p *Peer) Send(v resp.Value) error {
	if err := p.armWrite(); err != nil {
		return err
	}
	return p.writer.Write(v)
}

// Flush sends all buffered data to the client
func (p *Peer) Flush() error {
	if err := p.armWrite(); err != nil {
		return err
	}
	return p.writer.Flush()
}

func (p *Peer) armWrite() error {
	if p.writeTimeout <= 0 {
		return nil
	}
	return p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
}

// Close terminates the underlying network connection. Only the first call closes it
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}

// idleReader moves the read deadline forward before every read of the socket,
// so a client that keeps sending is never cut off in the middle of a large request
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *idleReader) Read(b []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(b)
}
