package server

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/eternalApril/crescent/internal/config"
	"github.com/eternalApril/crescent/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConn_Replies(t *testing.T) {
	ts := startServer(t, nil)

	tests := []struct {
		name    string
		request string
		reply   string
	}{
		{"ping", "*1\r\n$4\r\nPING\r\n", "+PONG\r\n"},
		{"lowercase ping", "*1\r\n$4\r\nping\r\n", "+PONG\r\n"},
		{"ping with message", "*2\r\n$4\r\nPING\r\n$5\r\nhello\r\n", "$5\r\nhello\r\n"},
		{"echo", "*2\r\n$4\r\nECHO\r\n$3\r\nfoo\r\n", "$3\r\nfoo\r\n"},
		{"echo empty", "*2\r\n$4\r\nEcHo\r\n$0\r\n\r\n", "$0\r\n\r\n"},
		{"echo binary", "*2\r\n$4\r\nECHO\r\n$6\r\n\x00\xff\r\n\r\n\r\n", "$6\r\n\x00\xff\r\n\r\n\r\n"},
		{"echo arity", "*1\r\n$4\r\nECHO\r\n", "-ERR wrong number of arguments for 'echo' command\r\n"},
		{"ping arity", "*3\r\n$4\r\nPING\r\n$1\r\na\r\n$1\r\nb\r\n", "-ERR wrong number of arguments for 'ping' command\r\n"},
		{"unknown command", "*1\r\n$3\r\nFOO\r\n", "-ERR unknown command 'FOO'\r\n"},
		{"client setinfo", "*3\r\n$6\r\nCLIENT\r\n$7\r\nSETINFO\r\n$1\r\nx\r\n", "+OK\r\n"},
		{"command count", "*2\r\n$7\r\nCOMMAND\r\n$5\r\nCOUNT\r\n", ":5\r\n"},
		{"simple string request", "+PING\r\n", "-ERR invalid command format\r\n"},
		{"integer request", ":1\r\n", "-ERR invalid command format\r\n"},
		{"null array request", "*-1\r\n", "-ERR invalid command format\r\n"},
		{"empty array request", "*0\r\n", "-ERR empty command\r\n"},
		{"integer argument", "*2\r\n$4\r\nECHO\r\n:1\r\n", "-ERR invalid command format\r\n"},
		{"null bulk name", "*1\r\n$-1\r\n", "-ERR invalid command format\r\n"},
		{"nested array", "*1\r\n*1\r\n$4\r\nPING\r\n", "-ERR invalid command format\r\n"},
	}

	// one connection for all cases, none of them may close it
	c := dial(t, ts.addr)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.send(t, tt.request)
			c.expect(t, tt.reply)

			c.send(t, "*1\r\n$4\r\nPING\r\n")
			c.expect(t, "+PONG\r\n")
		})
	}
}

func TestConn_Pipelined(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts.addr)

	c.send(t, "*1\r\n$4\r\nPING\r\n"+
		"*2\r\n$4\r\nECHO\r\n$1\r\na\r\n"+
		"*1\r\n$3\r\nNOP\r\n"+
		"*2\r\n$4\r\nECHO\r\n$1\r\nb\r\n")

	c.expect(t, "+PONG\r\n$1\r\na\r\n-ERR unknown command 'NOP'\r\n$1\r\nb\r\n")
}

func TestConn_SplitRequest(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts.addr)

	for _, part := range []string{"*2\r", "\n$4\r\nEC", "HO\r\n$3\r\nba", "r\r\n"} {
		c.send(t, part)
	}
	c.expect(t, "$3\r\nbar\r\n")
}

func TestConn_ProtocolErrorCloses(t *testing.T) {
	tests := []struct {
		name    string
		request string
		reply   string
	}{
		{"unknown type byte", "!oops\r\n", "-ERR protocol error: unexpected type byte '!'\r\n"},
		{"bad bulk length", "*1\r\n$x\r\n", "-ERR protocol error: invalid bulk length\r\n"},
		{"bad bulk terminator", "*1\r\n$4\r\nPINGxx", "-ERR protocol error: invalid bulk terminator\r\n"},
		{"negative array length", "*-2\r\n", "-ERR protocol error: invalid array length\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := startServer(t, nil)
			c := dial(t, ts.addr)

			c.send(t, tt.request)
			c.expect(t, tt.reply)
			c.expectClosed(t)

			assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.ProtocolErrors))
		})
	}
}

func TestConn_TruncatedRequest(t *testing.T) {
	ts := startServer(t, nil)
	c := dial(t, ts.addr)

	c.send(t, "*2\r\n$4\r\nECHO\r\n")
	require.NoError(t, c.conn.CloseWrite())

	c.expect(t, "-ERR protocol error: truncated array, got 1 of 2 elements\r\n")
	c.expectClosed(t)
}

func TestConn_CleanClose(t *testing.T) {
	ts := startServer(t, nil)

	t.Run("idle client", func(t *testing.T) {
		c := dial(t, ts.addr)
		require.NoError(t, c.conn.CloseWrite())
		c.expectClosed(t)
	})

	t.Run("after a request", func(t *testing.T) {
		c := dial(t, ts.addr)
		c.send(t, "*1\r\n$4\r\nPING\r\n")
		c.expect(t, "+PONG\r\n")
		require.NoError(t, c.conn.CloseWrite())
		c.expectClosed(t)
	})

	assert.Equal(t, 0.0, testutil.ToFloat64(ts.metrics.ProtocolErrors))
}

func TestConn_ConfiguredLimits(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) {
		cfg.Protocol.MaxDepth = 1
		cfg.Protocol.MaxBulkLen = 8
	})

	t.Run("depth", func(t *testing.T) {
		c := dial(t, ts.addr)
		c.send(t, "*1\r\n*0\r\n")
		c.expect(t, "-ERR protocol error: nesting exceeds max depth 1\r\n")
		c.expectClosed(t)
	})

	t.Run("bulk length", func(t *testing.T) {
		c := dial(t, ts.addr)
		c.send(t, "*2\r\n$4\r\nECHO\r\n$9\r\n")
		c.expect(t, "-ERR protocol error: bulk length 9 exceeds limit 8\r\n")
		c.expectClosed(t)
	})

	t.Run("within limits", func(t *testing.T) {
		c := dial(t, ts.addr)
		c.send(t, "*2\r\n$4\r\nECHO\r\n$8\r\n"+strings.Repeat("z", 8)+"\r\n")
		c.expect(t, "$8\r\nzzzzzzzz\r\n")
	})
}

var errBrokenPipe = errors.New("broken pipe")

// unwritableConn delivers its input and fails every write
type unwritableConn struct {
	in     *strings.Reader
	reads  int
	writes int
	closed bool
}

func (c *unwritableConn) Read(b []byte) (int, error) {
	c.reads++
	return c.in.Read(b)
}

func (c *unwritableConn) Write(_ []byte) (int, error) {
	c.writes++
	return 0, errBrokenPipe
}

func (c *unwritableConn) Close() error {
	c.closed = true
	return nil
}

func (c *unwritableConn) LocalAddr() net.Addr  { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6379} }
func (c *unwritableConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000} }

func (c *unwritableConn) SetDeadline(_ time.Time) error      { return nil }
func (c *unwritableConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *unwritableConn) SetWriteDeadline(_ time.Time) error { return nil }

func TestConn_WriteFailureCloses(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		pings          float64
		protocolErrors float64
	}{
		{"pipelined requests", "*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n", 1, 0},
		{"protocol error reply", "!oops\r\n*1\r\n$4\r\nPING\r\n", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := zaptest.NewLogger(t)
			m := metrics.New()
			srv := New(testConfig(), NewEngine(log, m), log, m)

			conn := &unwritableConn{in: strings.NewReader(tt.input)}
			srv.serveConn(conn)

			// the first reply fails, nothing after it is read, dispatched or written
			assert.Equal(t, 1, conn.writes)
			assert.Equal(t, 1, conn.reads)
			assert.True(t, conn.closed)

			assert.Equal(t, tt.pings, testutil.ToFloat64(m.CommandCalls.WithLabelValues("PING", metrics.StatusOK)))
			assert.Equal(t, tt.protocolErrors, testutil.ToFloat64(m.ProtocolErrors))
			assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionsActive))
		})
	}
}
