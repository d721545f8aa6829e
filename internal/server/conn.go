package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/eternalApril/crescent/internal/resp"
	"go.uber.org/zap"
)

// handle runs the request loop of one connection: read a request, dispatch it, write the reply.
// It returns when the client closes the stream, the framing breaks or a reply can not be written.
// The caller closes the connection
func (s *Server) handle(peer *Peer, log *zap.Logger) {
	for {
		req, err := peer.ReadCommand()
		if err != nil {
			s.readFailed(peer, log, err)
			return
		}

		reply := s.dispatch(peer, req)

		if err := peer.Send(reply); err != nil {
			log.Debug("write reply failed", zap.Error(err))
			return
		}
		if err := peer.Flush(); err != nil {
			log.Debug("flush reply failed", zap.Error(err))
			return
		}
	}
}

// readFailed answers a broken request. Only framing violations get a reply,
// the stream position is lost after them so the connection is closed anyway
func (s *Server) readFailed(peer *Peer, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, io.EOF):
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client closed connection")
		}

	case errors.Is(err, resp.ErrProtocol):
		s.metrics.ProtocolErrors.Inc()
		log.Warn("protocol error", zap.Error(err))

		if err := peer.Send(resp.MakeError("ERR " + err.Error())); err != nil {
			return
		}
		peer.Flush() //nolint:errcheck

	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			log.Debug("connection timed out")
			return
		}
		log.Debug("read command failed", zap.Error(err))
	}
}

// dispatch validates the request shape and executes the command.
// A request that is not an array of bulk strings is answered with an error and the connection stays usable
func (s *Server) dispatch(peer *Peer, v resp.Value) resp.Value {
	if v.Type != resp.TypeArray || v.IsNull {
		return resp.MakeErrorf("invalid command format")
	}

	if len(v.Array) == 0 {
		return resp.MakeErrorf("empty command")
	}

	for _, el := range v.Array {
		if el.Type != resp.TypeBulkString || el.IsNull {
			return resp.MakeErrorf("invalid command format")
		}
	}

	return s.engine.Execute(&Request{
		Name:     strings.ToUpper(string(v.Array[0].Str)),
		Args:     v.Array[1:],
		ClientID: peer.ID(),
	})
}
