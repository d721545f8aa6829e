package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternalApril/crescent/internal/config"
	"github.com/eternalApril/crescent/internal/metrics"
	"github.com/eternalApril/crescent/internal/resp"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Server accepts connections and serves each of them on its own goroutine.
// At most server.max_connections connections are served at once, further clients wait in the listen backlog
type Server struct {
	cfg     config.ServerConfig
	limits  resp.Limits
	engine  *Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
	slots   *semaphore.Weighted

	mu      sync.Mutex
	ln      net.Listener
	closing atomic.Bool
	forced  atomic.Bool // shutdown deadline passed, connections are being closed

	peers  sync.Map // client id -> *Peer
	nextID atomic.Int64
	wg     sync.WaitGroup
}

// New creates a server dispatching requests to engine
func New(cfg *config.Config, engine *Engine, logger *zap.Logger, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}

	return &Server{
		cfg: cfg.Server,
		limits: resp.Limits{
			MaxDepth:    cfg.Protocol.MaxDepth,
			MaxBulkLen:  cfg.Protocol.MaxBulkLen,
			MaxArrayLen: cfg.Protocol.MaxArrayLen,
			MaxLineLen:  cfg.Protocol.MaxLineLen,
		},
		engine:  engine,
		logger:  logger,
		metrics: m,
		slots:   semaphore.NewWeighted(max(cfg.Server.MaxConnections, 1)),
	}
}

// ListenAndServe binds the configured address and serves it until ctx is done or Shutdown is called
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := Listen(ctx, s.cfg.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called, then returns nil.
// It does not wait for the accepted connections, use Shutdown for that
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// the accept loop is counted too, so Add for a new connection never races with Wait in Shutdown.
	// closing is checked and the loop counted under mu, Shutdown sets closing under the same lock
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		return ln.Close()
	}
	s.ln = ln
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	stop := context.AfterFunc(ctx, s.closeListener)
	defer stop()

	s.logger.Info("serving", zap.String("address", ln.Addr().String()),
		zap.Int64("max_connections", s.cfg.MaxConnections))

	var backoff time.Duration
	for {
		// wait for a free slot before taking the next connection off the backlog
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			s.slots.Release(1)

			if s.closing.Load() || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}

			backoff = nextBackoff(backoff)
			s.logger.Error("accept error", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.slots.Release(1)
			s.serveConn(conn)
		}()
	}
}

// Shutdown stops accepting and waits for the served connections to finish.
// When ctx is done first, the remaining connections are closed and ctx.Err() is returned
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	if s.ln != nil {
		s.ln.Close() //nolint:errcheck
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forced.Store(true)
		s.peers.Range(func(_, v any) bool {
			v.(*Peer).Close() //nolint:errcheck
			return true
		})
		<-done
		return ctx.Err()
	}
}

// serveConn handles a connection for a single user
func (s *Server) serveConn(conn net.Conn) {
	id := s.nextID.Add(1)
	peer := NewPeer(id, conn, s.limits)
	peer.SetTimeouts(s.cfg.IdleTimeout, s.cfg.WriteTimeout)

	log := s.logger.With(
		zap.Int64("client_id", id),
		zap.String("conn", ulid.Make().String()),
		zap.String("addr", conn.RemoteAddr().String()),
	)

	s.peers.Store(id, peer)
	if s.forced.Load() {
		peer.Close() //nolint:errcheck
	}
	s.metrics.ConnectionsAccepted.Inc()
	s.metrics.ConnectionsActive.Inc()

	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected")
	}

	defer func() {
		peer.Close() //nolint:errcheck
		s.peers.Delete(id)
		s.metrics.ConnectionsActive.Dec()
		// log connection close
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected")
		}
	}()

	s.handle(peer, log)
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		s.ln.Close() //nolint:errcheck
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(2*d, time.Second)
}
