package server

import (
	"context"
	"net"
)

// Listen binds a TCP listener on addr with address reuse enabled,
// so a restarted server can bind while old connections linger in TIME_WAIT
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	return lc.Listen(ctx, "tcp", addr)
}
