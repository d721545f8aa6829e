//go:build !unix

package server

import "syscall"

// SO_REUSEADDR lets several sockets bind the same port on Windows, it is left unset there
func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
