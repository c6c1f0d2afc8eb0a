//go:build !unix

package wakey_network

import "syscall"

// The Go runtime already enables broadcast on UDP sockets here.
func broadcastControl(network, address string, c syscall.RawConn) error {
	return nil
}
