package xplorer

import (
	"net"
	"time"
)

// keepAliveListener wraps a *net.TCPListener to enable TCP keep-alive on
// every accepted connection, so a debugger client that holds a connection
// open across a breakpoint pause doesn't silently lose it.
type keepAliveListener struct {
	*net.TCPListener
}

// listenKeepAlive listens on the TCP network address and returns a
// net.Listener that enables keep-alive on every accepted connection.
func listenKeepAlive(address string) (net.Listener, error) {
	nl, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &keepAliveListener{TCPListener: nl.(*net.TCPListener)}, nil
}

// Accept implements net.Listener.
func (l *keepAliveListener) Accept() (net.Conn, error) {
	tc, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}

	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)

	return tc, nil
}
