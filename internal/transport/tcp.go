package transport

import (
	"context"
	"net"
	"time"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
)

// TCPDialer establishes plain TCP connections.  A zero Timeout means
// the dial blocks until the kernel gives up or ctx is cancelled.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
