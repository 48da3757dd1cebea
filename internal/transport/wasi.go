//go:build wasip1

package transport

import (
	"context"
	"net"
	"time"

	"github.com/stealthrocket/net/wasip1"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
)

// WASIDialer opens sockets through the WASI preview 1 socket
// extensions exposed by the host runtime.
type WASIDialer struct {
	Timeout time.Duration
}

var _ Dialer = (*WASIDialer)(nil)

// Default returns the dialer for the host platform.
func Default(timeout time.Duration) Dialer {
	return &WASIDialer{Timeout: timeout}
}

// Dial connects to address using the runtime's socket imports.
func (d *WASIDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	conn, err := wasip1.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Listen opens a listener through the runtime's socket imports.
func Listen(network, address string) (net.Listener, error) {
	return wasip1.Listen(network, address)
}

// Close is a no-op; the runtime owns the socket table.
func (d *WASIDialer) Close() error { return nil }
