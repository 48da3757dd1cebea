//go:build !wasip1

package transport

import (
	"net"
	"time"
)

// Default returns the dialer for the host platform.
func Default(timeout time.Duration) Dialer {
	return &TCPDialer{Timeout: timeout}
}

// Listen opens a listener on the host platform.
func Listen(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}
