// Package transport provides abstractions for establishing the
// outbound connection an exchange runs over: plain TCP, TCP through an
// SSH gateway, or WASI preview 1 sockets when built for wasip1.
//
// Every dialer reports connection failures as an
// errors.NetworkError with Op "dial", which is how the exchanges tell
// "this candidate is unreachable" apart from "the conversation failed".
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
