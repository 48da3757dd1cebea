// Package exchange defines what happens once a candidate accepts a
// connection: one fixed request/response whose answer is verified.
//
// An exchange reports "could not connect" as a plain error, so the
// fallback policy moves on to the next candidate, and reports anything
// that goes wrong on an established connection as fallback.Permanent,
// which ends the run.
package exchange

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/internal/fallback"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
)

// Exchange runs one verified round-trip against a single candidate.
type Exchange interface {
	// Name identifies the exchange in logs and errors.
	Name() string

	// Run connects to target and performs the exchange.
	Run(ctx context.Context, target netip.AddrPort) error
}

// trackingDialer remembers whether any connection was established, so
// errors surfaced by a client library can be attributed to the connect
// step or to the conversation.  It also keeps the first permanent dial
// error, which client libraries may wrap or replace.
type trackingDialer struct {
	transport.Dialer
	connected atomic.Bool

	mu    sync.Mutex
	fatal error
}

func (d *trackingDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Dialer.Dial(ctx, network, address)
	switch {
	case err == nil:
		d.connected.Store(true)
	case fallback.IsPermanent(err):
		d.mu.Lock()
		if d.fatal == nil {
			d.fatal = err
		}
		d.mu.Unlock()
	}
	return conn, err
}

func (d *trackingDialer) fatalErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}

// classify turns a library error into a swallowable connect failure
// or a permanent one.
func (d *trackingDialer) classify(err error) error {
	if err == nil {
		return nil
	}
	if fatal := d.fatalErr(); fatal != nil {
		return fatal
	}
	if !d.connected.Load() || ncerr.IsDialFailure(err) {
		return err
	}
	return fallback.Permanent(err)
}

// connectFailure is classify for errors known to precede the
// conversation.
func (d *trackingDialer) connectFailure(err error) error {
	if fatal := d.fatalErr(); fatal != nil {
		return fatal
	}
	return err
}
