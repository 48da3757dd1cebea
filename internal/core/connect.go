package core

import (
	"context"
	"net/netip"

	"github.com/dicej/wasi-sockets-tests/internal/exchange"
	"github.com/dicej/wasi-sockets-tests/internal/fallback"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/resolve"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
	"github.com/dicej/wasi-sockets-tests/util"
)

// ConnectMode resolves an address argument, then tries each candidate
// in order until one completes the exchange.  This is the default
// client mode.
type ConnectMode struct {
	Address  string
	Resolver *resolve.Resolver
	Exchange exchange.Exchange
	Dialer   transport.Dialer
	Metrics  *metrics.Collector
	Logger   *util.Logger
}

// Run resolves the address and runs the exchange against the first
// candidate that accepts.  Resolution failures are fatal and are not
// retried.  The dialer is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	if m.Dialer != nil {
		defer m.Dialer.Close()
	}

	candidates, err := m.Resolver.ParseAndResolve(ctx, m.Address)
	if err != nil {
		m.Metrics.RecordError(err.Error())
		return err
	}
	m.Logger.Verbose("%s resolved to %v", m.Address, candidates.Addrs)

	target, err := fallback.Try(ctx, candidates.Addrs, candidates.Port,
		func(ctx context.Context, target netip.AddrPort) (netip.AddrPort, error) {
			return target, m.Exchange.Run(ctx, target)
		},
		&fallback.Options{
			OnAttempt: func(target netip.AddrPort) {
				m.Metrics.CandidateAttempted()
				m.Logger.Debug("trying %s", target)
			},
			OnFailure: func(target netip.AddrPort, err error) {
				m.Metrics.CandidateFailed()
				m.Logger.Verbose("%s: %v", target, err)
			},
		})
	if err != nil {
		m.Metrics.RecordError(err.Error())
		m.Logger.Debug("metrics: %s", m.Metrics.JSON())
		return err
	}

	m.Metrics.ExchangeCompleted()
	m.Logger.Verbose("%s exchange with %s succeeded", m.Exchange.Name(), target)
	m.Logger.Debug("metrics: %s", m.Metrics.JSON())
	return nil
}
