package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/internal/exchange"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/resolve"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
	"github.com/dicej/wasi-sockets-tests/tunnel"
	"github.com/dicej/wasi-sockets-tests/util"
)

// staticLookup answers every hostname with the same address list.
type staticLookup struct {
	addrs []netip.Addr
	err   error
	calls atomic.Int32
}

func (s *staticLookup) LookupNetIP(context.Context, string, string) ([]netip.Addr, error) {
	s.calls.Add(1)
	return s.addrs, s.err
}

// echoServer accepts connections on 127.0.0.1 and echoes them,
// counting how many were accepted.
func echoServer(t *testing.T) (port uint16, accepted *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted = &atomic.Int32{}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				defer conn.Close()
				io.Copy(conn, conn) //nolint:errcheck
			}()
		}
	}()
	return uint16(ln.Addr().(*net.TCPAddr).Port), accepted
}

func newConnectMode(address string, lookup resolve.Lookuper, ex exchange.Exchange, logger *util.Logger) *ConnectMode {
	return &ConnectMode{
		Address:  address,
		Resolver: &resolve.Resolver{Lookup: lookup},
		Exchange: ex,
		Metrics:  metrics.New(),
		Logger:   logger,
	}
}

func tcpEcho() *exchange.TCPEcho {
	return &exchange.TCPEcho{Dialer: &transport.TCPDialer{Timeout: 2 * time.Second}}
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestConnectMode_TCPEcho verifies the echo round-trip against a
// literal address.
func TestConnectMode_TCPEcho(t *testing.T) {
	port, accepted := echoServer(t)
	lookup := &staticLookup{}

	mode := newConnectMode(fmt.Sprintf("127.0.0.1:%d", port), lookup, tcpEcho(), util.NewLogger(0))
	require.NoError(t, mode.Run(ctxWithTimeout(t)))

	assert.Equal(t, int32(1), accepted.Load())
	assert.Zero(t, lookup.calls.Load(), "literal address must not be looked up")
	assert.Equal(t, int64(1), mode.Metrics.Exchanges())
	assert.Equal(t, int64(1), mode.Metrics.CandidatesAttempted())
}

// TestConnectMode_FallsBackInOrder verifies that a refused candidate
// is skipped and the next one is used.  127.0.0.2 reaches loopback but
// nothing is bound there.
func TestConnectMode_FallsBackInOrder(t *testing.T) {
	port, accepted := echoServer(t)
	lookup := &staticLookup{addrs: []netip.Addr{
		netip.MustParseAddr("127.0.0.2"),
		netip.MustParseAddr("127.0.0.1"),
	}}

	var logs bytes.Buffer
	logger := util.NewLogger(2)
	logger.SetOutput(&logs)

	mode := newConnectMode(fmt.Sprintf("svc.test:%d", port), lookup, tcpEcho(), logger)
	require.NoError(t, mode.Run(ctxWithTimeout(t)))

	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int64(2), mode.Metrics.CandidatesAttempted())
	assert.Equal(t, int64(1), mode.Metrics.CandidatesFailed())
	assert.Contains(t, logs.String(), fmt.Sprintf("127.0.0.2:%d: dial", port),
		"failed candidate should be logged at verbose level")
}

// TestConnectMode_QuietByDefault verifies swallowed failures print
// nothing at the default verbosity.
func TestConnectMode_QuietByDefault(t *testing.T) {
	port, _ := echoServer(t)
	lookup := &staticLookup{addrs: []netip.Addr{
		netip.MustParseAddr("127.0.0.2"),
		netip.MustParseAddr("127.0.0.1"),
	}}

	var logs bytes.Buffer
	logger := util.NewLogger(1)
	logger.SetOutput(&logs)

	mode := newConnectMode(fmt.Sprintf("svc.test:%d", port), lookup, tcpEcho(), logger)
	require.NoError(t, mode.Run(ctxWithTimeout(t)))
	assert.Empty(t, logs.String())
}

func TestConnectMode_Exhaustion(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)
	lookup := &staticLookup{addrs: []netip.Addr{
		netip.MustParseAddr("127.0.0.1"),
		netip.MustParseAddr("127.0.0.2"),
	}}

	mode := newConnectMode(fmt.Sprintf("svc.test:%d", port), lookup, tcpEcho(), util.NewLogger(0))
	err = mode.Run(ctxWithTimeout(t))

	var ee *ncerr.ExhaustionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, lookup.addrs, ee.Candidates)
	assert.Equal(t, uint16(port), ee.Port)
	assert.Equal(t, int64(2), mode.Metrics.CandidatesFailed())
	assert.Equal(t, int64(1), mode.Metrics.ErrorCount())
}

func TestConnectMode_EmptyLookupExhausts(t *testing.T) {
	mode := newConnectMode("svc.test:80", &staticLookup{}, tcpEcho(), util.NewLogger(0))

	var ee *ncerr.ExhaustionError
	require.ErrorAs(t, mode.Run(ctxWithTimeout(t)), &ee)
	assert.Empty(t, ee.Candidates)
}

func TestConnectMode_ResolutionFailureIsFatal(t *testing.T) {
	lookup := &staticLookup{err: fmt.Errorf("no such host")}
	mode := newConnectMode("svc.test:80", lookup, tcpEcho(), util.NewLogger(0))

	var re *ncerr.ResolutionError
	require.ErrorAs(t, mode.Run(ctxWithTimeout(t)), &re)
	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Zero(t, mode.Metrics.CandidatesAttempted())
}

func TestConnectMode_FormatError(t *testing.T) {
	lookup := &staticLookup{}
	mode := newConnectMode("localhost", lookup, tcpEcho(), util.NewLogger(0))

	var fe *ncerr.FormatError
	require.ErrorAs(t, mode.Run(ctxWithTimeout(t)), &fe)
	assert.Zero(t, lookup.calls.Load())
}

// TestConnectMode_MismatchStopsIteration verifies a wrong echo is
// fatal and the remaining candidates are not tried.
func TestConnectMode_MismatchStopsIteration(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			buf := make([]byte, util.ReadBufSize)
			conn.Read(buf)
			conn.Write([]byte("O frabjous day"))
			conn.Close()
		}
	}()

	lookup := &staticLookup{addrs: []netip.Addr{
		netip.MustParseAddr("127.0.0.1"),
		netip.MustParseAddr("127.0.0.1"),
	}}
	port := ln.Addr().(*net.TCPAddr).Port
	mode := newConnectMode(fmt.Sprintf("svc.test:%d", port), lookup, tcpEcho(), util.NewLogger(0))

	var me *ncerr.MismatchError
	require.ErrorAs(t, mode.Run(ctxWithTimeout(t)), &me)
	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int64(1), mode.Metrics.CandidatesAttempted())
}

// TestConnectMode_GatewayFailureStopsIteration verifies a broken SSH
// gateway is contacted once and reported as such, not retried for
// every candidate.
func TestConnectMode_GatewayFailureStopsIteration(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var handshakes atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			handshakes.Add(1)
			conn.Close()
		}
	}()
	t.Setenv("SSH_AUTH_SOCK", "")

	dialer := transport.NewSSHDialer(&tunnel.SSHConfig{
		User:        "test",
		Host:        "127.0.0.1",
		Port:        ln.Addr().(*net.TCPAddr).Port,
		Password:    "secret",
		ConnTimeout: 2 * time.Second,
	}, util.NewLogger(0))

	lookup := &staticLookup{addrs: []netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("10.0.0.3"),
	}}
	mode := newConnectMode("svc.test:9", lookup, &exchange.TCPEcho{Dialer: dialer}, util.NewLogger(0))
	mode.Dialer = dialer
	err = mode.Run(ctxWithTimeout(t))

	var se *ncerr.SSHError
	require.ErrorAs(t, err, &se)
	var ee *ncerr.ExhaustionError
	assert.False(t, errors.As(err, &ee), "gateway failure reported as exhaustion: %v", err)
	assert.Equal(t, int32(1), handshakes.Load())
	assert.Equal(t, int64(1), mode.Metrics.CandidatesAttempted())
	assert.Zero(t, mode.Metrics.CandidatesFailed())
}

func TestConnectMode_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ex := &exchange.Redis{Dialer: &transport.TCPDialer{Timeout: 2 * time.Second}}

	mode := newConnectMode(mr.Addr(), &staticLookup{}, ex, util.NewLogger(0))
	require.NoError(t, mode.Run(ctxWithTimeout(t)))

	got, err := mr.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, "bar", got)
}

// TestConnectMode_AgainstEchoMode runs both halves of the program
// against each other.
func TestConnectMode_AgainstEchoMode(t *testing.T) {
	ctx := ctxWithTimeout(t)
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	echo := &EchoMode{Address: "127.0.0.1:0", Logger: util.NewLogger(0)}
	done := make(chan error, 1)
	go func() { done <- echo.Run(srvCtx) }()
	addr := waitForAddr(t, echo)

	mode := newConnectMode(addr.String(), &staticLookup{}, tcpEcho(), util.NewLogger(0))
	require.NoError(t, mode.Run(ctx))

	stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("echo mode did not shut down")
	}
}

// TestConnectMode_PostgresAgainstEchoMode runs the Postgres exchange
// against the listener's Postgres echo.
func TestConnectMode_PostgresAgainstEchoMode(t *testing.T) {
	ctx := ctxWithTimeout(t)
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &EchoMode{Address: "127.0.0.1:0", Protocol: "postgres", Logger: util.NewLogger(0)}
	done := make(chan error, 1)
	go func() { done <- srv.Run(srvCtx) }()
	addr := waitForAddr(t, srv)

	ex := &exchange.Postgres{
		Dialer:   &transport.TCPDialer{Timeout: 2 * time.Second},
		User:     "test",
		Password: "test",
		Database: "test",
	}
	mode := newConnectMode(addr.String(), &staticLookup{}, ex, util.NewLogger(0))
	require.NoError(t, mode.Run(ctx))

	stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("echo mode did not shut down")
	}
}
