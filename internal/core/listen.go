package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/dicej/wasi-sockets-tests/config"
	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/pgecho"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
	"github.com/dicej/wasi-sockets-tests/util"
)

// EchoMode accepts TCP connections and writes every chunk it reads
// back to the sender until the peer half-closes.  With Protocol set to
// postgres it answers the Postgres exchange's query instead.  Each
// connection is served on its own goroutine.
type EchoMode struct {
	Address  string // ":port"
	Protocol string
	Metrics  *metrics.Collector
	Logger   *util.Logger

	mu   sync.Mutex
	addr net.Addr
}

// Addr returns the bound listener address once Run has started, or
// nil before that.
func (m *EchoMode) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Run listens until ctx is cancelled.  It waits for in-flight
// connections to finish before returning.
func (m *EchoMode) Run(ctx context.Context) error {
	ln, err := transport.Listen("tcp", m.Address)
	if err != nil {
		return ncerr.Wrap("listen", m.Address, err)
	}
	defer ln.Close()

	m.mu.Lock()
	m.addr = ln.Addr()
	m.mu.Unlock()

	m.Logger.Verbose("echoing %s on %s", m.protocol(), ln.Addr())

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		m.Logger.Verbose("connection from %s", conn.RemoteAddr())
		m.Metrics.ConnectionOpened()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer m.Metrics.ConnectionClosed()
			if err := m.serveConn(ctx, conn); err != nil {
				m.Metrics.RecordError(err.Error())
				m.Logger.Warn("%s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func (m *EchoMode) protocol() string {
	if m.Protocol == "" {
		return config.ProtocolTCP
	}
	return m.Protocol
}

func (m *EchoMode) serveConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if m.protocol() == config.ProtocolPostgres {
		if err := (&pgecho.Handler{}).Serve(conn); err != nil && ctx.Err() == nil {
			return fmt.Errorf("postgres %s: %w", conn.RemoteAddr(), err)
		}
		return nil
	}
	return m.echo(ctx, conn)
}

// echo copies chunks of at most util.ReadBufSize bytes back to conn.
func (m *EchoMode) echo(ctx context.Context, conn net.Conn) error {
	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	peer := conn.RemoteAddr().String()
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			m.Metrics.BytesReceived(int64(n))
			w, werr := conn.Write(buf[:n])
			m.Metrics.BytesSent(int64(w))
			if werr != nil {
				return ncerr.Wrap("write", peer, werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return ncerr.Wrap("read", peer, err)
		}
	}
}
