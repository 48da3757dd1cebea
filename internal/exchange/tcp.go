package exchange

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/netip"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/internal/fallback"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
	"github.com/dicej/wasi-sockets-tests/util"
)

// EchoMessage is written by the TCP exchange and must come back
// unchanged.
const EchoMessage = "So rested he by the Tumtum tree"

// TCPEcho writes EchoMessage on a raw TCP stream and expects the peer
// to echo it back.
type TCPEcho struct {
	Dialer  transport.Dialer
	Metrics *metrics.Collector

	// Message overrides EchoMessage when non-empty.
	Message []byte
}

// Name implements Exchange.
func (e *TCPEcho) Name() string { return "tcp" }

func (e *TCPEcho) message() []byte {
	if len(e.Message) > 0 {
		return e.Message
	}
	return []byte(EchoMessage)
}

// Run dials target, writes the message, reads one chunk of at most
// 1024 bytes and compares.  The write side is half-closed before the
// connection is released.  Cancelling ctx closes the connection.
func (e *TCPEcho) Run(ctx context.Context, target netip.AddrPort) error {
	addr := target.String()
	conn, err := e.Dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	msg := e.message()
	n, err := conn.Write(msg)
	e.Metrics.BytesSent(int64(n))
	if err != nil {
		return e.ioFailure(ctx, "write", addr, err)
	}

	buf := make([]byte, util.ReadBufSize)
	n, err = conn.Read(buf)
	e.Metrics.BytesReceived(int64(n))
	if err != nil && !errors.Is(err, io.EOF) {
		return e.ioFailure(ctx, "read", addr, err)
	}

	if got := buf[:n]; !bytes.Equal(got, msg) {
		return fallback.Permanent(ncerr.Mismatch(e.Name(), msg, got))
	}

	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite() //nolint:errcheck
	}
	return nil
}

// ioFailure reports a cancelled ctx in place of the error its closing
// of the connection caused.
func (e *TCPEcho) ioFailure(ctx context.Context, op, addr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fallback.Permanent(ctxErr)
	}
	return fallback.Permanent(ncerr.Wrap(op, addr, err))
}
