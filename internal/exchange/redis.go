package exchange

import (
	"bytes"
	"context"
	"math"
	"net"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/internal/fallback"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
	"github.com/dicej/wasi-sockets-tests/util"
)

// Key and value written and read back by the Redis exchange.
const (
	RedisKey   = "foo"
	RedisValue = "bar"
)

func init() { SetRedisLogger(nil) }

// redisLogger receives go-redis's internal diagnostics.  A nil Logger
// discards them.
type redisLogger struct{ l *util.Logger }

func (r redisLogger) Printf(_ context.Context, format string, v ...interface{}) {
	if r.l == nil {
		return
	}
	r.l.WithField("client", "go-redis").Debugf(format, v...)
}

// SetRedisLogger routes go-redis's own log lines to l at verbose level.
// The go-redis logger is process-wide.
func SetRedisLogger(l *util.Logger) { redis.SetLogger(redisLogger{l}) }

// Redis runs SET foo bar followed by GET foo and checks the reply.
type Redis struct {
	Dialer   transport.Dialer
	Metrics  *metrics.Collector
	Password string
	DB       int

	// Timeout bounds the dial and each command; zero means none.
	Timeout time.Duration
}

// Name implements Exchange.
func (e *Redis) Name() string { return "redis" }

func (e *Redis) options(target netip.AddrPort, d *trackingDialer) *redis.Options {
	// go-redis substitutes its own defaults for zero timeouts.
	dial, rw := e.Timeout, e.Timeout
	if dial <= 0 {
		dial = time.Duration(math.MaxInt64)
		rw = -1
	}
	return &redis.Options{
		Addr:     target.String(),
		Password: e.Password,
		DB:       e.DB,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(ctx, network, addr)
		},
		DialTimeout:  dial,
		ReadTimeout:  rw,
		WriteTimeout: rw,
		// One dial and one command per candidate.  The pool pauses for
		// DialerRetryTimeout after every failed dial, including the last.
		DialerRetries:      1,
		DialerRetryTimeout: time.Nanosecond,
		MaxRetries:         -1,
		// A pool of one starts a background redial after its first
		// failed dial.
		PoolSize:        2,
		Protocol:        2,
		DisableIdentity: true,
	}
}

// Run implements Exchange.  Failures before any connection was
// established are returned as-is so the next candidate is tried.
func (e *Redis) Run(ctx context.Context, target netip.AddrPort) error {
	d := &trackingDialer{Dialer: e.Dialer}
	client := redis.NewClient(e.options(target, d))
	defer client.Close()

	if err := client.Set(ctx, RedisKey, RedisValue, 0).Err(); err != nil {
		return d.classify(err)
	}
	e.Metrics.BytesSent(int64(len(RedisKey) + len(RedisValue)))

	got, err := client.Get(ctx, RedisKey).Bytes()
	if err != nil {
		return d.classify(err)
	}
	e.Metrics.BytesReceived(int64(len(got)))

	if !bytes.Equal(got, []byte(RedisValue)) {
		return fallback.Permanent(ncerr.Mismatch(e.Name(), []byte(RedisValue), got))
	}
	return nil
}
