package exchange

import (
	"context"
	"net"
	"net/netip"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/internal/fallback"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
)

// PostgresParam is bound to the single parameter of the Postgres
// exchange's query and must come back as its only column.
const PostgresParam = "hello world"

// postgresQuery is rendered as SELECT $1::TEXT on the wire.
const postgresQuery = "SELECT ?::TEXT"

// Postgres authenticates, runs one parameterised query and checks the
// returned text.
type Postgres struct {
	Dialer   transport.Dialer
	Metrics  *metrics.Collector
	User     string
	Password string
	Database string
}

// Name implements Exchange.
func (e *Postgres) Name() string { return "postgres" }

// ConnString builds the URL form of the connection string for target.
func (e *Postgres) ConnString(target netip.AddrPort) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(e.User, e.Password),
		Host:     target.String(),
		Path:     "/" + e.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// open connects and authenticates.  Any error here counts as a
// connection failure for the candidate unless the dialer itself
// reported a permanent one.
func (e *Postgres) open(ctx context.Context, target netip.AddrPort) (*gorm.DB, func() error, error) {
	cfg, err := pgx.ParseConfig(e.ConnString(target))
	if err != nil {
		return nil, nil, fallback.Permanent(err)
	}
	d := &trackingDialer{Dialer: e.Dialer}
	cfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(ctx, network, addr)
	}

	sqlDB := stdlib.OpenDB(*cfg)
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		sqlDB.Close()
		return nil, nil, d.connectFailure(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, d.connectFailure(err)
	}
	return db, sqlDB.Close, nil
}

// Run implements Exchange.
func (e *Postgres) Run(ctx context.Context, target netip.AddrPort) error {
	db, closeDB, err := e.open(ctx, target)
	if err != nil {
		return err
	}
	defer closeDB()

	var got string
	if err := db.WithContext(ctx).Raw(postgresQuery, PostgresParam).Scan(&got).Error; err != nil {
		return fallback.Permanent(ncerr.Wrap("query", target.String(), err))
	}
	e.Metrics.BytesReceived(int64(len(got)))

	if got != PostgresParam {
		return fallback.Permanent(ncerr.Mismatch(e.Name(), []byte(PostgresParam), []byte(got)))
	}
	return nil
}
