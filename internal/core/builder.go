package core

import (
	"fmt"

	"github.com/dicej/wasi-sockets-tests/config"
	"github.com/dicej/wasi-sockets-tests/internal/exchange"
	"github.com/dicej/wasi-sockets-tests/internal/metrics"
	"github.com/dicej/wasi-sockets-tests/internal/resolve"
	"github.com/dicej/wasi-sockets-tests/internal/transport"
	"github.com/dicej/wasi-sockets-tests/tunnel"
	"github.com/dicej/wasi-sockets-tests/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	m := metrics.New()
	if cfg.Listen {
		return &EchoMode{
			Address:  fmt.Sprintf(":%d", cfg.LocalPort),
			Protocol: cfg.Protocol,
			Metrics:  m,
			Logger:   logger,
		}, nil
	}
	return buildConnect(cfg, m, logger)
}

func buildConnect(cfg *config.Config, m *metrics.Collector, logger *util.Logger) (Mode, error) {
	dialer := buildDialer(cfg, logger)
	ex, err := buildExchange(cfg, dialer, m, logger)
	if err != nil {
		dialer.Close()
		return nil, err
	}
	return &ConnectMode{
		Address:  cfg.Address,
		Resolver: &resolve.Resolver{},
		Exchange: ex,
		Dialer:   dialer,
		Metrics:  m,
		Logger:   logger,
	}, nil
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			Password:      cfg.SSHPass,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger)
	}
	return transport.Default(cfg.Timeout)
}

// buildExchange selects the per-candidate conversation.
func buildExchange(cfg *config.Config, d transport.Dialer, m *metrics.Collector, logger *util.Logger) (exchange.Exchange, error) {
	switch cfg.Protocol {
	case config.ProtocolTCP, "":
		return &exchange.TCPEcho{Dialer: d, Metrics: m}, nil
	case config.ProtocolRedis:
		exchange.SetRedisLogger(logger)
		return &exchange.Redis{
			Dialer:   d,
			Metrics:  m,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.Timeout,
		}, nil
	case config.ProtocolPostgres:
		return &exchange.Postgres{
			Dialer:   d,
			Metrics:  m,
			User:     cfg.PGUser,
			Password: cfg.PGPassword,
			Database: cfg.PGDatabase,
		}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", cfg.Protocol)
	}
}
