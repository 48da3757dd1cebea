// Package config defines the runtime configuration for sockets-client
// and provides helpers for parsing tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
)

// Exchange protocols selectable with --protocol.
const (
	ProtocolTCP      = "tcp"
	ProtocolRedis    = "redis"
	ProtocolPostgres = "postgres"
)

// Protocols lists every supported exchange protocol.
func Protocols() []string {
	return []string{ProtocolTCP, ProtocolRedis, ProtocolPostgres}
}

// Config holds every tuneable for a single sockets-client run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Address   string // positional <address>:<port>
	Protocol  string
	Listen    bool
	LocalPort int // -p: echo listener port
	Timeout   time.Duration

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool   // true → prompt interactively
	SSHPass        string // non-interactive password from the environment
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Redis ────────────────────────────────────────────────────────
	RedisPassword string
	RedisDB       int

	// ── Postgres ─────────────────────────────────────────────────────
	PGUser     string
	PGPassword string
	PGDatabase string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// New returns a Config populated with the defaults.
func New() *Config {
	return &Config{
		Protocol:   DefaultProtocol,
		PGUser:     DefaultPGUser,
		PGPassword: DefaultPGPassword,
		PGDatabase: DefaultPGDatabase,
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, if set, into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use -T user@gateway or -T user@gateway:2222",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !validProtocol(c.Protocol) {
		return &ncerr.ConfigError{
			Field:   "protocol",
			Value:   c.Protocol,
			Message: "unknown protocol",
			Hint:    fmt.Sprintf("choose one of %v", Protocols()),
		}
	}

	if c.Listen {
		if c.LocalPort < 1 || c.LocalPort > 65535 {
			return &ncerr.ConfigError{
				Field:   "port",
				Value:   c.LocalPort,
				Message: "listen mode requires a port in 1-65535",
				Hint:    "sockets-client -l -p 9000",
			}
		}
		if c.Protocol == ProtocolRedis {
			return &ncerr.ConfigError{
				Field:   "protocol",
				Value:   c.Protocol,
				Message: "listen mode serves tcp or postgres",
			}
		}
		if c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "listen mode through an SSH tunnel is not supported",
			}
		}
	}

	if c.Timeout < 0 {
		return &ncerr.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "timeout must not be negative",
			Hint:    "omit -w to wait indefinitely",
		}
	}

	if c.RedisDB < 0 {
		return &ncerr.ConfigError{
			Field:   "redis-db",
			Value:   c.RedisDB,
			Message: "database index must not be negative",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "tunnel host is required",
		}
	}

	return nil
}

func validProtocol(p string) bool {
	for _, known := range Protocols() {
		if p == known {
			return true
		}
	}
	return false
}
