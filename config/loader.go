package config

// loader.go - configuration loading from the environment and .env files.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. .env file  (godotenv)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
)

// lookupFunc reports the value of an environment-style key.
type lookupFunc func(key string) (string, bool)

// Load overlays envFile and then the process environment onto cfg.  A
// missing envFile is not an error; an unreadable one is.  An empty
// envFile reads the environment only.  Only non-empty variables
// override the existing value.  The process environment is never
// modified.  Call it before flag parsing so that flags take precedence.
func Load(cfg *Config, envFile string) error {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return &ncerr.ConfigError{
				Field:   "env-file",
				Value:   envFile,
				Message: err.Error(),
				Hint:    "expected KEY=value lines",
			}
		}
	}

	applyEnv(cfg, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	})
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported variable uses the SOCKETS_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && isTrue(v) {
			*dst = true
		}
	}
	num := func(name string) (int, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		return n, err == nil
	}

	str("ADDRESS", &cfg.Address)
	str("PROTOCOL", &cfg.Protocol)
	flag("LISTEN", &cfg.Listen)
	if v, ok := num("PORT"); ok && v > 0 {
		cfg.LocalPort = v
	}
	if v, ok := num("TIMEOUT"); ok && v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// SSH tunnel
	str("TUNNEL", &cfg.TunnelSpec)
	str("SSH_KEY", &cfg.SSHKeyPath)
	str("SSH_PASSWORD", &cfg.SSHPass)
	flag("SSH_AGENT", &cfg.UseSSHAgent)
	flag("STRICT_HOSTKEY", &cfg.StrictHostKey)
	str("KNOWN_HOSTS", &cfg.KnownHostsPath)

	// Redis
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	if v, ok := num("REDIS_DB"); ok {
		cfg.RedisDB = v
	}

	// Postgres
	str("PG_USER", &cfg.PGUser)
	str("PG_PASSWORD", &cfg.PGPassword)
	str("PG_DATABASE", &cfg.PGDatabase)

	// Output
	if v, ok := num("VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func isTrue(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
