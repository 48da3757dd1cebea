// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/dicej/wasi-sockets-tests/config"
	"github.com/dicej/wasi-sockets-tests/internal/core"
	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
	"github.com/dicej/wasi-sockets-tests/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/dicej/wasi-sockets-tests/cmd.version=1.0.0"
var version = "0.1.0" //nolint:gochecknoglobals

// Usage is the one-line usage printed for a malformed command line.
const Usage = "usage: sockets-client <address>:<port>"

// Exit statuses returned by [Report].
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = -1
)

// Execute parses args and runs the selected mode, printing help and
// version output to stdout and diagnostics to stderr.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.New()

	envFile := os.Getenv(config.EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = config.DefaultEnvFile
	}
	if err := config.Load(cfg, envFile); err != nil {
		return err
	}

	fs := flag.NewFlagSet("sockets-client", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&cfg.Protocol, "protocol", "P", cfg.Protocol, "Exchange to run: tcp, redis or postgres")
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Run the echo listener for tcp or postgres")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Listen port (with -l)")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Per-candidate connect timeout in seconds (0 = none)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── backends ─────────────────────────────────────────────────
	fs.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis AUTH password")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database index")
	fs.StringVar(&cfg.PGUser, "pg-user", cfg.PGUser, "Postgres user")
	fs.StringVar(&cfg.PGPassword, "pg-password", cfg.PGPassword, "Postgres password")
	fs.StringVar(&cfg.PGDatabase, "pg-database", cfg.PGDatabase, "Postgres database")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs, stderr) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs, stdout)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "sockets-client %s\n", version)
		return nil
	}

	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec & validation ─────────────────────────────────
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		printConfig(cfg, stdout)
		return nil
	}

	// ── build & run ──────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// Report prints err the way the command line expects and returns the
// process exit status.
func Report(err error, stderr io.Writer) int {
	if err == nil {
		return ExitOK
	}
	var ue *ncerr.UsageError
	if ncerr.As(err, &ue) {
		fmt.Fprintln(stderr, ue.Usage)
		return ExitUsage
	}
	fmt.Fprintf(stderr, "sockets-client: %v\n", err)
	return ExitError
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional accepts exactly one <address>:<port> in connect mode
// (or none when SOCKETS_ADDRESS supplied it) and nothing in listen
// mode.
func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) != 0 {
			return &ncerr.UsageError{Usage: Usage}
		}
		return nil
	}

	switch {
	case len(remaining) == 1:
		cfg.Address = remaining[0]
	case len(remaining) == 0 && cfg.Address != "":
	default:
		return &ncerr.UsageError{Usage: Usage}
	}
	return nil
}

func printConfig(cfg *config.Config, w io.Writer) {
	if cfg.Listen {
		fmt.Fprintf(w, "mode: echo\nport: %d\n", cfg.LocalPort)
		return
	}
	fmt.Fprintf(w, "mode: connect\naddress: %s\nprotocol: %s\n", cfg.Address, cfg.Protocol)
	if cfg.Timeout > 0 {
		fmt.Fprintf(w, "timeout: %s\n", cfg.Timeout)
	}
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel: %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `sockets-client v%s

Connects to every address a host resolves to, in order, until one
completes a verified exchange.

Usage:
  sockets-client [options] <address>:<port>          Connect
  sockets-client -l -p <port> [-P postgres]         Echo listener
  sockets-client -T user@gateway <address>:<port>    Connect via SSH

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  sockets-client 127.0.0.1:9000                      TCP echo
  sockets-client -P redis localhost:6379             SET foo bar / GET foo
  sockets-client -P postgres [::1]:5432              SELECT $1::TEXT
  sockets-client -l -p 9000                          Serve the echo
`)
}
