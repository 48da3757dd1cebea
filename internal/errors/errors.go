// Package errors provides domain-specific error types for sockets-client.
//
// These types carry structured context (operation, address, candidates)
// so callers can tell a swallowable connection failure apart from a
// fatal one, and so the final message names what was actually tried.
package errors

import (
	"errors"
	"fmt"
	"net/netip"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotConnected    = errors.New("not connected")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
	ErrMissingPort     = errors.New("missing port separator")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op   string // operation: "dial", "listen", "accept", "write", "read"
	Addr string // network address involved
	Err  error  // underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// UsageError is returned when the command line has the wrong shape.
// Its message is the usage line itself.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return e.Usage }

// FormatError reports a malformed address spec.
type FormatError struct {
	Input string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Input, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ResolutionError reports a hostname that could not be looked up.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unable to resolve %q: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ExhaustionError means every candidate was tried and none connected.
type ExhaustionError struct {
	Candidates []netip.Addr
	Port       uint16
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("unable to connect to %v on port %d", e.Candidates, e.Port)
}

// MismatchError reports a response that differs from what was sent or
// stored.
type MismatchError struct {
	Exchange string
	Want     []byte
	Got      []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: response mismatch: want %q, got %q", e.Exchange, e.Want, e.Got)
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Mismatch creates a MismatchError.
func Mismatch(exchange string, want, got []byte) *MismatchError {
	return &MismatchError{Exchange: exchange, Want: want, Got: got}
}

// ── Classification helpers ───────────────────────────────────────────

// IsDialFailure reports whether err came from establishing a
// connection, as opposed to using one.
func IsDialFailure(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Op == "dial"
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }
