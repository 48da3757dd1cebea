package errors

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "dial",
			err:  NetworkError{Op: "dial", Addr: "example.com:80", Err: io.EOF},
			want: "dial example.com:80: EOF",
		},
		{
			name: "read",
			err:  NetworkError{Op: "read", Addr: "127.0.0.1:9000", Err: fmt.Errorf("reset")},
			want: "read 127.0.0.1:9000: reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !errors.Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	err := ConfigError{
		Field:   "protocol",
		Value:   "smtp",
		Message: "unknown protocol",
		Hint:    "use tcp, redis or postgres",
	}
	want := "config: --protocol=smtp: unknown protocol\n  hint: use tcp, redis or postgres"
	if got := err.Error(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestExhaustionError_NamesCandidates(t *testing.T) {
	err := &ExhaustionError{
		Candidates: []netip.Addr{
			netip.MustParseAddr("127.0.0.1"),
			netip.MustParseAddr("::1"),
		},
		Port: 9000,
	}
	want := "unable to connect to [127.0.0.1 ::1] on port 9000"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatError_Unwrap(t *testing.T) {
	err := &FormatError{Input: "localhost", Err: ErrMissingPort}
	if !errors.Is(err, ErrMissingPort) {
		t.Error("should unwrap to ErrMissingPort")
	}
	if got := err.Error(); got != `invalid address "localhost": missing port separator` {
		t.Errorf("got %q", got)
	}
}

func TestMismatch(t *testing.T) {
	err := Mismatch("redis", []byte("bar"), []byte("baz"))
	want := `redis: response mismatch: want "bar", got "baz"`
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsDialFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", Wrap("dial", "x", io.EOF), true},
		{"wrapped dial", fmt.Errorf("redis: %w", Wrap("dial", "x", io.EOF)), true},
		{"read", Wrap("read", "x", io.EOF), false},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDialFailure(tt.err); got != tt.want {
				t.Errorf("IsDialFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{ErrNotConnected, ErrAuthFailed, ErrHostKeyMismatch, ErrMissingPort}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
