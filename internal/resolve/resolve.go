// Package resolve turns a "host:port" argument into an ordered list of
// candidate IP addresses and a port.
package resolve

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"strings"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
)

// Kind says how the host part of an address spec was written.
type Kind int

const (
	// Literal is a numeric IPv4 or IPv6 address.
	Literal Kind = iota
	// Hostname must go through name resolution.
	Hostname
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Hostname:
		return "hostname"
	default:
		return "unknown"
	}
}

// Host is the classified host part of an address spec.  Addr is set
// for Literal, Name for Hostname.
type Host struct {
	Kind Kind
	Addr netip.Addr
	Name string
}

// ClassifyHost decides whether host is an IP literal.  It never fails:
// anything that does not parse as an address is a hostname.
func ClassifyHost(host string) Host {
	if addr, err := netip.ParseAddr(host); err == nil {
		return Host{Kind: Literal, Addr: addr}
	}
	return Host{Kind: Hostname, Name: host}
}

// Spec is a parsed "host:port" argument.
type Spec struct {
	Input string
	Host  Host
	Port  uint16
}

// Parse splits input on its last colon.  One pair of surrounding
// brackets is removed from the host before classification.
func Parse(input string) (Spec, error) {
	i := strings.LastIndexByte(input, ':')
	if i < 0 {
		return Spec{}, &ncerr.FormatError{Input: input, Err: ncerr.ErrMissingPort}
	}
	host, portStr := input[:i], input[i+1:]

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Spec{}, &ncerr.FormatError{Input: input, Err: err}
	}

	if len(host) >= 2 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}

	return Spec{Input: input, Host: ClassifyHost(host), Port: uint16(port)}, nil
}

// Candidates is the ordered result of resolving a Spec.
type Candidates struct {
	Addrs []netip.Addr
	Port  uint16
}

// AddrPorts pairs every candidate address with the port.
func (c Candidates) AddrPorts() []netip.AddrPort {
	out := make([]netip.AddrPort, len(c.Addrs))
	for i, a := range c.Addrs {
		out[i] = netip.AddrPortFrom(a, c.Port)
	}
	return out
}

// Lookuper performs name resolution.  *net.Resolver satisfies it.
type Lookuper interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolver produces candidate lists.  The zero value uses
// net.DefaultResolver.
type Resolver struct {
	Lookup Lookuper
}

func (r *Resolver) lookuper() Lookuper {
	if r != nil && r.Lookup != nil {
		return r.Lookup
	}
	return net.DefaultResolver
}

// Resolve returns the candidates for spec.  A literal yields exactly
// itself without touching the lookup backend; a hostname yields every
// address the backend returns, in its order.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (Candidates, error) {
	switch spec.Host.Kind {
	case Literal:
		return Candidates{Addrs: []netip.Addr{spec.Host.Addr}, Port: spec.Port}, nil
	default:
		addrs, err := r.lookuper().LookupNetIP(ctx, "ip", spec.Host.Name)
		if err != nil {
			return Candidates{}, &ncerr.ResolutionError{Host: spec.Host.Name, Err: err}
		}
		return Candidates{Addrs: addrs, Port: spec.Port}, nil
	}
}

// ParseAndResolve is Parse followed by Resolve.
func (r *Resolver) ParseAndResolve(ctx context.Context, input string) (Candidates, error) {
	spec, err := Parse(input)
	if err != nil {
		return Candidates{}, err
	}
	return r.Resolve(ctx, spec)
}
