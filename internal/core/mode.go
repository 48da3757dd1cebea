// Package core is the orchestration layer.  It composes the resolver,
// the fallback policy, dialers and exchanges into complete operational
// modes, and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	resolve, transport  →  exchange, fallback  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of sockets-client (connect or
// echo).  Each mode owns its full lifecycle from setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
