// Package fallback implements the "try each candidate once, in order,
// stop at the first success" policy shared by every exchange.
//
// The policy performs no I/O itself.  The attempt callback does the
// dialing and the exchange; fallback only decides whether to move on.
package fallback

import (
	"context"
	"errors"
	"net/netip"

	ncerr "github.com/dicej/wasi-sockets-tests/internal/errors"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that trying another
// candidate will not help.  Return [Permanent](err) from an attempt to
// stop the loop immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as fatal for the whole run.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Policy ───────────────────────────────────────────────────────────

// AttemptFunc connects to one candidate and, on success, runs the
// exchange against it.
type AttemptFunc[T any] func(ctx context.Context, target netip.AddrPort) (T, error)

// Options tunes Try.  The zero value is silent.
type Options struct {
	// OnFailure observes each swallowed per-candidate failure.
	OnFailure func(target netip.AddrPort, err error)
	// OnAttempt is called before each candidate is tried.
	OnAttempt func(target netip.AddrPort)
}

// Try calls attempt for each candidate in order until one succeeds.
//
// Ordinary errors are swallowed and the next candidate is tried.  An
// error marked with [Permanent] ends the run and is returned unwrapped.
// When every candidate fails the result is an *errors.ExhaustionError
// listing all of them.
func Try[T any](ctx context.Context, candidates []netip.Addr, port uint16, attempt AttemptFunc[T], opts *Options) (T, error) {
	var zero T
	if opts == nil {
		opts = &Options{}
	}

	for _, addr := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		target := netip.AddrPortFrom(addr, port)
		if opts.OnAttempt != nil {
			opts.OnAttempt(target)
		}

		result, err := attempt(ctx, target)
		if err == nil {
			return result, nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return zero, pe.Err
		}
		if opts.OnFailure != nil {
			opts.OnFailure(target, err)
		}
	}

	tried := make([]netip.Addr, len(candidates))
	copy(tried, candidates)
	return zero, &ncerr.ExhaustionError{Candidates: tried, Port: port}
}
