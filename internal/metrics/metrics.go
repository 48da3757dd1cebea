// Package metrics provides lock-free counters for a single
// sockets-client run: candidates tried, bytes moved, connections
// served by the echo listener.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one run.
type Collector struct {
	candidatesAttempted atomic.Int64
	candidatesFailed    atomic.Int64
	exchanges           atomic.Int64
	connectionsActive   atomic.Int64
	connectionsTotal    atomic.Int64
	bytesIn             atomic.Int64
	bytesOut            atomic.Int64
	errorsTotal         atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Candidate metrics ────────────────────────────────────────────────

// CandidateAttempted records a connection attempt to one candidate.
func (c *Collector) CandidateAttempted() {
	if c == nil {
		return
	}
	c.candidatesAttempted.Add(1)
}

// CandidateFailed records a swallowed per-candidate failure.
func (c *Collector) CandidateFailed() {
	if c == nil {
		return
	}
	c.candidatesFailed.Add(1)
}

// ExchangeCompleted records a verified round-trip.
func (c *Collector) ExchangeCompleted() {
	if c == nil {
		return
	}
	c.exchanges.Add(1)
}

// CandidatesAttempted returns how many candidates were tried.
func (c *Collector) CandidatesAttempted() int64 {
	if c == nil {
		return 0
	}
	return c.candidatesAttempted.Load()
}

// CandidatesFailed returns how many candidates failed.
func (c *Collector) CandidatesFailed() int64 {
	if c == nil {
		return 0
	}
	return c.candidatesFailed.Load()
}

// Exchanges returns the number of completed exchanges.
func (c *Collector) Exchanges() int64 {
	if c == nil {
		return 0
	}
	return c.exchanges.Load()
}

// ── Connection metrics (echo listener) ───────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime              string `json:"uptime"`
	CandidatesAttempted int64  `json:"candidates_attempted"`
	CandidatesFailed    int64  `json:"candidates_failed"`
	Exchanges           int64  `json:"exchanges"`
	ConnectionsActive   int64  `json:"connections_active"`
	ConnectionsTotal    int64  `json:"connections_total"`
	BytesIn             int64  `json:"bytes_in"`
	BytesOut            int64  `json:"bytes_out"`
	ErrorsTotal         int64  `json:"errors_total"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorMessage    string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:              time.Since(c.startTime).Truncate(time.Millisecond).String(),
		CandidatesAttempted: c.candidatesAttempted.Load(),
		CandidatesFailed:    c.candidatesFailed.Load(),
		Exchanges:           c.exchanges.Load(),
		ConnectionsActive:   c.connectionsActive.Load(),
		ConnectionsTotal:    c.connectionsTotal.Load(),
		BytesIn:             c.bytesIn.Load(),
		BytesOut:            c.bytesOut.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
