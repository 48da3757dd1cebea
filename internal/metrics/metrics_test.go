package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Candidates(t *testing.T) {
	c := New()

	c.CandidateAttempted()
	c.CandidateFailed()
	c.CandidateAttempted()
	c.ExchangeCompleted()

	if c.CandidatesAttempted() != 2 {
		t.Errorf("attempted = %d, want 2", c.CandidatesAttempted())
	}
	if c.CandidatesFailed() != 1 {
		t.Errorf("failed = %d, want 1", c.CandidatesFailed())
	}
	if c.Exchanges() != 1 {
		t.Errorf("exchanges = %d, want 1", c.Exchanges())
	}
}

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalConnections())
	}
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.BytesSent(31)
	c.BytesReceived(31)
	c.BytesReceived(2)

	if c.TotalBytesIn() != 33 {
		t.Errorf("bytes in = %d, want 33", c.TotalBytesIn())
	}
	if c.TotalBytesOut() != 31 {
		t.Errorf("bytes out = %d, want 31", c.TotalBytesOut())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if s := c.Snapshot(); s.LastErrorMessage != "second error" {
		t.Errorf("last error = %q", s.LastErrorMessage)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.CandidateAttempted()
	c.CandidateFailed()
	c.ExchangeCompleted()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.BytesSent(1)
	c.BytesReceived(1)
	c.RecordError("x")

	if c.CandidatesAttempted() != 0 || c.ErrorCount() != 0 || c.TotalBytesIn() != 0 {
		t.Error("nil collector should report zeros")
	}
	if c.Snapshot() != (Snapshot{}) {
		t.Error("nil snapshot should be empty")
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.CandidateAttempted()
	c.BytesSent(31)

	var s Snapshot
	if err := json.Unmarshal([]byte(c.JSON()), &s); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if s.CandidatesAttempted != 1 || s.BytesOut != 31 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ConnectionOpened()
			c.BytesReceived(10)
			c.ConnectionClosed()
		}()
	}
	wg.Wait()

	if c.TotalConnections() != 50 {
		t.Errorf("total = %d, want 50", c.TotalConnections())
	}
	if c.ActiveConnections() != 0 {
		t.Errorf("active = %d, want 0", c.ActiveConnections())
	}
	if c.TotalBytesIn() != 500 {
		t.Errorf("bytes in = %d, want 500", c.TotalBytesIn())
	}
}
