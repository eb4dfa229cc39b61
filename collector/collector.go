// Package collector implements CollectorSink: an optional observer that
// receives a record for every step executed, independent of the engine's
// control flow.
package collector

import (
	"sync"

	"github.com/ruleflow/phlow/id"
	"github.com/ruleflow/phlow/value"
)

// StepRecord is one observed step execution.
type StepRecord struct {
	Pipeline int
	Index    int
	ID       id.ID
	Output   value.Value
	HasError bool
	Err      string
}

// Sink receives step records. Implementations must be safe for concurrent
// use: steps from unrelated requests may record simultaneously.
type Sink interface {
	Record(r StepRecord)
}

// NopSink discards every record; the default when no CollectorSink is
// configured.
type NopSink struct{}

func (NopSink) Record(StepRecord) {}

// RecordingSink accumulates every record in memory, for test assertions.
type RecordingSink struct {
	mu      sync.Mutex
	records []StepRecord
}

// NewRecordingSink builds an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Record(r StepRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a copy of every record seen so far.
func (s *RecordingSink) Records() []StepRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepRecord, len(s.records))
	copy(out, s.records)
	return out
}
