package store

import (
	"sync"
	"sync/atomic"

	"bms-gateway/internal/protocol/ifsbms"
)

// Stats are the global protocol counters updated on the ingest hot path.
// Counters are 32-bit and monotone within a process lifetime; readers only
// display them, so they are plain atomics with no cross-counter snapshot
// guarantee.
type Stats struct {
	totalFrames      atomic.Uint32
	successfulParses atomic.Uint32
	parseErrors      atomic.Uint32
	invalidFrames    atomic.Uint32
	unknownMux       atomic.Uint32
	frameTypeCounts  [ifsbms.FrameTypeCount]atomic.Uint32

	mu        sync.Mutex
	lastError LastError
	hasError  bool
}

// LastError is the most recent rejection, kept for diagnostics.
type LastError struct {
	NodeID      uint8
	Frame       ifsbms.FrameType
	Kind        ifsbms.ErrorKind
	Detail      uint16
	TimestampMs int64
}

func NewStats() *Stats {
	return &Stats{}
}

// OnFrame counts every frame entering the pipeline.
func (s *Stats) OnFrame() { s.totalFrames.Add(1) }

// OnAccepted counts a classified frame, pre-validation.
func (s *Stats) OnAccepted(ft ifsbms.FrameType) { s.frameTypeCounts[ft].Add(1) }

// OnSuccess counts a committed parse.
func (s *Stats) OnSuccess() { s.successfulParses.Add(1) }

// OnUnknownMux counts an out-of-table 0x490 selector. Informational, not
// an error.
func (s *Stats) OnUnknownMux() { s.unknownMux.Add(1) }

// OnParseError counts a rejected frame and records it as the last error.
func (s *Stats) OnParseError(e *ifsbms.ParseError, nowMs int64) {
	s.parseErrors.Add(1)
	s.record(e, nowMs)
}

// OnInvalidFrame counts a classifier rejection.
func (s *Stats) OnInvalidFrame(e *ifsbms.ParseError, nowMs int64) {
	s.invalidFrames.Add(1)
	s.record(e, nowMs)
}

func (s *Stats) record(e *ifsbms.ParseError, nowMs int64) {
	s.mu.Lock()
	s.lastError = LastError{
		NodeID:      e.NodeID,
		Frame:       e.Frame,
		Kind:        e.Kind,
		Detail:      e.Detail,
		TimestampMs: nowMs,
	}
	s.hasError = true
	s.mu.Unlock()
}

// LastError returns the most recent rejection, if any.
func (s *Stats) LastError() (LastError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError, s.hasError
}

// StatsSnapshot is a display copy of the counters.
type StatsSnapshot struct {
	TotalFrames      uint32
	SuccessfulParses uint32
	ParseErrors      uint32
	InvalidFrames    uint32
	UnknownMux       uint32
	FrameTypeCounts  [ifsbms.FrameTypeCount]uint32
}

// Snapshot copies the counters. Individual loads are atomic; the set as a
// whole is not, which is fine for display.
func (s *Stats) Snapshot() StatsSnapshot {
	var out StatsSnapshot
	out.TotalFrames = s.totalFrames.Load()
	out.SuccessfulParses = s.successfulParses.Load()
	out.ParseErrors = s.parseErrors.Load()
	out.InvalidFrames = s.invalidFrames.Load()
	out.UnknownMux = s.unknownMux.Load()
	for i := range out.FrameTypeCounts {
		out.FrameTypeCounts[i] = s.frameTypeCounts[i].Load()
	}
	return out
}

// Reset zeroes every counter and clears the last error. Bound to the
// global reset-stats coil.
func (s *Stats) Reset() {
	s.totalFrames.Store(0)
	s.successfulParses.Store(0)
	s.parseErrors.Store(0)
	s.invalidFrames.Store(0)
	s.unknownMux.Store(0)
	for i := range s.frameTypeCounts {
		s.frameTypeCounts[i].Store(0)
	}
	s.mu.Lock()
	s.lastError = LastError{}
	s.hasError = false
	s.mu.Unlock()
}
