package store

import (
	"bms-gateway/internal/protocol/ifsbms"
)

// DefaultNodeTimeoutMs marks a node offline after ten seconds without any
// frame.
const DefaultNodeTimeoutMs = 10_000

// Timeouts carries the per-frame staleness windows plus the node-level
// timeout, all in milliseconds. Evaluation takes a caller-supplied now so
// it stays deterministic under test.
type Timeouts struct {
	FrameMs [ifsbms.FrameTypeCount]int64
	NodeMs  int64
}

// DefaultTimeouts is three nominal periods per frame type.
func DefaultTimeouts() Timeouts {
	var t Timeouts
	for _, ft := range ifsbms.FrameTypes {
		t.FrameMs[ft] = ft.DefaultTimeoutMs()
	}
	t.NodeMs = DefaultNodeTimeoutMs
	return t
}

// FrameFresh reports whether a frame last seen at lastSeenMs is still
// fresh at nowMs. A never-seen frame (zero timestamp) is never fresh.
func FrameFresh(lastSeenMs, nowMs, timeoutMs int64) bool {
	if lastSeenMs == 0 {
		return false
	}
	return nowMs-lastSeenMs < timeoutMs
}

// Liveness is the derived freshness image of one node at one instant.
type Liveness struct {
	CommOK        bool
	CriticalStale bool
	FrameFresh    [ifsbms.FrameTypeCount]bool
}

// Evaluate derives the liveness flags of a node snapshot at nowMs.
// CommOK is recomputed from the node timestamp on every read; the stored
// CommunicationOK flag is only the set-on-receipt edge.
func (t Timeouts) Evaluate(st *NodeState, nowMs int64) Liveness {
	var l Liveness
	if st.Seen {
		l.CommOK = nowMs-st.LastUpdateMs < t.NodeMs
	}
	for _, ft := range ifsbms.FrameTypes {
		fresh := FrameFresh(st.FrameSeenMs[ft], nowMs, t.FrameMs[ft])
		l.FrameFresh[ft] = fresh
		if !fresh && ft.Critical() {
			l.CriticalStale = true
		}
	}
	return l
}
