package store

import (
	"sync"

	"bms-gateway/internal/protocol/ifsbms"
)

// Store holds the sixteen node slots shared between the ingest actor
// (writer) and the Modbus actor (reader). Each slot has its own RWMutex so
// a reader always observes a state equal to the state after some whole
// number of parser commits for that node. Statistics counters live outside
// the slot locks; they are monotone and a torn read only affects display.
type Store struct {
	slots [ifsbms.MaxNodes]slot
	stats *Stats
}

type slot struct {
	mu    sync.RWMutex
	state NodeState
}

// New creates a zeroed store. There is no persistence: every field starts
// at zero/false on each process start.
func New() *Store {
	return &Store{stats: NewStats()}
}

// Stats returns the protocol statistics singleton.
func (s *Store) Stats() *Stats {
	return s.stats
}

func (s *Store) slotFor(node uint8) *slot {
	if node < 1 || node > ifsbms.MaxNodes {
		return nil
	}
	return &s.slots[node-1]
}

// Get returns a snapshot copy of a node that has received at least one
// frame. The bool is false for an out-of-range id or a never-seen slot.
func (s *Store) Get(node uint8) (NodeState, bool) {
	sl := s.slotFor(node)
	if sl == nil {
		return NodeState{}, false
	}
	sl.mu.RLock()
	st := sl.state
	sl.mu.RUnlock()
	if !st.Seen {
		return NodeState{}, false
	}
	return st, true
}

// Snapshot returns a copy of the slot whether or not it has ever received
// a frame. The bool is false only for an out-of-range id. The projection
// layer uses this: register reads must succeed for silent nodes too.
func (s *Store) Snapshot(node uint8) (NodeState, bool) {
	sl := s.slotFor(node)
	if sl == nil {
		return NodeState{}, false
	}
	sl.mu.RLock()
	st := sl.state
	sl.mu.RUnlock()
	return st, true
}

// Commit applies one successful parse to a node under the slot lock:
// apply runs first, then the communication and per-frame bookkeeping for
// nowMs. Either everything in apply lands or, when the caller never calls
// Commit for a rejected frame, nothing does.
func (s *Store) Commit(node uint8, ft ifsbms.FrameType, nowMs int64, apply func(*NodeState)) bool {
	sl := s.slotFor(node)
	if sl == nil {
		return false
	}
	sl.mu.Lock()
	apply(&sl.state)
	updateComm(&sl.state, nowMs)
	updateFrameSeen(&sl.state, ft, nowMs)
	sl.mu.Unlock()
	return true
}

func updateComm(st *NodeState, nowMs int64) {
	st.Seen = true
	st.LastUpdateMs = nowMs
	st.CommunicationOK = true
	st.PacketsReceived++
}

func updateFrameSeen(st *NodeState, ft ifsbms.FrameType, nowMs int64) {
	st.FrameSeenMs[ft] = nowMs
	st.FrameCounts[ft]++
}

// RecordParseError bumps the per-node error counter without touching any
// data field or timestamp. Staleness stays timestamp-derived: one bad
// frame never marks a node offline.
func (s *Store) RecordParseError(node uint8) {
	sl := s.slotFor(node)
	if sl == nil {
		return
	}
	sl.mu.Lock()
	sl.state.ParseErrors++
	sl.mu.Unlock()
}

// ClearErrors zeroes the error flags and the per-node error counter. Data
// fields and timestamps are left alone. Bound to the per-node clear coil.
func (s *Store) ClearErrors(node uint8) {
	sl := s.slotFor(node)
	if sl == nil {
		return
	}
	sl.mu.Lock()
	sl.state.Basic.Errors = ifsbms.ErrorFlags{}
	sl.state.Mux.ErrorMap = [4]uint16{}
	sl.state.ParseErrors = 0
	sl.mu.Unlock()
}

// Reset zeroes one slot in place. Idempotent.
func (s *Store) Reset(node uint8) {
	sl := s.slotFor(node)
	if sl == nil {
		return
	}
	sl.mu.Lock()
	sl.state = NodeState{}
	sl.mu.Unlock()
}

// ResetAll zeroes every slot and the statistics singleton.
func (s *Store) ResetAll() {
	for n := uint8(1); n <= ifsbms.MaxNodes; n++ {
		s.Reset(n)
	}
	s.stats.Reset()
}

// WriteThreshold stores a host-written hysteresis threshold (raw register
// units, 0.1 %) into a node's mux record. idx is 0..7 in the selector
// order 0x24..0x2B. Used by the holding-register write path.
func (s *Store) WriteThreshold(node uint8, idx int, raw uint16) bool {
	if idx < 0 || idx > 7 {
		return false
	}
	sl := s.slotFor(node)
	if sl == nil {
		return false
	}
	sl.mu.Lock()
	v := float64(raw) * ifsbms.ScaleTenth
	switch idx {
	case 0:
		sl.state.Mux.FullyChargedOn = v
	case 1:
		sl.state.Mux.FullyChargedOff = v
	case 2:
		sl.state.Mux.FullyDischargedOn = v
	case 3:
		sl.state.Mux.FullyDischargedOff = v
	case 4:
		sl.state.Mux.BatteryFullOn = v
	case 5:
		sl.state.Mux.BatteryFullOff = v
	case 6:
		sl.state.Mux.BatteryEmptyOn = v
	case 7:
		sl.state.Mux.BatteryEmptyOff = v
	}
	sl.mu.Unlock()
	return true
}

// ActiveNodes lists node ids that have received at least one frame, in
// ascending id order. Cross-slot reads acquire slots in this order only.
func (s *Store) ActiveNodes() []uint8 {
	var out []uint8
	for n := uint8(1); n <= ifsbms.MaxNodes; n++ {
		if _, ok := s.Get(n); ok {
			out = append(out, n)
		}
	}
	return out
}
