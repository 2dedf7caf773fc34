package ifsbms

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	protocol "bms-gateway/internal/protocol/ifsbms"
	"bms-gateway/internal/store"
	"bms-gateway/internal/usecase"
)

func newTestHandler() (*Handler, *store.Store) {
	st := store.New()
	return NewHandler(st, nil, zap.NewNop()), st
}

func muxPayload(sel uint8, v uint16) []byte {
	return []byte{0, 0, 0, 0, 0, sel, byte(v), byte(v >> 8)}
}

func TestHandleBasicFrame(t *testing.T) {
	h, st := newTestHandler()
	// 0x191 addresses node 2: 128.0 V, 0 A, 1000 Wh, 100 %.
	err := h.HandleFrame(0x191, []byte{0x00, 0x08, 0x00, 0x00, 0x10, 0x27, 0x64, 0x00}, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ns, ok := st.Get(2)
	if !ok {
		t.Fatal("node 2 not visible")
	}
	if ns.Basic.PackVoltage != 128.0 || ns.Basic.PackCurrent != 0 ||
		ns.Basic.RemainingEnergyWh != 1000.0 || ns.Basic.SOC != 100 {
		t.Fatalf("basic data = %+v", ns.Basic)
	}
	if ns.PacketsReceived != 1 || ns.FrameCounts[protocol.Frame190] != 1 {
		t.Fatalf("bookkeeping = %d / %v", ns.PacketsReceived, ns.FrameCounts)
	}
	if _, ok := st.Get(1); ok {
		t.Fatal("node 1 visible without traffic")
	}
	snap := st.Stats().Snapshot()
	if snap.TotalFrames != 1 || snap.SuccessfulParses != 1 || snap.ParseErrors != 0 {
		t.Fatalf("stats = %+v", snap)
	}
}

func TestHandleNegativeCurrent(t *testing.T) {
	h, st := newTestHandler()
	err := h.HandleFrame(0x190, []byte{0x00, 0x08, 0x00, 0xFF, 0x00, 0x00, 0x32, 0x00}, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ns, _ := st.Get(1)
	if ns.Basic.PackCurrent != -16.0 || ns.Basic.SOC != 50 {
		t.Fatalf("basic data = %+v", ns.Basic)
	}
}

// A rejected frame leaves the previously committed state in place and is
// visible in the counters and the last-error record.
func TestHandleRangeRejection(t *testing.T) {
	h, st := newTestHandler()
	if err := h.HandleFrame(0x190, []byte{0x00, 0x08, 0x00, 0x00, 0x10, 0x27, 0x64, 0x00}, 1000); err != nil {
		t.Fatalf("setup frame rejected: %v", err)
	}
	// 0x4000 raw = 1024 V, over the hard limit.
	err := h.HandleFrame(0x190, []byte{0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x64, 0x00}, 1100)
	if err == nil {
		t.Fatal("over-range frame accepted")
	}
	ns, _ := st.Get(1)
	if ns.Basic.PackVoltage != 128.0 {
		t.Fatalf("prior state lost: voltage = %v", ns.Basic.PackVoltage)
	}
	if ns.ParseErrors != 1 {
		t.Fatalf("parse errors = %d", ns.ParseErrors)
	}
	if ns.LastUpdateMs != 1000 || ns.PacketsReceived != 1 {
		t.Fatal("rejected frame advanced the receive bookkeeping")
	}
	last, ok := st.Stats().LastError()
	if !ok || last.Frame != protocol.Frame190 || last.Kind != protocol.ErrRange || last.NodeID != 1 {
		t.Fatalf("last error = %+v, %v", last, ok)
	}
}

func TestHandleRelationRejection(t *testing.T) {
	h, st := newTestHandler()
	// Min cell 3.9 V against redundant max 3.7 V on frame 0x290.
	word := func(v float64) (byte, byte) {
		raw := uint16(v / protocol.ScaleCellVoltage)
		return byte(raw), byte(raw >> 8)
	}
	lo1, hi1 := word(3.9)
	lo2, hi2 := word(3.9)
	lo3, hi3 := word(3.7)
	err := h.HandleFrame(0x290, []byte{lo1, hi1, lo2, hi2, lo3, hi3, 0, 0}, 1000)
	if err == nil {
		t.Fatal("ordering violation accepted")
	}
	if _, ok := st.Get(1); ok {
		t.Fatal("rejected frame created the node")
	}
	if snap := st.Stats().Snapshot(); snap.ParseErrors != 1 || snap.SuccessfulParses != 0 {
		t.Fatalf("stats = %+v", snap)
	}
}

func TestHandleMuxSequence(t *testing.T) {
	h, st := newTestHandler()
	if err := h.HandleFrame(0x490, muxPayload(protocol.MuxSerialNumber0, 0x1234), 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.HandleFrame(0x490, muxPayload(protocol.MuxSerialNumber1, 0x5678), 1100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ns, _ := st.Get(1)
	if ns.Mux.SerialNumber32() != 0x56781234 {
		t.Fatalf("serial = 0x%08X", ns.Mux.SerialNumber32())
	}
	if ns.FrameCounts[protocol.Frame490] != 2 {
		t.Fatalf("frame count = %d", ns.FrameCounts[protocol.Frame490])
	}
	if snap := st.Stats().Snapshot(); snap.UnknownMux != 0 {
		t.Fatalf("unknown mux = %d", snap.UnknownMux)
	}
}

// Selectors past the table commit the raw pair and count as informational,
// never as errors.
func TestHandleUnknownMux(t *testing.T) {
	h, st := newTestHandler()
	if err := h.HandleFrame(0x490, muxPayload(0x40, 0x0001), 1000); err != nil {
		t.Fatalf("unknown selector rejected: %v", err)
	}
	ns, _ := st.Get(1)
	if ns.Mux.MuxType != 0x40 || ns.Mux.MuxValue != 0x0001 {
		t.Fatalf("raw pair = (0x%02X, 0x%04X)", ns.Mux.MuxType, ns.Mux.MuxValue)
	}
	snap := st.Stats().Snapshot()
	if snap.UnknownMux != 1 || snap.SuccessfulParses != 1 || snap.ParseErrors != 0 {
		t.Fatalf("stats = %+v", snap)
	}
}

func TestHandleUnknownID(t *testing.T) {
	h, st := newTestHandler()
	err := h.HandleFrame(0x000, make([]byte, 8), 1000)
	if err == nil {
		t.Fatal("unknown id accepted")
	}
	snap := st.Stats().Snapshot()
	if snap.TotalFrames != 1 || snap.InvalidFrames != 1 {
		t.Fatalf("stats = %+v", snap)
	}
}

// Every frame lands in exactly one outcome bucket.
func TestStatsAccounting(t *testing.T) {
	h, st := newTestHandler()
	frames := []struct {
		id   uint32
		data []byte
	}{
		{0x190, []byte{0x00, 0x08, 0x00, 0x00, 0x10, 0x27, 0x64, 0x00}}, // ok
		{0x190, []byte{0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x64, 0x00}}, // range
		{0x000, make([]byte, 8)},                                        // unknown id
		{0x190, []byte{0x00, 0x08}},                                     // short: classifier rejects
		{0x490, muxPayload(0x40, 1)},                                    // unknown mux: ok
	}
	for _, f := range frames {
		_ = h.HandleFrame(f.id, f.data, 1000)
	}
	snap := st.Stats().Snapshot()
	if snap.TotalFrames != 5 {
		t.Fatalf("total = %d", snap.TotalFrames)
	}
	if got := snap.SuccessfulParses + snap.ParseErrors + snap.InvalidFrames; got != snap.TotalFrames {
		t.Fatalf("outcomes %d do not sum to total %d", got, snap.TotalFrames)
	}
	if snap.SuccessfulParses != 2 || snap.ParseErrors != 1 || snap.InvalidFrames != 2 {
		t.Fatalf("stats = %+v", snap)
	}
}

type captureProducer struct {
	mu       sync.Mutex
	payloads []usecase.MQPayload
	got      chan struct{}
}

func (p *captureProducer) Produce(_ context.Context, topic, key string, data interface{}) error {
	p.mu.Lock()
	p.payloads = append(p.payloads, data.(usecase.MQPayload))
	p.mu.Unlock()
	select {
	case p.got <- struct{}{}:
	default:
	}
	return nil
}

func TestHandleBasicPublishesSnapshot(t *testing.T) {
	prod := &captureProducer{got: make(chan struct{}, 1)}
	disp := usecase.NewDataDispatcher(prod, 1, zap.NewNop())
	disp.Start()
	defer disp.Stop()

	st := store.New()
	h := NewHandler(st, disp, zap.NewNop())
	if err := h.HandleFrame(0x191, []byte{0x00, 0x08, 0x00, 0x00, 0x10, 0x27, 0x64, 0x00}, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-prod.got:
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	prod.mu.Lock()
	defer prod.mu.Unlock()
	if len(prod.payloads) != 1 {
		t.Fatalf("got %d events", len(prod.payloads))
	}
	p := prod.payloads[0]
	if p.Type != "node_snapshot" || p.Node != 2 {
		t.Fatalf("payload = %+v", p)
	}
	snap, ok := p.Data.(usecase.NodeSnapshot)
	if !ok {
		t.Fatalf("data type %T", p.Data)
	}
	if snap.PackVoltage != 128.0 || snap.SOC != 100 || snap.TimestampMs != 1000 {
		t.Fatalf("snapshot = %+v", snap)
	}
}
