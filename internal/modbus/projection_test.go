package modbus

import (
	"testing"

	"bms-gateway/internal/protocol/ifsbms"
	"bms-gateway/internal/store"
)

func populatedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	ok := s.Commit(2, ifsbms.Frame190, 1000, func(st *store.NodeState) {
		st.Basic = ifsbms.BasicData{
			PackVoltage:       128.0,
			PackCurrent:       0,
			RemainingEnergyWh: 1000.0,
			SOC:               100,
		}
	})
	if !ok {
		t.Fatal("commit failed")
	}
	return s
}

func newProjection(s *store.Store) *Projection {
	return NewProjection(s, store.DefaultTimeouts())
}

func TestReadInputRegistersBasic(t *testing.T) {
	p := newProjection(populatedStore(t))
	base := uint16(InputRegsPerNode) // node 2
	regs, err := p.ReadInputRegisters(base, 4, 1100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[InPackVoltage] != 12800 {
		t.Errorf("voltage register = %d, want 12800", regs[InPackVoltage])
	}
	if regs[InPackCurrent] != 32768 {
		t.Errorf("current register = %d, want 32768", regs[InPackCurrent])
	}
	if regs[InRemainingEnergy] != 100 {
		t.Errorf("energy register = %d, want 100", regs[InRemainingEnergy])
	}
	if regs[InSOC] != 100 {
		t.Errorf("soc register = %d, want 100", regs[InSOC])
	}

	// Packet counter lives at the tail of the same window.
	regs, err = p.ReadInputRegisters(base+InPacketsHi, 3, 1100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[0] != 0 || regs[1] != 1 || regs[2] != 0 {
		t.Errorf("counters = %v", regs)
	}
}

// A silent node reads as a zeroed window, never as an exception.
func TestReadInputRegistersSilentNode(t *testing.T) {
	p := newProjection(store.New())
	regs, err := p.ReadInputRegisters(0, InputRegsPerNode, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[InPackVoltage] != 0 || regs[InSOC] != 0 {
		t.Errorf("silent node registers = %v", regs[:8])
	}
	// Biased registers idle at midpoint.
	if regs[InPackCurrent] != 32768 || regs[InTempMax] != 32768 {
		t.Errorf("biased registers = %d/%d", regs[InPackCurrent], regs[InTempMax])
	}
}

func TestReadInputRegistersSpansNodes(t *testing.T) {
	s := populatedStore(t)
	s.Commit(3, ifsbms.Frame190, 1000, func(st *store.NodeState) {
		st.Basic.SOC = 50
	})
	p := newProjection(s)
	// Last register of node 2 plus the first four of node 3.
	regs, err := p.ReadInputRegisters(2*InputRegsPerNode-1, 5, 1100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[0] != 0 {
		t.Errorf("reserved tail register = %d", regs[0])
	}
	if regs[1+InPackVoltage] != 0 || regs[1+InSOC] != 50 {
		t.Errorf("node 3 head = %v", regs[1:])
	}
}

func TestReadInputRegistersIllegalAddress(t *testing.T) {
	p := newProjection(store.New())
	if _, err := p.ReadInputRegisters(GlobalInputBase+GlobalInputCount, 1, 0); err != ErrIllegalAddress {
		t.Fatalf("err = %v", err)
	}
	if _, err := p.ReadInputRegisters(GlobalInputBase+GlobalInputCount-1, 2, 0); err != ErrIllegalAddress {
		t.Fatalf("err = %v", err)
	}
}

func TestReadStatsWindow(t *testing.T) {
	s := populatedStore(t)
	st := s.Stats()
	st.OnFrame()
	st.OnFrame()
	st.OnAccepted(ifsbms.Frame190)
	st.OnSuccess()
	st.OnParseError(&ifsbms.ParseError{
		Kind: ifsbms.ErrRange, NodeID: 2, Frame: ifsbms.Frame190, Detail: 0x4000,
	}, 65_000)
	p := newProjection(s)

	regs, err := p.ReadInputRegisters(GlobalInputBase, GlobalInputCount, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[GiTotalFramesLo] != 2 || regs[GiSuccessLo] != 1 || regs[GiParseErrorsLo] != 1 {
		t.Fatalf("counters = %v", regs[:8])
	}
	if regs[GiFrameCountBase+int(ifsbms.Frame190)] != 1 {
		t.Fatalf("frame counts = %v", regs[GiFrameCountBase:GiFrameCountBase+9])
	}
	if regs[GiLastErrNode] != 2 || regs[GiLastErrKind] != uint16(ifsbms.ErrRange) || regs[GiLastErrDetail] != 0x4000 {
		t.Fatalf("last error regs = %v", regs[GiLastErrNode:GiLastErrTimeSecLo+1])
	}
	if regs[GiLastErrTimeSecLo] != 65 {
		t.Fatalf("last error time = %d", regs[GiLastErrTimeSecLo])
	}
}

func TestHoldingThresholdWriteReadBack(t *testing.T) {
	p := newProjection(store.New())
	// Node 1 threshold 0.
	if err := p.WriteHoldingRegister(HoldThresholdBase+0, 985); err != nil {
		t.Fatalf("write rejected: %v", err)
	}
	regs, err := p.ReadHoldingRegisters(0, HoldThresholds, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[0] != 985 {
		t.Fatalf("threshold echo = %d, want 985", regs[0])
	}
	// Non-threshold offsets reject writes.
	if err := p.WriteHoldingRegister(HoldDdclCrc, 1); err != ErrIllegalAddress {
		t.Fatalf("crc write: %v", err)
	}
	if err := p.WriteHoldingRegister(19, 1); err != ErrIllegalAddress {
		t.Fatalf("reserved write: %v", err)
	}
}

func TestGlobalNodeTimeoutRegister(t *testing.T) {
	p := newProjection(store.New())
	regs, err := p.ReadHoldingRegisters(GlobalHoldingBase, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[0] != 100 { // 10000 ms in 100 ms units
		t.Fatalf("default timeout register = %d", regs[0])
	}
	if err := p.WriteHoldingRegister(GlobalHoldingBase, 0); err != ErrIllegalValue {
		t.Fatalf("zero timeout: %v", err)
	}
	if err := p.WriteHoldingRegister(GlobalHoldingBase, 50); err != nil {
		t.Fatalf("write rejected: %v", err)
	}
	if p.NodeTimeoutMs() != 5000 {
		t.Fatalf("timeout = %d", p.NodeTimeoutMs())
	}
	regs, _ = p.ReadHoldingRegisters(GlobalHoldingBase, 1, 0)
	if regs[0] != 50 {
		t.Fatalf("timeout register = %d", regs[0])
	}
}

func TestDiscreteInputsLiveness(t *testing.T) {
	s := store.New()
	for _, ft := range ifsbms.FrameTypes {
		s.Commit(1, ft, 0, func(st *store.NodeState) {})
	}
	s.Commit(1, ifsbms.Frame410, 0, func(st *store.NodeState) {
		st.Temps.ReadyToCharge = true
	})
	p := newProjection(s)

	bits, err := p.ReadDiscreteInputs(0, DiscretesPerNode, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bits[DiCommOK] || bits[DiCriticalStale] {
		t.Fatalf("fresh liveness = %v/%v", bits[DiCommOK], bits[DiCriticalStale])
	}
	if !bits[DiReadyToCharge] || bits[DiReadyToDischarge] {
		t.Fatalf("ready bits = %v/%v", bits[DiReadyToCharge], bits[DiReadyToDischarge])
	}
	for _, ft := range ifsbms.FrameTypes {
		if !bits[DiFrameFreshBase+int(ft)] {
			t.Fatalf("%v not fresh at t=100", ft)
		}
	}

	// Past the node window: offline and stale, data bits unchanged.
	bits, err = p.ReadDiscreteInputs(0, DiscretesPerNode, 10_500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bits[DiCommOK] || !bits[DiCriticalStale] {
		t.Fatalf("stale liveness = %v/%v", bits[DiCommOK], bits[DiCriticalStale])
	}
	if !bits[DiReadyToCharge] {
		t.Fatal("data bit lost on staleness")
	}
	for _, ft := range ifsbms.FrameTypes {
		if bits[DiFrameFreshBase+int(ft)] {
			t.Fatalf("%v fresh at t=10500", ft)
		}
	}

	// Register values are retained while stale.
	regs, err := p.ReadInputRegisters(InPacketsLo, 1, 10_500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs[0] != 10 {
		t.Fatalf("packets = %d", regs[0])
	}
}

func TestCoils(t *testing.T) {
	s := populatedStore(t)
	s.Commit(2, ifsbms.Frame190, 1000, func(st *store.NodeState) {
		st.Basic.Errors = ifsbms.ErrorFlagsFromByte(0xFF)
	})
	p := newProjection(s)

	bits, err := p.ReadCoils(0, GlobalCoilBase+GlobalCoilCount, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, b := range bits {
		if b {
			t.Fatalf("coil %d reads 1", i)
		}
	}

	// Clear errors on node 2: coil window 2 starts at 32.
	if err := p.WriteCoil(CoilsPerNode+CoilClearErrors, true); err != nil {
		t.Fatalf("clear coil: %v", err)
	}
	ns, _ := s.Get(2)
	if ns.Basic.Errors.Any() {
		t.Fatal("errors survived the clear coil")
	}
	if ns.Basic.PackVoltage != 128.0 {
		t.Fatal("clear coil touched data")
	}

	// Writing 0 is a validated no-op.
	if err := p.WriteCoil(CoilsPerNode+CoilResetNode, false); err != nil {
		t.Fatalf("zero write: %v", err)
	}
	if _, ok := s.Get(2); !ok {
		t.Fatal("zero write reset the node")
	}

	// Reset node 2.
	if err := p.WriteCoil(CoilsPerNode+CoilResetNode, true); err != nil {
		t.Fatalf("reset coil: %v", err)
	}
	if _, ok := s.Get(2); ok {
		t.Fatal("node survived the reset coil")
	}

	// Global stats reset.
	s.Stats().OnFrame()
	if err := p.WriteCoil(GlobalCoilBase+CoilResetStats, true); err != nil {
		t.Fatalf("stats coil: %v", err)
	}
	if snap := s.Stats().Snapshot(); snap.TotalFrames != 0 {
		t.Fatalf("stats = %+v", snap)
	}

	// Unbound offsets reject.
	if err := p.WriteCoil(CoilResetNode+1, true); err != ErrIllegalAddress {
		t.Fatalf("coil 2: %v", err)
	}
	if err := p.WriteCoil(GlobalCoilBase+GlobalCoilCount, true); err != ErrIllegalAddress {
		t.Fatalf("past global window: %v", err)
	}
}
