package modbus

import (
	"sync/atomic"

	"bms-gateway/internal/protocol/ifsbms"
	"bms-gateway/internal/store"
)

// Projection maps the node store onto the register file. It owns no state
// of its own beyond the tunable node timeout: every read derives the
// window from a fresh per-slot snapshot and the caller-supplied time, so
// identical store state always yields byte-identical responses.
type Projection struct {
	store         *store.Store
	timeouts      store.Timeouts
	nodeTimeoutMs atomic.Int64
}

// NewProjection wires a projection over the store with the given
// staleness windows.
func NewProjection(st *store.Store, t store.Timeouts) *Projection {
	p := &Projection{store: st, timeouts: t}
	p.nodeTimeoutMs.Store(t.NodeMs)
	return p
}

func (p *Projection) effectiveTimeouts() store.Timeouts {
	t := p.timeouts
	t.NodeMs = p.nodeTimeoutMs.Load()
	return t
}

// NodeTimeoutMs returns the current node-level staleness window.
func (p *Projection) NodeTimeoutMs() int64 {
	return p.nodeTimeoutMs.Load()
}

// ReadInputRegisters serves FC 0x04 over [addr, addr+qty).
func (p *Projection) ReadInputRegisters(addr, qty uint16, nowMs int64) ([]uint16, error) {
	end := int(addr) + int(qty)
	if end > GlobalInputBase+GlobalInputCount {
		return nil, ErrIllegalAddress
	}
	out := make([]uint16, qty)

	var block [InputRegsPerNode]uint16
	blockNode := -1
	var statsBlock [GlobalInputCount]uint16
	statsBuilt := false

	for i := range out {
		a := int(addr) + i
		if a >= GlobalInputBase {
			if !statsBuilt {
				statsBlock = p.buildStatsBlock()
				statsBuilt = true
			}
			out[i] = statsBlock[a-GlobalInputBase]
			continue
		}
		node := a/InputRegsPerNode + 1
		if node != blockNode {
			snap, ok := p.store.Snapshot(uint8(node))
			if !ok {
				return nil, ErrIllegalAddress
			}
			block = buildInputBlock(&snap)
			blockNode = node
		}
		out[i] = block[a%InputRegsPerNode]
	}
	return out, nil
}

// ReadHoldingRegisters serves FC 0x03.
func (p *Projection) ReadHoldingRegisters(addr, qty uint16, nowMs int64) ([]uint16, error) {
	end := int(addr) + int(qty)
	if end > GlobalHoldingBase+GlobalHoldingCount {
		return nil, ErrIllegalAddress
	}
	out := make([]uint16, qty)

	var block [HoldingRegsPerNode]uint16
	blockNode := -1

	for i := range out {
		a := int(addr) + i
		if a >= GlobalHoldingBase {
			switch a - GlobalHoldingBase {
			case HoldGlobalNodeTimeout:
				out[i] = uint16(p.nodeTimeoutMs.Load() / 100)
			}
			continue
		}
		node := a/HoldingRegsPerNode + 1
		if node != blockNode {
			snap, ok := p.store.Snapshot(uint8(node))
			if !ok {
				return nil, ErrIllegalAddress
			}
			block = buildHoldingBlock(&snap)
			blockNode = node
		}
		out[i] = block[a%HoldingRegsPerNode]
	}
	return out, nil
}

// ReadDiscreteInputs serves FC 0x02.
func (p *Projection) ReadDiscreteInputs(addr, qty uint16, nowMs int64) ([]bool, error) {
	end := int(addr) + int(qty)
	if end > NodeCount*DiscretesPerNode {
		return nil, ErrIllegalAddress
	}
	t := p.effectiveTimeouts()
	out := make([]bool, qty)

	var block [DiscretesPerNode]bool
	blockNode := -1

	for i := range out {
		a := int(addr) + i
		node := a/DiscretesPerNode + 1
		if node != blockNode {
			snap, ok := p.store.Snapshot(uint8(node))
			if !ok {
				return nil, ErrIllegalAddress
			}
			live := t.Evaluate(&snap, nowMs)
			block = buildDiscreteBlock(&snap, &live)
			blockNode = node
		}
		out[i] = block[a%DiscretesPerNode]
	}
	return out, nil
}

// ReadCoils serves FC 0x01. Command coils auto-clear, so they always read
// back zero; only the address range is checked.
func (p *Projection) ReadCoils(addr, qty uint16, nowMs int64) ([]bool, error) {
	end := int(addr) + int(qty)
	if end > GlobalCoilBase+GlobalCoilCount {
		return nil, ErrIllegalAddress
	}
	return make([]bool, qty), nil
}

// CheckCoil reports whether addr is a bound coil, without executing
// anything. Multi-coil writes validate the whole span with this before
// the first action runs, so a span is all-or-nothing.
func (p *Projection) CheckCoil(addr uint16) error {
	if int(addr) >= GlobalCoilBase {
		switch int(addr) - GlobalCoilBase {
		case CoilResetStats, CoilResetAll:
			return nil
		}
		return ErrIllegalAddress
	}
	switch addr % CoilsPerNode {
	case CoilClearErrors, CoilResetNode:
		return nil
	}
	return ErrIllegalAddress
}

// CheckHoldingWrite validates a holding-register write without applying
// it. Same contract as CheckCoil for FC 0x10 spans.
func (p *Projection) CheckHoldingWrite(addr, value uint16) error {
	if int(addr) >= GlobalHoldingBase {
		if int(addr)-GlobalHoldingBase != HoldGlobalNodeTimeout {
			return ErrIllegalAddress
		}
		if value == 0 {
			return ErrIllegalValue
		}
		return nil
	}
	off := int(addr % HoldingRegsPerNode)
	if off >= HoldThresholdBase && off < HoldThresholdBase+HoldThresholds {
		return nil
	}
	return ErrIllegalAddress
}

// WriteCoil serves FC 0x05 (and each bit of FC 0x0F). Writing 1 executes
// the bound action immediately; writing 0 is a validated no-op.
func (p *Projection) WriteCoil(addr uint16, on bool) error {
	if int(addr) >= GlobalCoilBase {
		switch int(addr) - GlobalCoilBase {
		case CoilResetStats:
			if on {
				p.store.Stats().Reset()
			}
		case CoilResetAll:
			if on {
				p.store.ResetAll()
			}
		default:
			return ErrIllegalAddress
		}
		return nil
	}
	node := uint8(addr/CoilsPerNode) + 1
	switch addr % CoilsPerNode {
	case CoilClearErrors:
		if on {
			p.store.ClearErrors(node)
		}
	case CoilResetNode:
		if on {
			p.store.Reset(node)
		}
	default:
		return ErrIllegalAddress
	}
	return nil
}

// WriteHoldingRegister serves FC 0x06 (and each register of FC 0x10).
// Only the threshold echo registers and the global node timeout accept
// writes.
func (p *Projection) WriteHoldingRegister(addr, value uint16) error {
	if int(addr) >= GlobalHoldingBase {
		switch int(addr) - GlobalHoldingBase {
		case HoldGlobalNodeTimeout:
			if value == 0 {
				return ErrIllegalValue
			}
			p.nodeTimeoutMs.Store(int64(value) * 100)
			return nil
		default:
			return ErrIllegalAddress
		}
	}
	node := uint8(addr/HoldingRegsPerNode) + 1
	off := int(addr % HoldingRegsPerNode)
	if off >= HoldThresholdBase && off < HoldThresholdBase+HoldThresholds {
		if !p.store.WriteThreshold(node, off-HoldThresholdBase, value) {
			return ErrIllegalAddress
		}
		return nil
	}
	return ErrIllegalAddress
}

func buildInputBlock(st *store.NodeState) [InputRegsPerNode]uint16 {
	var r [InputRegsPerNode]uint16

	b := &st.Basic
	r[InPackVoltage] = ifsbms.FloatToRegister(b.PackVoltage, 100)
	r[InPackCurrent] = ifsbms.BiasSigned(b.PackCurrent, 100)
	r[InRemainingEnergy] = ifsbms.FloatToRegister(b.RemainingEnergyWh/1000, 100)
	r[InSOC] = uint16(b.SOC)
	r[InErrorFlags] = uint16(b.Errors.ToByte())

	r[InSOH] = ifsbms.FloatToRegister(st.SOH.SOH, 10)
	r[InSOHTemp] = ifsbms.BiasSigned(float64(st.SOH.Temperature), 1)
	r[InImpedance] = ifsbms.FloatToRegister(st.SOH.ImpedanceMOhm, 10)
	r[InChannelMux] = st.SOH.ChannelRawWord

	r[InCellMinVoltage] = ifsbms.FloatToRegister(st.MinCells.CellMinVoltage, 10000)
	r[InCellMeanVoltage] = ifsbms.FloatToRegister(st.MinCells.CellMeanVoltage, 10000)
	r[InCellMaxVoltage] = ifsbms.FloatToRegister(st.MaxCells.CellMaxVoltage, 10000)
	r[InCellDeltaVoltage] = ifsbms.FloatToRegister(st.MaxCells.CellDeltaVoltage, 10000)
	r[InMinVoltageID] = uint16(st.MinCells.MinVoltageID)
	r[InMaxVoltageID] = uint16(st.MaxCells.MaxVoltageID)

	r[InTempMax] = ifsbms.BiasSigned(float64(st.Temps.TempMax), 1)
	r[InTempMin] = ifsbms.BiasSigned(float64(st.Temps.TempMin), 1)
	r[InTempDelta] = ifsbms.BiasSigned(float64(st.Temps.TempDelta), 1)
	r[InTempSensorID] = uint16(st.Temps.SensorID)

	r[InChargePowerLimit] = st.Limits.ChargePowerLimitW
	r[InDischargePowerLim] = st.Limits.DischargePowerLimitW
	r[InDigitalInputs] = st.Limits.Inputs.ToWord()
	r[InRelayOutputs] = st.Limits.Relays.ToWord()

	r[InNMTState] = uint16(st.NMTState)

	m := &st.Mux
	r[InMuxType] = uint16(m.MuxType)
	r[InMuxValue] = m.MuxValue
	r[InSerialLo] = m.SerialNumber[0]
	r[InSerialHi] = m.SerialNumber[1]
	r[InHwVerLo] = m.HwVersion[0]
	r[InHwVerHi] = m.HwVersion[1]
	r[InSwVerLo] = m.SwVersion[0]
	r[InSwVerHi] = m.SwVersion[1]
	r[InFactoryEnergy] = m.FactoryEnergy
	r[InDesignCapacity] = m.DesignCapacity
	r[InSystemEnergy] = m.SystemEnergy
	r[InBallancerTempMax] = ifsbms.BiasSigned(m.BallancerTempMax, 10)
	r[InLtcTempMax] = ifsbms.BiasSigned(m.LtcTempMax, 10)
	r[InInletOutletTemp] = uint16(m.OutletTemp)<<8 | uint16(m.InletTemp)
	r[InHumidity] = m.Humidity
	r[InTimeToFullCharge] = m.TimeToFullChargeMin
	r[InTimeToFullDisch] = m.TimeToFullDischargeMin
	r[InPowerOnCounter] = m.PowerOnCounter
	r[InBatteryCycles] = m.BatteryCycles
	r[InErrorMap0] = m.ErrorMap[0]
	r[InErrorMap1] = m.ErrorMap[1]
	r[InErrorMap2] = m.ErrorMap[2]
	r[InErrorMap3] = m.ErrorMap[3]
	r[InDetectedIMBs] = m.DetectedIMBs
	r[InIotStatus] = m.IotStatus
	r[InChargeEnergyLo] = m.ChargeEnergy[0]
	r[InChargeEnergyHi] = m.ChargeEnergy[1]
	r[InDischargeEnergyLo] = m.DischargeEnergy[0]
	r[InDischargeEnergyHi] = m.DischargeEnergy[1]
	r[InRecupEnergyLo] = m.RecuperativeEnergy[0]
	r[InRecupEnergyHi] = m.RecuperativeEnergy[1]

	r[InPacketsHi] = uint16(st.PacketsReceived >> 16)
	r[InPacketsLo] = uint16(st.PacketsReceived)
	r[InParseErrors] = uint16(st.ParseErrors)

	return r
}

func buildHoldingBlock(st *store.NodeState) [HoldingRegsPerNode]uint16 {
	var r [HoldingRegsPerNode]uint16
	m := &st.Mux
	r[HoldThresholdBase+0] = ifsbms.FloatToRegister(m.FullyChargedOn, 10)
	r[HoldThresholdBase+1] = ifsbms.FloatToRegister(m.FullyChargedOff, 10)
	r[HoldThresholdBase+2] = ifsbms.FloatToRegister(m.FullyDischargedOn, 10)
	r[HoldThresholdBase+3] = ifsbms.FloatToRegister(m.FullyDischargedOff, 10)
	r[HoldThresholdBase+4] = ifsbms.FloatToRegister(m.BatteryFullOn, 10)
	r[HoldThresholdBase+5] = ifsbms.FloatToRegister(m.BatteryFullOff, 10)
	r[HoldThresholdBase+6] = ifsbms.FloatToRegister(m.BatteryEmptyOn, 10)
	r[HoldThresholdBase+7] = ifsbms.FloatToRegister(m.BatteryEmptyOff, 10)
	r[HoldDdclCrc] = m.DdclCrc
	r[HoldDcclCrc] = m.DcclCrc
	r[HoldDrcclCrc] = m.DrcclCrc
	r[HoldOcvCrc] = m.OcvCrc
	r[HoldConfigCrc] = m.ConfigCrc
	r[HoldBlVerLo] = m.BlVersion[0]
	r[HoldBlVerHi] = m.BlVersion[1]
	r[HoldOdVerLo] = m.OdVersion[0]
	r[HoldOdVerHi] = m.OdVersion[1]
	r[HoldDbcVerLo] = m.DbcVersion[0]
	r[HoldDbcVerHi] = m.DbcVersion[1]
	return r
}

func buildDiscreteBlock(st *store.NodeState, live *store.Liveness) [DiscretesPerNode]bool {
	var d [DiscretesPerNode]bool
	d[DiCommOK] = live.CommOK
	d[DiCriticalStale] = live.CriticalStale
	d[DiReadyToCharge] = st.Temps.ReadyToCharge
	d[DiReadyToDischarge] = st.Temps.ReadyToDischarge

	e := st.Basic.Errors
	d[DiErrMaster] = e.MasterError
	d[DiErrCellVoltage] = e.CellVoltage
	d[DiErrUnderVoltage] = e.CellUnderVoltage
	d[DiErrOverVoltage] = e.CellOverVoltage
	d[DiErrImbalance] = e.CellImbalance
	d[DiErrUnderTemp] = e.UnderTemperature
	d[DiErrOverTemp] = e.OverTemperature
	d[DiErrOverCurrent] = e.OverCurrent

	d[DiInput1] = st.Limits.Inputs.Input1
	d[DiInput2] = st.Limits.Inputs.Input2

	rl := st.Limits.Relays
	d[DiRelayMain] = rl.Main
	d[DiRelayPrecharge] = rl.Precharge
	d[DiRelayCharge] = rl.Charge
	d[DiRelayDischarge] = rl.Discharge
	d[DiRelayHeater] = rl.Heater
	d[DiRelayFan] = rl.Fan

	for _, ft := range ifsbms.FrameTypes {
		d[DiFrameFreshBase+int(ft)] = live.FrameFresh[ft]
	}

	d[DiRelaxTimer] = st.SOH.RelaxTimer
	d[DiChargeTimer] = st.SOH.ChargeTimer
	d[DiCurrentRamp] = st.SOH.CurrentRamp
	return d
}

func (p *Projection) buildStatsBlock() [GlobalInputCount]uint16 {
	var r [GlobalInputCount]uint16
	s := p.store.Stats().Snapshot()
	r[GiTotalFramesHi] = uint16(s.TotalFrames >> 16)
	r[GiTotalFramesLo] = uint16(s.TotalFrames)
	r[GiSuccessHi] = uint16(s.SuccessfulParses >> 16)
	r[GiSuccessLo] = uint16(s.SuccessfulParses)
	r[GiParseErrorsHi] = uint16(s.ParseErrors >> 16)
	r[GiParseErrorsLo] = uint16(s.ParseErrors)
	r[GiInvalidFramesHi] = uint16(s.InvalidFrames >> 16)
	r[GiInvalidFramesLo] = uint16(s.InvalidFrames)
	r[GiUnknownMux] = uint16(s.UnknownMux)
	for _, ft := range ifsbms.FrameTypes {
		r[GiFrameCountBase+int(ft)] = uint16(s.FrameTypeCounts[ft])
	}
	if le, ok := p.store.Stats().LastError(); ok {
		r[GiLastErrNode] = uint16(le.NodeID)
		r[GiLastErrFrame] = uint16(le.Frame)
		r[GiLastErrKind] = uint16(le.Kind)
		r[GiLastErrDetail] = le.Detail
		sec := le.TimestampMs / 1000
		r[GiLastErrTimeSecHi] = uint16(sec >> 16)
		r[GiLastErrTimeSecLo] = uint16(sec)
	}
	return r
}
