package modbus

// Register map. All addresses are 0-based PDU addresses; input-register
// address 0 corresponds to the conventional 30001.
//
// Per-node windows, node n in 1..16:
//   input registers   [(n-1)*64, n*64)
//   holding registers [(n-1)*32, n*32)
//   discrete inputs   [(n-1)*32, n*32)
//   coils             [(n-1)*32, n*32)
// Global windows sit past the sixteen node windows.
const (
	InputRegsPerNode   = 64
	HoldingRegsPerNode = 32
	DiscretesPerNode   = 32
	CoilsPerNode       = 32

	NodeCount = 16

	// Global input window: protocol statistics, read-only.
	GlobalInputBase  = NodeCount * InputRegsPerNode // 1024
	GlobalInputCount = 32

	// Global holding window: host-tunable settings.
	GlobalHoldingBase  = NodeCount * HoldingRegsPerNode // 512
	GlobalHoldingCount = 1

	// Global coil window: stats/store resets.
	GlobalCoilBase  = NodeCount * CoilsPerNode // 512
	GlobalCoilCount = 2
)

// Input-register offsets inside a node window. Scaling per register:
// voltages x100 (cell voltages x10000), current x100 biased +32768,
// energy in kWh x100, whole-degree temperatures biased +32768, tenth-
// degree mux temperatures x10 biased +32768, everything else raw.
const (
	InPackVoltage       = 0  // V x100
	InPackCurrent       = 1  // A x100, +32768
	InRemainingEnergy   = 2  // kWh x100
	InSOC               = 3  // %
	InErrorFlags        = 4  // error byte, bits 0..7
	InSOH               = 5  // % x10
	InSOHTemp           = 6  // degC +32768
	InImpedance         = 7  // mOhm x10
	InChannelMux        = 8  // raw channel word (flags in bits 13..15)
	InCellMinVoltage    = 9  // V x10000
	InCellMeanVoltage   = 10 // V x10000
	InCellMaxVoltage    = 11 // V x10000
	InCellDeltaVoltage  = 12 // V x10000
	InMinVoltageID      = 13
	InMaxVoltageID      = 14
	InTempMax           = 15 // degC +32768
	InTempMin           = 16 // degC +32768
	InTempDelta         = 17 // degC +32768
	InTempSensorID      = 18
	InChargePowerLimit  = 19 // W
	InDischargePowerLim = 20 // W
	InDigitalInputs     = 21 // raw word
	InRelayOutputs      = 22 // raw word
	InNMTState          = 23
	InMuxType           = 24
	InMuxValue          = 25
	InSerialLo          = 26
	InSerialHi          = 27
	InHwVerLo           = 28
	InHwVerHi           = 29
	InSwVerLo           = 30
	InSwVerHi           = 31
	InFactoryEnergy     = 32 // 0.1 kWh units
	InDesignCapacity    = 33 // 0.1 Ah units
	InSystemEnergy      = 34 // 0.1 kWh units
	InBallancerTempMax  = 35 // degC x10, +32768
	InLtcTempMax        = 36 // degC x10, +32768
	InInletOutletTemp   = 37 // raw word, low byte inlet
	InHumidity          = 38 // %RH
	InTimeToFullCharge  = 39 // min
	InTimeToFullDisch   = 40 // min
	InPowerOnCounter    = 41
	InBatteryCycles     = 42
	InErrorMap0         = 43
	InErrorMap1         = 44
	InErrorMap2         = 45
	InErrorMap3         = 46
	InDetectedIMBs      = 47
	InIotStatus         = 48
	InChargeEnergyLo    = 49 // Wh, low word
	InChargeEnergyHi    = 50
	InDischargeEnergyLo = 51
	InDischargeEnergyHi = 52
	InRecupEnergyLo     = 53
	InRecupEnergyHi     = 54
	InPacketsHi         = 55
	InPacketsLo         = 56
	InParseErrors       = 57
	// 58..63 reserved, read as zero
)

// Holding-register offsets inside a node window. Only the eight threshold
// registers accept writes; the rest are read-only echoes.
const (
	HoldThresholdBase = 0 // 0..7: FullyChargedOn..BatteryEmptyOff, % x10
	HoldThresholds    = 8
	HoldDdclCrc       = 8
	HoldDcclCrc       = 9
	HoldDrcclCrc      = 10
	HoldOcvCrc        = 11
	HoldConfigCrc     = 12
	HoldBlVerLo       = 13
	HoldBlVerHi       = 14
	HoldOdVerLo       = 15
	HoldOdVerHi       = 16
	HoldDbcVerLo      = 17
	HoldDbcVerHi      = 18
	// 19..31 reserved, read as zero, write rejected
)

// Global holding registers (offsets from GlobalHoldingBase).
const (
	HoldGlobalNodeTimeout = 0 // node comm timeout, units of 100 ms, writable
)

// Discrete-input offsets inside a node window.
const (
	DiCommOK           = 0
	DiCriticalStale    = 1
	DiReadyToCharge    = 2
	DiReadyToDischarge = 3
	DiErrMaster        = 4
	DiErrCellVoltage   = 5
	DiErrUnderVoltage  = 6
	DiErrOverVoltage   = 7
	DiErrImbalance     = 8
	DiErrUnderTemp     = 9
	DiErrOverTemp      = 10
	DiErrOverCurrent   = 11
	DiInput1           = 12
	DiInput2           = 13
	DiRelayMain        = 14
	DiRelayPrecharge   = 15
	DiRelayCharge      = 16
	DiRelayDischarge   = 17
	DiRelayHeater      = 18
	DiRelayFan         = 19
	DiFrameFreshBase   = 20 // 20..28, frame table order 0x190..0x710
	DiRelaxTimer       = 29
	DiChargeTimer      = 30
	DiCurrentRamp      = 31
)

// Coil offsets inside a node window. Writing 1 performs the action and the
// coil reads back 0.
const (
	CoilClearErrors = 0
	CoilResetNode   = 1
)

// Global coils (offsets from GlobalCoilBase).
const (
	CoilResetStats = 0
	CoilResetAll   = 1
)

// Global input window (offsets from GlobalInputBase): protocol statistics.
// 32-bit counters are exposed high word first.
const (
	GiTotalFramesHi    = 0
	GiTotalFramesLo    = 1
	GiSuccessHi        = 2
	GiSuccessLo        = 3
	GiParseErrorsHi    = 4
	GiParseErrorsLo    = 5
	GiInvalidFramesHi  = 6
	GiInvalidFramesLo  = 7
	GiUnknownMux       = 8
	GiFrameCountBase   = 9 // 9..17, low words, frame table order
	GiLastErrNode      = 18
	GiLastErrFrame     = 19
	GiLastErrKind      = 20
	GiLastErrDetail    = 21
	GiLastErrTimeSecHi = 22
	GiLastErrTimeSecLo = 23
	// 24..31 reserved, read as zero
)
