package ifsbms

// Frame 0x490 multiplexes a slow inventory/diagnostic record over a
// selector byte. The selector lives at payload byte 5, the 16-bit value at
// bytes 6..8. Selectors 0x00..0x35 are in-range; a handful of them are
// reserved (accepted, kept only as raw type/value). Selectors above 0x35
// are legal too but informational only.

// MuxSelectorCount is the size of the selector space, and therefore of the
// dispatch table.
const MuxSelectorCount = 0x36

// Selector values of frame 0x490.
const (
	MuxSerialNumber0      = 0x00
	MuxSerialNumber1      = 0x01
	MuxHwVersion0         = 0x02
	MuxHwVersion1         = 0x03
	MuxSwVersion0         = 0x04
	MuxSwVersion1         = 0x05
	MuxFactoryEnergy      = 0x06
	MuxDesignCapacity     = 0x07
	MuxSystemEnergy       = 0x0C
	MuxBallancerTempMax   = 0x0D
	MuxLtcTempMax         = 0x0E
	MuxInletOutletTemp    = 0x0F
	MuxHumidity           = 0x10
	MuxErrorMap0          = 0x13
	MuxErrorMap1          = 0x14
	MuxErrorMap2          = 0x15
	MuxErrorMap3          = 0x16
	MuxTimeToFullCharge   = 0x17
	MuxTimeToFullDisch    = 0x18
	MuxPowerOnCounter     = 0x19
	MuxBatteryCycles      = 0x1A
	MuxDdclCrc            = 0x1B
	MuxDcclCrc            = 0x1C
	MuxDrcclCrc           = 0x1D
	MuxOcvCrc             = 0x1E
	MuxBlVersion0         = 0x1F
	MuxBlVersion1         = 0x20
	MuxOdVersion0         = 0x21
	MuxOdVersion1         = 0x22
	MuxIotStatus          = 0x23
	MuxFullyChargedOn     = 0x24
	MuxFullyChargedOff    = 0x25
	MuxFullyDischargedOn  = 0x26
	MuxFullyDischargedOff = 0x27
	MuxBatteryFullOn      = 0x28
	MuxBatteryFullOff     = 0x29
	MuxBatteryEmptyOn     = 0x2A
	MuxBatteryEmptyOff    = 0x2B
	MuxDetectedIMBs       = 0x2C
	MuxDbcVersion0        = 0x2D
	MuxDbcVersion1        = 0x2E
	MuxConfigCrc          = 0x2F
	MuxChargeEnergy0      = 0x30
	MuxChargeEnergy1      = 0x31
	MuxDischargeEnergy0   = 0x32
	MuxDischargeEnergy1   = 0x33
	MuxRecupEnergy0       = 0x34
	MuxRecupEnergy1       = 0x35
)

// MuxFrame is the undecoded selector/value pair of one 0x490 frame.
type MuxFrame struct {
	Selector uint8
	Value    uint16
}

// ParseMuxFrame extracts the selector and raw value of frame 0x490.
// Routing into the record happens separately via MuxRecord.Apply so the
// store can commit under its own lock.
func ParseMuxFrame(node uint8, data []byte) (*MuxFrame, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame490, Detail: uint16(len(data))}
	}
	return &MuxFrame{Selector: data[5], Value: CombineLE(data[6], data[7])}, nil
}

// MuxRecord is the dense decoded image of every named 0x490 sub-field for
// one node, plus the raw last selector/value pair.
type MuxRecord struct {
	MuxType  uint8
	MuxValue uint16

	SerialNumber [2]uint16 // low word first
	HwVersion    [2]uint16
	SwVersion    [2]uint16
	BlVersion    [2]uint16
	OdVersion    [2]uint16
	DbcVersion   [2]uint16

	FactoryEnergy  uint16 // 0.1 kWh units
	DesignCapacity uint16 // 0.1 Ah units
	SystemEnergy   uint16 // 0.1 kWh units

	BallancerTempMax float64 // degC, precision 0.1
	LtcTempMax       float64 // degC, precision 0.1
	InletTemp        uint8   // low byte of selector 0x0F
	OutletTemp       uint8   // high byte of selector 0x0F
	Humidity         uint16  // %RH

	ErrorMap [4]uint16

	TimeToFullChargeMin    uint16
	TimeToFullDischargeMin uint16
	PowerOnCounter         uint16
	BatteryCycles          uint16

	DdclCrc  uint16
	DcclCrc  uint16
	DrcclCrc uint16
	OcvCrc   uint16

	IotStatus uint16

	// Hysteresis thresholds, percent with 0.1 precision.
	FullyChargedOn     float64
	FullyChargedOff    float64
	FullyDischargedOn  float64
	FullyDischargedOff float64
	BatteryFullOn      float64
	BatteryFullOff     float64
	BatteryEmptyOn     float64
	BatteryEmptyOff    float64

	DetectedIMBs uint16
	ConfigCrc    uint16

	ChargeEnergy       [2]uint16 // low word first, Wh
	DischargeEnergy    [2]uint16
	RecuperativeEnergy [2]uint16
}

type muxEntry struct {
	name  string
	apply func(r *MuxRecord, v uint16) // nil for reserved selectors
}

// muxTable has exactly MuxSelectorCount entries, one per in-range
// selector. Reserved slots keep a nil apply.
var muxTable = [MuxSelectorCount]muxEntry{
	MuxSerialNumber0:  {"serial_number_0", func(r *MuxRecord, v uint16) { r.SerialNumber[0] = v }},
	MuxSerialNumber1:  {"serial_number_1", func(r *MuxRecord, v uint16) { r.SerialNumber[1] = v }},
	MuxHwVersion0:     {"hw_version_0", func(r *MuxRecord, v uint16) { r.HwVersion[0] = v }},
	MuxHwVersion1:     {"hw_version_1", func(r *MuxRecord, v uint16) { r.HwVersion[1] = v }},
	MuxSwVersion0:     {"sw_version_0", func(r *MuxRecord, v uint16) { r.SwVersion[0] = v }},
	MuxSwVersion1:     {"sw_version_1", func(r *MuxRecord, v uint16) { r.SwVersion[1] = v }},
	MuxFactoryEnergy:  {"factory_energy", func(r *MuxRecord, v uint16) { r.FactoryEnergy = v }},
	MuxDesignCapacity: {"design_capacity", func(r *MuxRecord, v uint16) { r.DesignCapacity = v }},
	0x08:              {"reserved_08", nil},
	0x09:              {"reserved_09", nil},
	0x0A:              {"reserved_0a", nil},
	0x0B:              {"reserved_0b", nil},
	MuxSystemEnergy:   {"system_energy", func(r *MuxRecord, v uint16) { r.SystemEnergy = v }},
	MuxBallancerTempMax: {"ballancer_temp_max", func(r *MuxRecord, v uint16) {
		r.BallancerTempMax = float64(ToSigned16(v)) * ScaleTenth
	}},
	MuxLtcTempMax: {"ltc_temp_max", func(r *MuxRecord, v uint16) {
		r.LtcTempMax = float64(ToSigned16(v)) * ScaleTenth
	}},
	MuxInletOutletTemp: {"inlet_outlet_temp", func(r *MuxRecord, v uint16) {
		// One word, split low/high. Keep the split in this single entry so
		// the interpretation stays a one-line change.
		r.InletTemp = uint8(v)
		r.OutletTemp = uint8(v >> 8)
	}},
	MuxHumidity:         {"humidity", func(r *MuxRecord, v uint16) { r.Humidity = v }},
	0x11:                {"reserved_11", nil},
	0x12:                {"reserved_12", nil},
	MuxErrorMap0:        {"error_map_0", func(r *MuxRecord, v uint16) { r.ErrorMap[0] = v }},
	MuxErrorMap1:        {"error_map_1", func(r *MuxRecord, v uint16) { r.ErrorMap[1] = v }},
	MuxErrorMap2:        {"error_map_2", func(r *MuxRecord, v uint16) { r.ErrorMap[2] = v }},
	MuxErrorMap3:        {"error_map_3", func(r *MuxRecord, v uint16) { r.ErrorMap[3] = v }},
	MuxTimeToFullCharge: {"time_to_full_charge", func(r *MuxRecord, v uint16) { r.TimeToFullChargeMin = v }},
	MuxTimeToFullDisch:  {"time_to_full_discharge", func(r *MuxRecord, v uint16) { r.TimeToFullDischargeMin = v }},
	MuxPowerOnCounter:   {"power_on_counter", func(r *MuxRecord, v uint16) { r.PowerOnCounter = v }},
	MuxBatteryCycles:    {"battery_cycles", func(r *MuxRecord, v uint16) { r.BatteryCycles = v }},
	MuxDdclCrc:          {"ddcl_crc", func(r *MuxRecord, v uint16) { r.DdclCrc = v }},
	MuxDcclCrc:          {"dccl_crc", func(r *MuxRecord, v uint16) { r.DcclCrc = v }},
	MuxDrcclCrc:         {"drccl_crc", func(r *MuxRecord, v uint16) { r.DrcclCrc = v }},
	MuxOcvCrc:           {"ocv_crc", func(r *MuxRecord, v uint16) { r.OcvCrc = v }},
	MuxBlVersion0:       {"bl_version_0", func(r *MuxRecord, v uint16) { r.BlVersion[0] = v }},
	MuxBlVersion1:       {"bl_version_1", func(r *MuxRecord, v uint16) { r.BlVersion[1] = v }},
	MuxOdVersion0:       {"od_version_0", func(r *MuxRecord, v uint16) { r.OdVersion[0] = v }},
	MuxOdVersion1:       {"od_version_1", func(r *MuxRecord, v uint16) { r.OdVersion[1] = v }},
	MuxIotStatus:        {"iot_status", func(r *MuxRecord, v uint16) { r.IotStatus = v }},
	MuxFullyChargedOn: {"fully_charged_on", func(r *MuxRecord, v uint16) {
		r.FullyChargedOn = float64(v) * ScaleTenth
	}},
	MuxFullyChargedOff: {"fully_charged_off", func(r *MuxRecord, v uint16) {
		r.FullyChargedOff = float64(v) * ScaleTenth
	}},
	MuxFullyDischargedOn: {"fully_discharged_on", func(r *MuxRecord, v uint16) {
		r.FullyDischargedOn = float64(v) * ScaleTenth
	}},
	MuxFullyDischargedOff: {"fully_discharged_off", func(r *MuxRecord, v uint16) {
		r.FullyDischargedOff = float64(v) * ScaleTenth
	}},
	MuxBatteryFullOn: {"battery_full_on", func(r *MuxRecord, v uint16) {
		r.BatteryFullOn = float64(v) * ScaleTenth
	}},
	MuxBatteryFullOff: {"battery_full_off", func(r *MuxRecord, v uint16) {
		r.BatteryFullOff = float64(v) * ScaleTenth
	}},
	MuxBatteryEmptyOn: {"battery_empty_on", func(r *MuxRecord, v uint16) {
		r.BatteryEmptyOn = float64(v) * ScaleTenth
	}},
	MuxBatteryEmptyOff: {"battery_empty_off", func(r *MuxRecord, v uint16) {
		r.BatteryEmptyOff = float64(v) * ScaleTenth
	}},
	MuxDetectedIMBs:     {"detected_imbs", func(r *MuxRecord, v uint16) { r.DetectedIMBs = v }},
	MuxDbcVersion0:      {"dbc_version_0", func(r *MuxRecord, v uint16) { r.DbcVersion[0] = v }},
	MuxDbcVersion1:      {"dbc_version_1", func(r *MuxRecord, v uint16) { r.DbcVersion[1] = v }},
	MuxConfigCrc:        {"config_crc", func(r *MuxRecord, v uint16) { r.ConfigCrc = v }},
	MuxChargeEnergy0:    {"charge_energy_0", func(r *MuxRecord, v uint16) { r.ChargeEnergy[0] = v }},
	MuxChargeEnergy1:    {"charge_energy_1", func(r *MuxRecord, v uint16) { r.ChargeEnergy[1] = v }},
	MuxDischargeEnergy0: {"discharge_energy_0", func(r *MuxRecord, v uint16) { r.DischargeEnergy[0] = v }},
	MuxDischargeEnergy1: {"discharge_energy_1", func(r *MuxRecord, v uint16) { r.DischargeEnergy[1] = v }},
	MuxRecupEnergy0:     {"recuperative_energy_0", func(r *MuxRecord, v uint16) { r.RecuperativeEnergy[0] = v }},
	MuxRecupEnergy1:     {"recuperative_energy_1", func(r *MuxRecord, v uint16) { r.RecuperativeEnergy[1] = v }},
}

// MuxSelectorName returns the table name of an in-range selector, or ""
// for selectors past the table.
func MuxSelectorName(sel uint8) string {
	if int(sel) >= MuxSelectorCount {
		return ""
	}
	return muxTable[sel].name
}

// Apply routes one selector/value pair into the record. The raw pair is
// always stored. The return value reports whether the selector was inside
// the table; out-of-table selectors are not errors, the caller counts them
// as informational.
func (r *MuxRecord) Apply(sel uint8, v uint16) bool {
	r.MuxType = sel
	r.MuxValue = v
	if int(sel) >= MuxSelectorCount {
		return false
	}
	if e := muxTable[sel]; e.apply != nil {
		e.apply(r, v)
	}
	return true
}

// SerialNumber32 combines the two serial words, lower word first.
func (r *MuxRecord) SerialNumber32() uint32 {
	return uint32(r.SerialNumber[1])<<16 | uint32(r.SerialNumber[0])
}

// ChargeEnergyWh combines the charge-energy accumulator words.
func (r *MuxRecord) ChargeEnergyWh() uint32 {
	return uint32(r.ChargeEnergy[1])<<16 | uint32(r.ChargeEnergy[0])
}

// DischargeEnergyWh combines the discharge-energy accumulator words.
func (r *MuxRecord) DischargeEnergyWh() uint32 {
	return uint32(r.DischargeEnergy[1])<<16 | uint32(r.DischargeEnergy[0])
}

// RecuperativeEnergyWh combines the recuperative-energy accumulator words.
func (r *MuxRecord) RecuperativeEnergyWh() uint32 {
	return uint32(r.RecuperativeEnergy[1])<<16 | uint32(r.RecuperativeEnergy[0])
}
