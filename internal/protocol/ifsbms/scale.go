package ifsbms

import "math"

// Every multi-byte field in an IFS BMS payload is little-endian
// (low byte first), regardless of the frame type.

// CombineLE assembles a 16-bit word from two payload bytes.
func CombineLE(low, high byte) uint16 {
	return uint16(high)<<8 | uint16(low)
}

// ToSigned16 reinterprets a raw word as two's-complement. Used for pack
// current and for Kelvin-offset temperatures.
func ToSigned16(raw uint16) int16 {
	return int16(raw)
}

// Fixed-point scales used on the CAN side.
const (
	ScalePackVoltage = 0.0625 // V per LSB
	ScalePackCurrent = 0.0625 // A per LSB, signed
	ScaleEnergyWh    = 0.1    // Wh per LSB
	ScaleCellVoltage = 0.0001 // V per LSB
	ScaleSOH         = 0.1    // % per LSB
	ScaleImpedance   = 0.1    // mOhm per LSB
	ScaleTenth       = 0.1

	// Temperatures come in whole Kelvin with an integer 273 offset.
	// 273, not 273.15: values are whole degrees C on the wire.
	KelvinOffset = 273
)

// DecodeVoltage converts a raw pack-voltage word to volts.
func DecodeVoltage(raw uint16) float64 { return float64(raw) * ScalePackVoltage }

// DecodeCurrent converts a raw pack-current word to amperes (signed).
func DecodeCurrent(raw uint16) float64 { return float64(ToSigned16(raw)) * ScalePackCurrent }

// DecodeCellVoltage converts a raw cell-voltage word to volts.
func DecodeCellVoltage(raw uint16) float64 { return float64(raw) * ScaleCellVoltage }

// DecodeTemperature converts a Kelvin-offset word to degrees Celsius.
func DecodeTemperature(raw uint16) int { return int(ToSigned16(raw)) - KelvinOffset }

// FloatToRegister scales a float to an unsigned holding/input register.
// Rounding is half-to-even; the result is clamped to the register range,
// both of which are observable on the Modbus wire.
func FloatToRegister(v float64, scale float64) uint16 {
	r := math.RoundToEven(v * scale)
	if r < 0 {
		return 0
	}
	if r > 65535 {
		return 65535
	}
	return uint16(r)
}

// RegisterToFloat is the inverse of FloatToRegister.
func RegisterToFloat(raw uint16, scale float64) float64 {
	return float64(raw) / scale
}

// BiasSigned encodes a signed quantity into a register by offsetting with
// +32768, after scaling with half-to-even rounding.
func BiasSigned(v float64, scale float64) uint16 {
	r := math.RoundToEven(v*scale) + 32768
	if r < 0 {
		return 0
	}
	if r > 65535 {
		return 65535
	}
	return uint16(r)
}
