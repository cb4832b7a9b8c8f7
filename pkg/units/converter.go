package units

import "math"

// ScaleFixedPoint converts a raw register value with an implied decimal point.
func ScaleFixedPoint(raw uint32, decimals int) float64 {
	if decimals <= 0 {
		return float64(raw)
	}
	return float64(raw) / math.Pow10(decimals)
}

// ToFixedPoint is the inverse of ScaleFixedPoint, clamped to the uint32 range.
func ToFixedPoint(value float64, decimals int) uint32 {
	if value <= 0 {
		return 0
	}
	scaled := math.Round(value * math.Pow10(decimals))
	if scaled > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(scaled)
}
