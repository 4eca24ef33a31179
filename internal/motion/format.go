package motion

import (
	"fmt"
	"math"
)

// formatAxis renders an axis or extruder value with six fractional digits.
func formatAxis(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

// formatHeater renders a heater target with one fractional digit.
func formatHeater(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// scaleDuty converts a 0..1 duty float to a 0..255 integer, rounding
// rather than truncating.
func scaleDuty(v float64) int {
	scaled := int(math.Round(v * 255))
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return scaled
}
