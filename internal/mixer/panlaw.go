package mixer

import "math"

// ApplyStereoJoin maps a master volume and a pan position to left/right
// output gains using the equal-power (sine/cosine) law.
// pan: -1.0 = hard left, 0.0 = center, 1.0 = hard right.
func ApplyStereoJoin(volume, pan float64) (left, right float64) {
	volume = clampUnit(volume)
	pan = clampPan(pan)

	theta := (pan + 1) * math.Pi / 4
	left = clampUnit(volume * math.Cos(theta))
	right = clampUnit(volume * math.Sin(theta))
	return left, right
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampUnit(v float64) float64 { return clamp(v, 0, 1) }

func clampPan(v float64) float64 { return clamp(v, -1, 1) }
