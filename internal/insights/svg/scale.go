package svg

import (
	"fmt"
	"math"
	"strings"
)

// scale maps values onto the vertical axis of a chart area.
type scale struct {
	min, max float64
	top      float64
	height   float64
}

func newScale(minVal, maxVal, top, height float64) scale {
	if minVal > 0 {
		minVal = 0
	}
	if maxVal < 0 {
		maxVal = 0
	}
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	return scale{min: minVal, max: maxVal, top: top, height: height}
}

func (s scale) y(v float64) float64 {
	return s.top + s.height - (v-s.min)*s.height/(s.max-s.min)
}

func (s scale) tick(i, count int) float64 {
	return s.min + (s.max-s.min)*float64(i)/float64(count)
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return fmt.Sprintf("%s-%s", cleaned, suffix)
}

// CompactTick abbreviates large values with k/L/Cr suffixes.
func CompactTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 10_000_000:
		return fmt.Sprintf("%.1fCr", v/10_000_000)
	case abs >= 100_000:
		return fmt.Sprintf("%.1fL", v/100_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// PercentTick renders a whole percentage.
func PercentTick(v float64) string {
	return fmt.Sprintf("%.0f%%", v)
}

// MultipleTick renders a ratio such as an ROI.
func MultipleTick(v float64) string {
	return fmt.Sprintf("%.1fx", v)
}
