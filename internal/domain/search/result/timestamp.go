package result

import (
	"fmt"
	"math"
)

// FormatTimestamp renders seconds as HH:MM:SS.mmm. Negative or NaN input yields "".
func FormatTimestamp(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return ""
	}
	whole := math.Floor(sec)
	ms := int(math.Round((sec - whole) * 1000))
	total := int(whole)
	if ms == 1000 {
		total++
		ms = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
