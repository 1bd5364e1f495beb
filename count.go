package tiktok

import (
	"math"
	"strconv"
	"strings"
)

// parseCount converts displayed counts like "987", "1,204", "12.5K" or "3M"
// into integers. ok is false when the text is not a count.
func parseCount(text string) (n int, ok bool) {
	t := strings.ToUpper(strings.TrimSpace(text))
	t = strings.ReplaceAll(t, ",", "")
	if t == "" {
		return 0, false
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(t, "K"):
		mult = 1_000
	case strings.HasSuffix(t, "M"):
		mult = 1_000_000
	case strings.HasSuffix(t, "B"):
		mult = 1_000_000_000
	}
	if mult != 1 {
		t = strings.TrimSpace(t[:len(t)-1])
	}

	f, err := strconv.ParseFloat(t, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	v := math.Round(f * mult)
	if v >= float64(math.MaxInt) {
		return 0, false
	}
	return int(v), true
}

// countPtr is parseCount for optional fields.
func countPtr(text string) *int {
	n, ok := parseCount(text)
	if !ok {
		return nil
	}
	return &n
}
