package format

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// NotAvailable is rendered for absent fields that have no numeric default.
const NotAvailable = "N/A"

// Grouped renders f with thousands separators and at most three fraction digits.
func Grouped(f float64) string {
	return humanize.Commaf(roundTo(f, 3))
}

// Plain renders f without grouping and with the shortest exact representation.
func Plain(f float64) string {
	return strconv.FormatFloat(roundTo(f, 6), 'f', -1, 64)
}

// Fixed renders f with exactly n fraction digits.
func Fixed(f float64, n int) string {
	return strconv.FormatFloat(f, 'f', n, 64)
}

// Percent renders a [0,1] ratio as a percentage with one decimal.
func Percent(ratio float64) string {
	return Fixed(ratio*100, 1) + "%"
}

// Signed renders f with two decimals and an explicit plus sign for non-negative values.
func Signed(f float64) string {
	s := Fixed(f, 2)
	if f >= 0 {
		return "+" + s
	}
	return s
}

func roundTo(f float64, digits int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	p := math.Pow(10, float64(digits))
	r := math.Round(f*p) / p
	if r == 0 {
		return 0
	}
	return r
}

func numberOrNA(x Value, render func(float64) string) string {
	if f, ok := x.Number(); ok {
		return render(f)
	}
	return NotAvailable
}
