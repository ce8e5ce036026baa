package utils

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	nonNumericRegex    = regexp.MustCompile(`[^0-9.\-]`)
	numericPrefixRegex = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// CleanNumber parses a broker-formatted amount such as "1.234,56", "1,234.56",
// "1234,56" or "$ -12.5". When both separators appear, the first one is the
// thousands separator. A lone comma is the decimal point. Anything that is not a
// digit, '.' or '-' is dropped, and the longest numeric prefix is parsed.
// Unparseable input yields 0.
func CleanNumber(val string) float64 {
	s := strings.TrimSpace(val)
	if s == "" {
		return 0
	}

	comma, dot := strings.Index(s, ","), strings.Index(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma < dot {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	s = nonNumericRegex.ReplaceAllString(s, "")
	prefix := strings.TrimSuffix(numericPrefixRegex.FindString(s), ".")
	if prefix == "" || prefix == "-" {
		return 0
	}

	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	if f == 0 {
		return 0
	}
	return f
}

// RoundFloat rounds half away from zero to the given number of decimal places.
func RoundFloat(val float64, places int32) float64 {
	return decimal.NewFromFloat(val).Round(places).InexactFloat64()
}

// SumFloats adds values with decimal arithmetic so long P&L columns do not drift.
func SumFloats(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}
