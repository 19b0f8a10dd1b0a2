// Package money contains the numeric coercion helpers shared by the cart,
// settings, and checkout layers. The commerce API is loose about numbers:
// prices arrive as floats, ints, or strings with thousands separators, and a
// missing or malformed value must degrade to zero rather than fail the page.
package money

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Parse coerces an arbitrary JSON-shaped value into a naira amount. Thousands
// separators are stripped before parsing; empty, nil, or non-numeric inputs
// yield 0.
func Parse(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case float32:
		return Parse(float64(v))
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		return ParseString(v.String())
	case string:
		return ParseString(v)
	default:
		return 0
	}
}

// ParseString strips `,` separators and parses the remainder as a float,
// returning 0 when the result is not a finite number.
func ParseString(value string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// Kobo converts a naira amount to the gateway's minor unit, rounding to the
// nearest kobo. Negative amounts clamp to zero; the gateway rejects them
// anyway.
func Kobo(amount float64) int64 {
	if amount <= 0 {
		return 0
	}
	return int64(math.Round(amount * 100))
}

// Format renders an amount with thousands separators for user-facing notes
// and log lines, e.g. 10000 -> "10,000". Whole amounts drop the decimals.
func Format(amount float64) string {
	if amount == math.Trunc(amount) {
		return printer.Sprintf("%d", int64(amount))
	}
	return printer.Sprintf("%.2f", amount)
}
