package client

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	errEmptyPrice    = errors.New("empty price")
	errNegativePrice = errors.New("negative price")
)

// ParsePrice reads a localized price such as "1 234,56 zł" or "1.234,56 €".
// When both separators are present the last one is the decimal separator;
// a lone comma is always decimal, a lone dot only if it is not followed by
// exactly three digits.
func ParsePrice(text string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsDigit(r), r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	// separators around the number belong to the text, as in "zł."
	raw := strings.Trim(b.String(), ",.")
	if raw == "" || strings.Trim(raw, ",.-") == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", errEmptyPrice, text)
	}

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(raw, ",") > 1 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.Replace(raw, ",", ".", 1)
		}
	case lastDot >= 0 && strings.Count(raw, ".") > 1:
		raw = strings.ReplaceAll(raw, ".", "")
	case lastDot >= 0 && len(raw)-lastDot-1 == 3:
		// "1.234 zł": a lone dot before exactly three digits groups thousands
		raw = strings.Replace(raw, ".", "", 1)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed price %q: %w", text, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", errNegativePrice, text)
	}
	return price, nil
}

// FormatPrice renders a price the way the storefront displays it.
func FormatPrice(price decimal.Decimal) string {
	fixed := price.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteRune(' ')
		}
		grouped.WriteRune(r)
	}
	return grouped.String() + "," + frac + " zł"
}
