package pricing

import (
	"fmt"
	"strconv"
	"strings"
)

// Display-format helpers for es-AR style numbers: dot as thousands
// separator, comma as decimal separator ("1.234,56"). These exist for the
// admin forms and the export sheet; stored values are always plain floats.

// ParseNumber converts a display-formatted number into a float. Thousands
// dots are stripped and the decimal comma becomes a dot. A leading "$" is
// tolerated because values get pasted straight from the product table.
func ParseNumber(display string) (float64, error) {
	s := strings.TrimSpace(display)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", display)
	}
	return v, nil
}

// FormatNumber renders a float as "1.234,56", always with two decimals.
func FormatNumber(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, decPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.Grow(len(s) + len(intPart)/3 + 1)
	if neg {
		b.WriteByte('-')
	}
	writeGrouped(&b, intPart)
	b.WriteByte(',')
	b.WriteString(decPart)
	return b.String()
}

// FormatInput normalizes a value while it is being typed: the integer part
// is regrouped but a trailing comma and however many decimals were entered
// are preserved, so the caret never jumps mid-edit. Input that is not a
// partially typed number comes back unchanged.
func FormatInput(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ".", "")
	if s == "" {
		return ""
	}

	intPart := s
	decPart := ""
	hasComma := false
	if i := strings.IndexByte(s, ','); i >= 0 {
		hasComma = true
		intPart = s[:i]
		decPart = strings.ReplaceAll(s[i+1:], ",", "")
	}
	if !digitsOnly(intPart) || !digitsOnly(decPart) {
		return raw
	}
	if len(decPart) > 2 {
		decPart = decPart[:2]
	}

	var b strings.Builder
	writeGrouped(&b, intPart)
	if hasComma {
		b.WriteByte(',')
		b.WriteString(decPart)
	}
	return b.String()
}

// writeGrouped inserts a dot every three digits, from the left.
func writeGrouped(b *strings.Builder, digits string) {
	if len(digits) <= 3 {
		b.WriteString(digits)
		return
	}
	rem := len(digits) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(digits[:rem])
	for i := rem; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
