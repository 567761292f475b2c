// Package roman renders class levels as classical Roman numerals.
package roman

import (
	"strconv"
	"strings"
)

// MaxValue is the largest number expressible without overline notation.
const MaxValue = 3999

var table = []struct {
	value  int
	symbol string
}{
	{1000, "M"},
	{900, "CM"},
	{500, "D"},
	{400, "CD"},
	{100, "C"},
	{90, "XC"},
	{50, "L"},
	{40, "XL"},
	{10, "X"},
	{9, "IX"},
	{5, "V"},
	{4, "IV"},
	{1, "I"},
}

// Encode converts a string of ASCII digits in 1..MaxValue to a Roman numeral.
// Anything else, including "0", an empty string and out-of-range numbers, is
// returned unchanged. Leading zeros are accepted.
func Encode(value string) string {
	if !isDigits(value) {
		return value
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > MaxValue {
		return value
	}
	return FromInt(n)
}

// FromInt converts n greedily using the subtractive table. n must be in 1..MaxValue.
func FromInt(n int) string {
	var b strings.Builder
	for _, entry := range table {
		for n >= entry.value {
			b.WriteString(entry.symbol)
			n -= entry.value
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
