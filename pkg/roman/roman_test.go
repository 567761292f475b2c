package roman

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeKnownValues(t *testing.T) {
	cases := map[string]string{
		"1":    "I",
		"4":    "IV",
		"9":    "IX",
		"10":   "X",
		"12":   "XII",
		"40":   "XL",
		"90":   "XC",
		"400":  "CD",
		"1994": "MCMXCIV",
		"2024": "MMXXIV",
		"3999": "MMMCMXCIX",
	}
	for in, want := range cases {
		assert.Equal(t, want, Encode(in), "input %q", in)
	}
}

func TestEncodePassThrough(t *testing.T) {
	for _, in := range []string{"", "A", "9-B", "Nursery", " 9", "9 ", "-3", "1.5", "٣", "0", "4000", "99999999999999999999"} {
		assert.Equal(t, in, Encode(in), "input %q", in)
	}
}

func TestEncodeLeadingZeros(t *testing.T) {
	assert.Equal(t, "IX", Encode("09"))
	assert.Equal(t, "X", Encode("0010"))
}

func TestFromIntMatchesSymbolValues(t *testing.T) {
	values := map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}
	for n := 1; n <= MaxValue; n++ {
		numeral := Encode(strconv.Itoa(n))
		total := 0
		for i := 0; i < len(numeral); i++ {
			v := values[numeral[i]]
			if i+1 < len(numeral) && v < values[numeral[i+1]] {
				total -= v
			} else {
				total += v
			}
		}
		if !assert.Equal(t, n, total, "numeral %s", numeral) {
			return
		}
	}
}
