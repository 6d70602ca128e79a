package textnorm

import "strings"

var (
	smallNumbers = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tensNumbers = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	scaleNames  = []string{"", "thousand", "million", "billion", "trillion"}

	ordinalWords = []string{
		"", "first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth",
		"tenth", "eleventh", "twelfth", "thirteenth", "fourteenth", "fifteenth", "sixteenth",
		"seventeenth", "eighteenth", "nineteenth", "twentieth", "twenty-first", "twenty-second",
		"twenty-third", "twenty-fourth", "twenty-fifth", "twenty-sixth", "twenty-seventh",
		"twenty-eighth", "twenty-ninth", "thirtieth", "thirty-first",
	}
)

// spellInt renders a non-negative integer below one quadrillion in words.
func spellInt(n int64) string {
	if n < 20 {
		return smallNumbers[n]
	}

	var groups []string
	for scale := 0; n > 0; scale++ {
		chunk := n % 1000
		n /= 1000
		if chunk == 0 {
			continue
		}
		words := spellHundreds(int(chunk))
		if scaleNames[scale] != "" {
			words += " " + scaleNames[scale]
		}
		groups = append([]string{words}, groups...)
	}
	return strings.Join(groups, " ")
}

func spellHundreds(n int) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, smallNumbers[n/100], "hundred")
		n %= 100
	}
	switch {
	case n == 0:
	case n < 20:
		parts = append(parts, smallNumbers[n])
	case n%10 == 0:
		parts = append(parts, tensNumbers[n/10])
	default:
		parts = append(parts, tensNumbers[n/10]+"-"+smallNumbers[n%10])
	}
	return strings.Join(parts, " ")
}

// spellDigits reads a digit string one digit at a time ("05" -> "zero five").
func spellDigits(digits string) string {
	words := make([]string, 0, len(digits))
	for _, r := range digits {
		if r < '0' || r > '9' {
			continue
		}
		words = append(words, smallNumbers[r-'0'])
	}
	return strings.Join(words, " ")
}

func ordinal(day int) (string, bool) {
	if day < 1 || day >= len(ordinalWords) {
		return "", false
	}
	return ordinalWords[day], true
}
