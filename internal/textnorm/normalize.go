// Package textnorm rewrites generated prose into text a speech engine reads correctly.
package textnorm

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const pauseMarker = " --"

var (
	tickerExpr   = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	cashtagExpr  = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	percentExpr  = regexp.MustCompile(`\s*%`)
	currencyExpr = regexp.MustCompile(`([$€£])\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?(?:\s*((?i:trillion|billion|million|thousand|tn|bn|mn|k|m|b|t))\b)?`)
	dateExpr     = regexp.MustCompile(`\b(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	spacesExpr   = regexp.MustCompile(`[ \t]{2,}`)
	amountExpr   = regexp.MustCompile(`[$€£]\d[\d,.]*\s*$`)
)

// scaleTokens are uppercase scale suffixes the currency rule reads after an amount.
var scaleTokens = map[string]bool{"BN": true, "TN": true, "MN": true, "B": true, "M": true, "K": true, "T": true}

var currencyNames = map[string][2]string{
	"$": {"dollar", "dollars"},
	"€": {"euro", "euros"},
	"£": {"pound", "pounds"},
}

var scaleWords = map[string]string{
	"k": "thousand", "thousand": "thousand",
	"m": "million", "mn": "million", "million": "million",
	"b": "billion", "bn": "billion", "billion": "billion",
	"t": "trillion", "tn": "trillion", "trillion": "trillion",
}

var monthNames = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April", "may": "May", "jun": "June",
	"jul": "July", "aug": "August", "sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// Abbreviations maps tokens to the form a narrator should say. Tickers in this table
// are left to the abbreviation rule instead of being spelled as tickers.
var Abbreviations = map[string]string{
	"CEO":  "C-E-O",
	"CEOs": "C-E-Os",
	"CFO":  "C-F-O",
	"CFOs": "C-F-Os",
	"COO":  "C-O-O",
	"COOs": "C-O-Os",
	"CTO":  "C-T-O",
	"CTOs": "C-T-Os",
	"GDP":  "G-D-P",
	"IPO":  "I-P-O",
	"IPOs": "I-P-Os",
	"AI":   "A-I",
	"EV":   "E-V",
	"EVs":  "E-Vs",
	"EPS":  "E-P-S",
	"CPI":  "C-P-I",
	"PPI":  "P-P-I",
	"PCE":  "P-C-E",
	"ETF":  "E-T-F",
	"ETFs": "E-T-Fs",
	"SEC":  "S-E-C",
	"FOMC": "F-O-M-C",
	"ECB":  "E-C-B",
	"OPEC": "OPEC",
	"NASA": "NASA",
	"US":   "U-S",
	"USA":  "U-S-A",
	"U.S.": "U-S",
	"UK":   "U-K",
	"EU":   "E-U",
	"YoY":  "year over year",
	"QoQ":  "quarter over quarter",
	"M&A":  "M and A",
	"P/E":  "P-E",
	"S&P":  "S and P",
	"Q1":   "first quarter",
	"Q2":   "second quarter",
	"Q3":   "third quarter",
	"Q4":   "fourth quarter",
}

var abbreviationExpr = buildAbbreviationExpr()

func buildAbbreviationExpr() *regexp.Regexp {
	keys := make([]string, 0, len(Abbreviations))
	for k := range Abbreviations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	// Keys may end in punctuation ("U.S."), so the right edge is checked by hand.
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

// Normalize applies the speech rules in their fixed order: tickers, percent signs,
// currency, abbreviations, then short dates. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = expandTickers(text)
	text = percentExpr.ReplaceAllString(text, " percent")
	text = expandCurrency(text)
	text = expandAbbreviations(text)
	text = expandDates(text)
	return collapseSpaces(text)
}

func expandTickers(text string) string {
	text = cashtagExpr.ReplaceAllString(text, "$1")
	return replaceMatches(text, tickerExpr, func(start, end int) (string, int, bool) {
		token := text[start:end]
		if _, ok := Abbreviations[token]; ok {
			return "", end, false
		}
		if start > 0 && text[start-1] == '-' {
			return "", end, false
		}
		if end < len(text) && text[end] == '-' {
			return "", end, false
		}
		if scaleTokens[token] && amountExpr.MatchString(text[:start]) {
			return "", end, false
		}

		suffix := ""
		if strings.HasPrefix(text[end:], "'s") {
			suffix = "'s"
			end += 2
		}
		return spellLetters(token) + suffix + pauseMarker, end, true
	})
}

func spellLetters(token string) string {
	letters := make([]string, 0, len(token))
	for _, r := range token {
		letters = append(letters, string(r))
	}
	return strings.Join(letters, "-")
}

func expandCurrency(text string) string {
	return replaceMatches(text, currencyExpr, func(start, end int) (string, int, bool) {
		idx := currencyExpr.FindStringSubmatchIndex(text[start:end])
		group := func(n int) string {
			if idx[2*n] < 0 {
				return ""
			}
			return text[start+idx[2*n] : start+idx[2*n+1]]
		}
		names := currencyNames[group(1)]

		whole, err := strconv.ParseInt(strings.ReplaceAll(group(2), ",", ""), 10, 64)
		if err != nil || whole >= 1_000_000_000_000_000 {
			return "", end, false
		}

		spoken := spellInt(whole)
		fraction := group(3)
		if fraction != "" {
			spoken += " point " + spellDigits(fraction)
		}

		scale := scaleWords[strings.ToLower(group(4))]
		// "M&A" or "P/E" after an amount is an abbreviation, not a scale.
		if scale != "" && end < len(text) && (text[end] == '&' || text[end] == '/') {
			scale = ""
			end = start + idx[5]
			if fraction != "" {
				end = start + idx[7]
			}
		}

		if scale != "" {
			return spoken + " " + scale + " " + names[1], end, true
		}
		if whole == 1 && fraction == "" {
			return spoken + " " + names[0], end, true
		}
		return spoken + " " + names[1], end, true
	})
}

func expandAbbreviations(text string) string {
	return replaceMatches(text, abbreviationExpr, func(start, end int) (string, int, bool) {
		if end < len(text) && isWordByte(text[end]) {
			return "", end, false
		}
		return Abbreviations[text[start:end]], end, true
	})
}

func expandDates(text string) string {
	return dateExpr.ReplaceAllStringFunc(text, func(match string) string {
		parts := dateExpr.FindStringSubmatch(match)
		month := monthNames[strings.ToLower(parts[1][:3])]
		day, err := strconv.Atoi(parts[2])
		if err != nil {
			return match
		}
		spoken, ok := ordinal(day)
		if !ok {
			return match
		}
		return month + " " + spoken
	})
}

func collapseSpaces(text string) string {
	text = spacesExpr.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// replaceMatches rewrites regexp matches through fn, which may decline a match or
// extend it to a new end offset.
func replaceMatches(text string, expr *regexp.Regexp, fn func(start, end int) (string, int, bool)) string {
	var b strings.Builder
	last := 0
	for _, loc := range expr.FindAllStringIndex(text, -1) {
		if loc[0] < last {
			continue
		}
		replacement, end, ok := fn(loc[0], loc[1])
		if !ok {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(replacement)
		last = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
