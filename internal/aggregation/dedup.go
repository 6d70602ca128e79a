package aggregation

import (
	"sort"
	"strings"
	"unicode/utf8"

	"Briefcaster/internal/domain"
)

const (
	longWordMinRunes  = 5
	strongSignatureAt = 2
	signatureSep      = "\x1f"
)

// Deduplicate drops items whose topic signature was already seen. Items with fewer than
// two signature tokens are always kept because their fingerprint is too weak to judge.
// Relative order of first occurrence is preserved; the input slice is not modified.
func Deduplicate(items []*domain.ContentItem) []*domain.ContentItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]*domain.ContentItem, 0, len(items))

	for _, item := range items {
		sig := Signature(item)
		if len(sig) < strongSignatureAt {
			out = append(out, item)
			continue
		}

		key := strings.Join(sig, signatureSep)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Signature returns the item's topic signature, computing and storing it on first use.
func Signature(item *domain.ContentItem) []string {
	if item.TopicSignature != nil {
		return item.TopicSignature
	}
	if item.Tickers == nil {
		item.Tickers = domain.ExtractTickers(item.Title)
	}
	item.TopicSignature = computeSignature(item.Title, item.Tickers)
	return item.TopicSignature
}

func computeSignature(title string, tickers []string) []string {
	tokens := make(map[string]struct{}, len(tickers)+8)
	isTicker := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		tokens[t] = struct{}{}
		isTicker[t] = struct{}{}
	}

	for _, word := range strings.Fields(title) {
		word = strings.Trim(word, `.,!?()[]{}:;"'`)
		if _, ok := isTicker[word]; ok {
			continue
		}
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) >= longWordMinRunes {
			tokens[word] = struct{}{}
		}
	}

	sig := make([]string, 0, len(tokens))
	for t := range tokens {
		sig = append(sig, t)
	}
	sort.Strings(sig)
	return sig
}
