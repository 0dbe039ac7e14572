// ABOUTME: Tokenizers used by the answer-quality metrics
// ABOUTME: Word tokens for keyword and grounding scores, stemmed ROUGE tokens, whitespace tokens for BLEU
package evaluation

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// contraction suffixes split off a word the way common English tokenizers do
var contractionSuffixes = []string{"n't", "'s", "'re", "'ve", "'ll", "'d", "'m"}

// WordTokens lowercases text and splits it into word tokens. Surrounding
// punctuation is split off and contraction suffixes become their own token.
func WordTokens(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(field, isPunct)
		if word == "" {
			continue
		}
		for _, suffix := range contractionSuffixes {
			if len(word) > len(suffix) && strings.HasSuffix(word, suffix) {
				tokens = append(tokens, word[:len(word)-len(suffix)], suffix)
				word = ""
				break
			}
		}
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// Keywords returns the alphanumeric, non-stopword word tokens of text in order
func Keywords(text string) []string {
	var out []string
	for _, tok := range WordTokens(text) {
		if isAlnum(tok) && !IsStopword(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// RougeTokens lowercases text, treats every non [a-z0-9] rune as a separator
// and stems tokens longer than three characters
func RougeTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for i, tok := range fields {
		if len(tok) > 3 {
			fields[i] = english.Stem(tok, true)
		}
	}
	return fields
}

// BLEUTokens splits on whitespace without any normalization
func BLEUTokens(text string) []string {
	return strings.Fields(text)
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
