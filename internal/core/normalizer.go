// ABOUTME: Text normalization applied to post bodies and comments before embedding
// ABOUTME: Strips markdown link targets and collapses whitespace
package core

import (
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	whitespaceRe   = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)
)

// Clean replaces [label](url) with label, collapses whitespace runs to a
// single space and trims the result. Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	// nested links like [[a](b)](c) expose a new link after one pass
	for {
		next := markdownLinkRe.ReplaceAllString(text, "$1")
		if next == text {
			break
		}
		text = next
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
