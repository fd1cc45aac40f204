// Package richtext handles the markup produced by the invitation editor.
// The core never renders markup; it only needs the plain text to test for
// blankness and a sanitized copy of admin-written rejection reasons.
package richtext

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// Strip returns markup as plain text with entities decoded and whitespace collapsed.
func Strip(markup string) string {
	if markup == "" {
		return ""
	}
	// block-level closers would otherwise glue words of adjacent paragraphs together
	spaced := strings.NewReplacer("</p>", "</p> ", "<br>", " ", "<br/>", " ", "<br />", " ").Replace(markup)
	text := html.UnescapeString(strict.Sanitize(spaced))
	return strings.Join(strings.Fields(text), " ")
}

// IsBlank reports whether markup has no visible text, e.g. "<p><br></p>".
func IsBlank(markup string) bool {
	return Strip(markup) == ""
}

// Sanitize keeps safe formatting tags and drops scripts, handlers and unknown attributes.
func Sanitize(markup string) string {
	return strings.TrimSpace(ugc.Sanitize(markup))
}
