package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips markup from a short label and trims surrounding space.
// Entities produced by the policy are decoded again so "A&B" stays as typed;
// templates escape on output.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// Tags sanitizes each tag, re-splits on whitespace left behind by removed
// markup, and drops tags that end up empty.
func Tags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, strings.Fields(Text(tag))...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
