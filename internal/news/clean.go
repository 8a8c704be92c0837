package news

import (
	"regexp"
	"strings"
)

const maxDescription = 500

var (
	tagRE         = regexp.MustCompile(`<[^>]*>`)
	entityReplace = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// splitSource separates the " - Publisher" suffix the feed appends to titles.
// Titles without the suffix keep their text and get source "Unknown".
func splitSource(title string) (string, string) {
	title = strings.TrimSpace(title)
	i := strings.LastIndex(title, " - ")
	if i < 0 {
		return title, "Unknown"
	}
	source := strings.TrimSpace(title[i+3:])
	if source == "" {
		return strings.TrimSpace(title[:i]), "Unknown"
	}
	return strings.TrimSpace(title[:i]), source
}

// cleanDescription strips markup, decodes a small entity set and truncates to
// maxDescription characters.
func cleanDescription(desc string) string {
	s := tagRE.ReplaceAllString(desc, "")
	s = entityReplace.Replace(s)
	s = strings.TrimSpace(s)
	return truncate(s, maxDescription)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
