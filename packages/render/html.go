package render

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
	spaceRe   = regexp.MustCompile(`\s+`)

	// Quote styles are alternated because RE2 has no backreferences.
	anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*?href=(?:"([^"]*)"|'([^']*)')[^>]*>(.*?)</a>`)
)

// StripMarkup removes script, style and comment blocks from HTML.
func StripMarkup(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	return s
}

// CleanText reduces HTML to plain text: markup stripped, tags replaced
// with spaces, entities unescaped, whitespace collapsed.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = StripMarkup(s)
	s = tagRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut. A max of zero disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// Link is one extracted anchor.
type Link struct {
	URL  string
	Text string
}

// ExtractLinks pulls anchor targets out of HTML. Fragment, javascript:
// and mailto: targets are skipped; relative targets are resolved against
// baseURL when one is given.
func ExtractLinks(htmlBody, baseURL string) []Link {
	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	var links []Link
	for _, m := range anchorRe.FindAllStringSubmatch(htmlBody, -1) {
		target := m[1]
		if target == "" {
			target = m[2]
		}
		text := CleanText(m[3])

		if target == "" ||
			strings.HasPrefix(target, "#") ||
			strings.HasPrefix(target, "javascript:") ||
			strings.HasPrefix(target, "mailto:") {
			continue
		}

		if base != nil {
			if ref, err := url.Parse(target); err == nil && ref.Host == "" {
				target = base.ResolveReference(ref).String()
			}
		}
		links = append(links, Link{URL: target, Text: text})
	}
	return links
}
