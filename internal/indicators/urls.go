package indicators

import (
	"net/url"
	"regexp"
	"strings"
)

// urlCandidateRe matches an http(s) scheme at a word boundary followed by
// anything that is not whitespace, a quote or an angle bracket.
var urlCandidateRe = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>]+`)

// trailingPunct is stripped from the end of every candidate; it is almost
// always sentence punctuation around the link rather than part of it.
const trailingPunct = ".,);]"

// ExtractURLs returns the normalized, de-duplicated http/https URLs found in
// text, in first-seen order. Candidates that do not parse are dropped.
func ExtractURLs(text string) []string {
	matches := urlCandidateRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		normalized, ok := NormalizeURL(m)
		if !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	return urls
}

// NormalizeURL trims trailing punctuation, lowercases the host and rebuilds
// the URL as scheme://host/path[?query][#fragment]. Userinfo and port are
// not carried over. The second return value is false when the candidate is
// not a usable http/https URL.
func NormalizeURL(candidate string) (string, bool) {
	candidate = strings.TrimRight(strings.TrimSpace(candidate), trailingPunct)
	if candidate == "" {
		return "", false
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	var b strings.Builder
	b.Grow(len(candidate))
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String(), true
}

// HostOf returns the lowercased host of a URL, or "" if it has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
