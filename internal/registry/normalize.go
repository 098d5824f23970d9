package registry

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize produces the canonical form of a URL used as the deduplication
// key: parse, strip trailing slashes from the path (empty path becomes "/"),
// sort query parameters lexicographically by key, drop the fragment, then
// lowercase the full serialized result.
//
// Input that does not parse as an absolute URL falls back to lowercasing the
// raw string. The fallback is deliberate: an unparseable URL is still a
// legitimate registry key, just without canonicalization.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.ToLower(trimmed)
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		path = "/"
	}
	parsed.Path = path
	parsed.RawPath = ""

	if parsed.RawQuery != "" {
		parsed.RawQuery = sortQuery(parsed.Query())
	}

	return strings.ToLower(parsed.String())
}

// sortQuery serializes query parameters sorted by key, then by value within
// a repeated key, so any ordering of the same parameters compares equal.
func sortQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for i, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for j, v := range vals {
			if i > 0 || j > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(url.QueryEscape(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(v))
		}
	}
	return buf.String()
}
