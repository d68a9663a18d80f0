package chat

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// extractURLHosts returns the lowercased host of every http(s) URL found in
// body.
func extractURLHosts(body string) []string {
	matches := urlPattern.FindAllString(body, -1)
	hosts := make([]string, 0, len(matches))
	for _, raw := range matches {
		raw = strings.TrimRight(raw, ".,!?)")
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, strings.ToLower(u.Host))
	}
	return hosts
}
