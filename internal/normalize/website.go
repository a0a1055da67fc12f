package normalize

import (
	"net/url"
	"strings"
)

var mapURLPatterns = []string{
	"google.com/maps",
	"maps.google.",
	"goo.gl/maps",
	"maps.app.goo.gl",
	"waze.com",
	"bing.com/maps",
	"maps.apple.com",
}

var socialDomains = []string{
	"facebook.com",
	"fb.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"linkedin.com",
	"youtube.com",
	"snapchat.com",
	"pinterest.com",
	"wa.me",
	"whatsapp.com",
	"t.me",
}

// SelectWebsite returns the first candidate that is an HTTP(S) URL and is neither a
// map-service link nor a social profile. Returns "" if none qualifies.
func SelectWebsite(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !isHTTPURL(c) || IsMapURL(c) || IsSocialURL(c) {
			continue
		}
		return c
	}
	return ""
}

// IsMapURL reports whether u points at a map service.
func IsMapURL(u string) bool {
	lower := strings.ToLower(u)
	for _, p := range mapURLPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsSocialURL reports whether u's host is a social network domain.
func IsSocialURL(u string) bool {
	host := hostOf(u)
	if host == "" {
		return false
	}
	for _, d := range socialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// SocialHandle extracts an Instagram handle from the first instagram.com candidate.
func SocialHandle(candidates ...string) string {
	for _, c := range candidates {
		host := hostOf(c)
		if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
			continue
		}
		parsed, err := url.Parse(strings.TrimSpace(c))
		if err != nil {
			continue
		}
		segment := strings.Trim(parsed.Path, "/")
		if i := strings.Index(segment, "/"); i >= 0 {
			segment = segment[:i]
		}
		switch segment {
		case "", "p", "reel", "reels", "explore", "stories", "accounts":
			continue
		}
		return "@" + strings.TrimPrefix(segment, "@")
	}
	return ""
}

func isHTTPURL(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func hostOf(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}
