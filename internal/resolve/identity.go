package resolve

import (
	"net"
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/publicsuffix"
)

// RootDomain returns the registrable domain (eTLD+1) of a website URL, e.g.
// "https://shop.cakehouse.co.uk/menu" -> "cakehouse.co.uk". Returns "" when no
// domain can be derived.
func RootDomain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// NormalizePhone converts a phone number to E.164 using defaultRegion (ISO 3166-1
// alpha-2) for numbers without a country prefix. Numbers that cannot be parsed fall
// back to "+" and their digits when written in international form, otherwise "".
func NormalizePhone(raw, defaultRegion string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if num, err := phonenumbers.Parse(raw, region); err == nil && phonenumbers.IsPossibleNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if strings.HasPrefix(raw, "+") && len(digits) >= 7 && len(digits) <= 15 {
		return "+" + digits
	}
	if strings.HasPrefix(raw, "00") && len(digits) >= 9 && len(digits) <= 17 {
		return "+" + digits[2:]
	}
	return ""
}
