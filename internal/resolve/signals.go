package resolve

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jonathan/bizscout/internal/types"
)

// Keyword lists matched against the lowercased raw listing JSON.
var (
	WhatsappKeywords  = []string{"whatsapp", "wa.me", "api.whatsapp.com"}
	InstagramKeywords = []string{"instagram"}
	PaymentKeywords   = []string{
		"shopify", "stripe", "paypal", "checkout", "online payment", "pay online",
		"apple pay", "buy now", "add to cart", "woocommerce", "telr", "paytabs", "tap payments",
	}
	RecencyMarkers = []string{"hours ago", "a day ago", "days ago", "a week ago", "weeks ago"}
)

var followerKeys = map[string]bool{"followers": true, "follower_count": true}

// DeriveSignals computes heuristic signals for a listing.
func DeriveSignals(lb types.LocalBusiness) types.Signals {
	text := listingText(lb)

	reviews := 0
	if lb.ReviewCount != nil && *lb.ReviewCount > 0 {
		reviews = *lb.ReviewCount
	}

	return types.Signals{
		HasWhatsapp:            containsAny(text, WhatsappKeywords),
		HasInstagram:           containsAny(text, InstagramKeywords) || lb.SocialHandle != "",
		AcceptsOnlinePayments:  containsAny(text, PaymentKeywords),
		PhysicalAddressPresent: strings.TrimSpace(lb.Address) != "",
		RecentActivity:         reviews > 0 && containsAny(text, RecencyMarkers),
		FollowerCount:          followerCount(lb.Raw),
		ReviewCount:            reviews,
	}
}

func listingText(lb types.LocalBusiness) string {
	raw := lb.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(lb)
	}
	return strings.ToLower(string(raw))
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// followerCount returns the largest follower count found under a "followers" or
// "follower_count" key anywhere in the raw JSON.
func followerCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0
	}
	return walkFollowers(doc)
}

func walkFollowers(v any) int {
	best := 0
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if followerKeys[strings.ToLower(k)] {
				best = max(best, toInt(child))
			}
			best = max(best, walkFollowers(child))
		}
	case []any:
		for _, child := range node {
			best = max(best, walkFollowers(child))
		}
	}
	return best
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
		mult := 1.0
		switch {
		case strings.HasSuffix(s, "k"):
			mult, s = 1_000, strings.TrimSuffix(s, "k")
		case strings.HasSuffix(s, "m"):
			mult, s = 1_000_000, strings.TrimSuffix(s, "m")
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f * mult)
		}
	}
	return 0
}
