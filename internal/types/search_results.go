package types

import "encoding/json"

// OrganicResult is one canonical organic (web) search result.
type OrganicResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet,omitempty"`
	DisplayText string `json:"display_text,omitempty"`
	Position    int    `json:"position"`
}

// LocalBusiness is one canonical local/maps listing.
type LocalBusiness struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CanonicalURL string   `json:"canonical_url,omitempty"` // provider's own listing URL
	WebsiteURL   string   `json:"website_url,omitempty"`   // business website, never a maps/social URL
	Address      string   `json:"address,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	City         string   `json:"city,omitempty"`
	Category     string   `json:"category,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewCount  *int     `json:"review_count,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	SocialHandle string   `json:"social_handle,omitempty"`
	Position     int      `json:"position"`

	// Raw is the provider's original JSON object for this listing.
	Raw json.RawMessage `json:"-"`
}

// NormalizedResults is the canonical model every provider payload is mapped into.
type NormalizedResults struct {
	OrganicResults  []OrganicResult `json:"organic_results"`
	LocalBusinesses []LocalBusiness `json:"local_businesses"`
	// DroppedLocal counts local entries skipped for having neither title nor name.
	// They produce no business and no evidence.
	DroppedLocal int `json:"dropped_local,omitempty"`
}

// Empty reports whether the provider returned no usable results at all.
func (n *NormalizedResults) Empty() bool {
	return n == nil || (len(n.OrganicResults) == 0 && len(n.LocalBusinesses) == 0)
}
