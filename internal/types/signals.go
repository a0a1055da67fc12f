package types

// Signals are the heuristic contact/activity indicators derived for a business.
type Signals struct {
	HasWhatsapp            bool `json:"has_whatsapp"`
	HasInstagram           bool `json:"has_instagram"`
	AcceptsOnlinePayments  bool `json:"accepts_online_payments"`
	PhysicalAddressPresent bool `json:"physical_address_present"`
	RecentActivity         bool `json:"recent_activity"`
	FollowerCount          int  `json:"follower_count"`
	ReviewCount            int  `json:"review_count"`
}

// Merge combines two observations: booleans by OR, counts by max.
func (s Signals) Merge(other Signals) Signals {
	return Signals{
		HasWhatsapp:            s.HasWhatsapp || other.HasWhatsapp,
		HasInstagram:           s.HasInstagram || other.HasInstagram,
		AcceptsOnlinePayments:  s.AcceptsOnlinePayments || other.AcceptsOnlinePayments,
		PhysicalAddressPresent: s.PhysicalAddressPresent || other.PhysicalAddressPresent,
		RecentActivity:         s.RecentActivity || other.RecentActivity,
		FollowerCount:          max(s.FollowerCount, other.FollowerCount),
		ReviewCount:            max(s.ReviewCount, other.ReviewCount),
	}
}

// ScoreBand buckets a deterministic score.
type ScoreBand string

// ScoreBand constants
const (
	ScoreBandLow    ScoreBand = "LOW"
	ScoreBandMedium ScoreBand = "MEDIUM"
	ScoreBandHigh   ScoreBand = "HIGH"
)

// SourceType classifies a discovered URL.
type SourceType string

// SourceType constants
const (
	SourceTypeDirectory   SourceType = "DIRECTORY"
	SourceTypeSMBSite     SourceType = "SMB_SITE"
	SourceTypeSocial      SourceType = "SOCIAL"
	SourceTypeMarketplace SourceType = "MARKETPLACE"
	SourceTypeUnknown     SourceType = "UNKNOWN"
)
