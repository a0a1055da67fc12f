package resolve

import (
	"math"

	"github.com/jonathan/bizscout/internal/types"
)

// Signal weights of the deterministic score.
const (
	WeightWhatsapp  = 0.20
	WeightInstagram = 0.10
	WeightPayments  = 0.15
	WeightReviews   = 0.20
	WeightFollowers = 0.10
	WeightAddress   = 0.10
	WeightRecent    = 0.15

	ReviewCeiling   = 200
	FollowerCeiling = 5000
)

// Band thresholds (inclusive lower bounds).
const (
	BandMediumThreshold = 0.34
	BandHighThreshold   = 0.67
)

// Score computes the deterministic score in [0, 1], rounded to 4 decimals.
func Score(s types.Signals) float64 {
	var score float64
	if s.HasWhatsapp {
		score += WeightWhatsapp
	}
	if s.HasInstagram {
		score += WeightInstagram
	}
	if s.AcceptsOnlinePayments {
		score += WeightPayments
	}
	if s.ReviewCount > 0 {
		score += WeightReviews * math.Min(float64(s.ReviewCount)/ReviewCeiling, 1)
	}
	if s.FollowerCount > 0 {
		score += WeightFollowers * math.Min(float64(s.FollowerCount)/FollowerCeiling, 1)
	}
	if s.PhysicalAddressPresent {
		score += WeightAddress
	}
	if s.RecentActivity {
		score += WeightRecent
	}
	return round4(math.Min(score, 1))
}

// Band maps a score to its band.
func Band(score float64) types.ScoreBand {
	switch {
	case score >= BandHighThreshold:
		return types.ScoreBandHigh
	case score >= BandMediumThreshold:
		return types.ScoreBandMedium
	default:
		return types.ScoreBandLow
	}
}

// Confidence measures how complete an observation is: 0.3 plus 0.2 for a website,
// 0.2 for a phone, and 0.1 each for rating, review count and address.
func Confidence(lb types.LocalBusiness, hasWebsite, hasPhone bool) float64 {
	c := 0.3
	if hasWebsite {
		c += 0.2
	}
	if hasPhone {
		c += 0.2
	}
	if lb.Rating != nil {
		c += 0.1
	}
	if lb.ReviewCount != nil {
		c += 0.1
	}
	if lb.Address != "" {
		c += 0.1
	}
	return round4(math.Min(c, 1))
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
