package resolve

import (
	"testing"

	"github.com/jonathan/bizscout/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestScore_Weights(t *testing.T) {
	assert.Equal(t, 0.0, Score(types.Signals{}))
	assert.Equal(t, 0.2, Score(types.Signals{HasWhatsapp: true}))
	assert.Equal(t, 0.1, Score(types.Signals{HasInstagram: true}))
	assert.Equal(t, 0.15, Score(types.Signals{AcceptsOnlinePayments: true}))
	assert.Equal(t, 0.1, Score(types.Signals{PhysicalAddressPresent: true}))
	assert.Equal(t, 0.15, Score(types.Signals{RecentActivity: true}))
	assert.Equal(t, 0.12, Score(types.Signals{ReviewCount: 120}))
	assert.Equal(t, 0.2, Score(types.Signals{ReviewCount: 5000}))
	assert.Equal(t, 0.05, Score(types.Signals{FollowerCount: 2500}))
	assert.Equal(t, 0.1, Score(types.Signals{FollowerCount: 100000}))
	assert.Equal(t, 0.32, Score(types.Signals{HasWhatsapp: true, ReviewCount: 120}))
}

func TestScore_BoundsForAllCombinations(t *testing.T) {
	counts := []int{0, 1, 199, 200, 10000}
	for mask := 0; mask < 32; mask++ {
		for _, reviews := range counts {
			for _, followers := range counts {
				s := types.Signals{
					HasWhatsapp:            mask&1 != 0,
					HasInstagram:           mask&2 != 0,
					AcceptsOnlinePayments:  mask&4 != 0,
					PhysicalAddressPresent: mask&8 != 0,
					RecentActivity:         mask&16 != 0,
					ReviewCount:            reviews,
					FollowerCount:          followers,
				}
				score := Score(s)
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 1.0)
				assert.Equal(t, Band(score), Band(Score(s)))
			}
		}
	}

	all := types.Signals{
		HasWhatsapp: true, HasInstagram: true, AcceptsOnlinePayments: true,
		PhysicalAddressPresent: true, RecentActivity: true, FollowerCount: 5000, ReviewCount: 200,
	}
	assert.Equal(t, 1.0, Score(all))
}

func TestBand_Boundaries(t *testing.T) {
	assert.Equal(t, types.ScoreBandLow, Band(0))
	assert.Equal(t, types.ScoreBandLow, Band(0.3399))
	assert.Equal(t, types.ScoreBandMedium, Band(0.34))
	assert.Equal(t, types.ScoreBandMedium, Band(0.6699))
	assert.Equal(t, types.ScoreBandHigh, Band(0.67))
	assert.Equal(t, types.ScoreBandHigh, Band(1))

	// Sums that land on a boundary after rounding.
	assert.Equal(t, types.ScoreBandMedium, Band(Score(types.Signals{HasWhatsapp: true, ReviewCount: 140})))
	assert.Equal(t, types.ScoreBandHigh, Band(Score(types.Signals{HasWhatsapp: true, AcceptsOnlinePayments: true, HasInstagram: true, PhysicalAddressPresent: true, ReviewCount: 120})))
}

func TestConfidence(t *testing.T) {
	rating := 4.5
	reviews := 10
	assert.Equal(t, 0.3, Confidence(types.LocalBusiness{}, false, false))
	assert.Equal(t, 0.5, Confidence(types.LocalBusiness{}, true, false))
	assert.Equal(t, 0.8, Confidence(types.LocalBusiness{ReviewCount: &reviews}, true, true))
	full := types.LocalBusiness{Rating: &rating, ReviewCount: &reviews, Address: "x"}
	assert.Equal(t, 1.0, Confidence(full, true, true))
}
