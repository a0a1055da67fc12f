package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignals_Merge(t *testing.T) {
	first := Signals{HasInstagram: true, ReviewCount: 40, FollowerCount: 900}
	second := Signals{HasWhatsapp: true, ReviewCount: 12, FollowerCount: 1500}

	merged := first.Merge(second)

	assert.True(t, merged.HasWhatsapp)
	assert.True(t, merged.HasInstagram)
	assert.False(t, merged.AcceptsOnlinePayments)
	assert.Equal(t, 40, merged.ReviewCount)
	assert.Equal(t, 1500, merged.FollowerCount)
}

func TestSignals_MergeNeverDowngrades(t *testing.T) {
	full := Signals{HasWhatsapp: true, HasInstagram: true, AcceptsOnlinePayments: true,
		PhysicalAddressPresent: true, RecentActivity: true, ReviewCount: 10, FollowerCount: 10}

	assert.Equal(t, full, full.Merge(Signals{}))
	assert.Equal(t, full, Signals{}.Merge(full))
}

func TestTaskType_Valid(t *testing.T) {
	for _, tt := range AllTaskTypes() {
		assert.True(t, tt.Valid(), string(tt))
	}
	assert.False(t, TaskType("IMAGE_SEARCH").Valid())
	assert.False(t, TaskType("").Valid())
}

func TestTaskType_PageSize(t *testing.T) {
	assert.Equal(t, 10, TaskTypeWebSearch.PageSize())
	assert.Equal(t, 10, TaskTypeCSESearch.PageSize())
	assert.Equal(t, 20, TaskTypeLocalSearch.PageSize())
	assert.Equal(t, 20, TaskTypeMapsSearch.PageSize())
}

func TestNormalizedResults_Empty(t *testing.T) {
	var nilResults *NormalizedResults
	assert.True(t, nilResults.Empty())
	assert.True(t, (&NormalizedResults{}).Empty())
	assert.False(t, (&NormalizedResults{OrganicResults: []OrganicResult{{URL: "https://a.com"}}}).Empty())
}
