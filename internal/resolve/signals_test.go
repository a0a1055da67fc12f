package resolve

import (
	"encoding/json"
	"testing"

	"github.com/jonathan/bizscout/internal/types"
	"github.com/stretchr/testify/assert"
)

func listing(raw string) types.LocalBusiness {
	return types.LocalBusiness{Name: "x", Raw: json.RawMessage(raw)}
}

func intPtr(n int) *int { return &n }

func TestKeywordListsArePinned(t *testing.T) {
	assert.Equal(t, []string{"whatsapp", "wa.me", "api.whatsapp.com"}, WhatsappKeywords)
	assert.Equal(t, []string{"instagram"}, InstagramKeywords)
	assert.Equal(t, []string{
		"shopify", "stripe", "paypal", "checkout", "online payment", "pay online",
		"apple pay", "buy now", "add to cart", "woocommerce", "telr", "paytabs", "tap payments",
	}, PaymentKeywords)
	assert.NotContains(t, PaymentKeywords, "order")
}

func TestDeriveSignals_Keywords(t *testing.T) {
	s := DeriveSignals(listing(`{"description":"Order via WhatsApp"}`))
	assert.True(t, s.HasWhatsapp)
	assert.False(t, s.AcceptsOnlinePayments, "order alone is not a payment signal")
	assert.False(t, s.HasInstagram)

	s = DeriveSignals(listing(`{"website":"https://wa.me/971501234567"}`))
	assert.True(t, s.HasWhatsapp)

	s = DeriveSignals(listing(`{"snippet":"Follow us on Instagram"}`))
	assert.True(t, s.HasInstagram)

	for _, raw := range []string{`{"a":"Powered by Shopify"}`, `{"a":"Apple Pay accepted"}`, `{"a":"ADD TO CART"}`, `{"a":"Tap Payments"}`} {
		assert.True(t, DeriveSignals(listing(raw)).AcceptsOnlinePayments, raw)
	}
}

func TestDeriveSignals_SocialHandleImpliesInstagram(t *testing.T) {
	lb := types.LocalBusiness{Name: "x", SocialHandle: "@cakehouse"}
	assert.True(t, DeriveSignals(lb).HasInstagram)
}

func TestDeriveSignals_AddressAndReviews(t *testing.T) {
	lb := listing(`{"title":"x"}`)
	lb.Address = "Al Wasl Rd"
	lb.ReviewCount = intPtr(120)
	s := DeriveSignals(lb)
	assert.True(t, s.PhysicalAddressPresent)
	assert.Equal(t, 120, s.ReviewCount)
	assert.False(t, s.RecentActivity, "review count alone is not recent activity")

	lb.Raw = json.RawMessage(`{"user_review":"Visited 3 days ago"}`)
	assert.True(t, DeriveSignals(lb).RecentActivity)

	lb.ReviewCount = nil
	assert.False(t, DeriveSignals(lb).RecentActivity, "no reviews, no recent activity")
}

func TestDeriveSignals_FollowerCount(t *testing.T) {
	assert.Equal(t, 0, DeriveSignals(listing(`{}`)).FollowerCount)
	assert.Equal(t, 1200, DeriveSignals(listing(`{"followers":1200}`)).FollowerCount)
	assert.Equal(t, 3400, DeriveSignals(listing(`{"social":{"instagram":{"follower_count":"3.4k"}}}`)).FollowerCount)
	assert.Equal(t, 2500, DeriveSignals(listing(`{"profiles":[{"followers":"1,000"},{"followers":2500}]}`)).FollowerCount)
}

func TestDeriveSignals_WithoutRaw(t *testing.T) {
	lb := types.LocalBusiness{Name: "Cake House", WebsiteURL: "https://cakehouse.ae/checkout"}
	assert.True(t, DeriveSignals(lb).AcceptsOnlinePayments)
}
