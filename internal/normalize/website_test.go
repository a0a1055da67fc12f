package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectWebsite(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"first plain site", []string{"https://cakehouse.ae", "https://other.ae"}, "https://cakehouse.ae"},
		{"skips google maps", []string{"https://www.google.com/maps/place/x", "https://cakehouse.ae"}, "https://cakehouse.ae"},
		{"skips short maps links", []string{"https://maps.app.goo.gl/abc", "https://goo.gl/maps/xyz", "http://cakehouse.ae"}, "http://cakehouse.ae"},
		{"skips maps subdomain", []string{"https://maps.google.ae/?cid=1", "https://cakehouse.ae"}, "https://cakehouse.ae"},
		{"skips other map services", []string{"https://waze.com/ul?ll=1", "https://www.bing.com/maps?q=x", "https://maps.apple.com/?q=x"}, ""},
		{"skips social", []string{"https://www.instagram.com/cakehouse", "https://facebook.com/cakehouse", "https://wa.me/971501234567", "https://cakehouse.ae"}, "https://cakehouse.ae"},
		{"skips non http", []string{"", "mailto:hi@cakehouse.ae", "cakehouse.ae", "https://cakehouse.ae"}, "https://cakehouse.ae"},
		{"none", []string{"https://x.com/cakehouse"}, ""},
		{"lookalike domain is not social", []string{"https://notinstagram.com.ae"}, "https://notinstagram.com.ae"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectWebsite(tt.candidates...))
		})
	}
}

func TestSocialHandle(t *testing.T) {
	assert.Equal(t, "@cakehouse", SocialHandle("https://cakehouse.ae", "https://www.instagram.com/cakehouse/?hl=en"))
	assert.Equal(t, "@cake.house", SocialHandle("https://instagram.com/cake.house"))
	assert.Equal(t, "", SocialHandle("https://instagram.com/p/Cx123/"))
	assert.Equal(t, "", SocialHandle("https://facebook.com/cakehouse"))
	assert.Equal(t, "", SocialHandle())
}

func TestIsMapURL(t *testing.T) {
	assert.True(t, IsMapURL("https://www.google.com/maps/dir//x"))
	assert.False(t, IsMapURL("https://cakehouse.ae/maps-to-store"))
}
