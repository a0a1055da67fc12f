package resolve

import (
	"net/url"
	"strings"

	"github.com/jonathan/bizscout/internal/normalize"
	"github.com/jonathan/bizscout/internal/types"
)

var directoryHosts = []string{
	"yelp.", "tripadvisor.", "yellowpages", "yello.ae", "foursquare.com", "zomato.com",
	"justdial.com", "hotfrog.", "cylex", "2gis.", "connect.ae", "timeoutdubai.com", "whatsupdubai",
}

var marketplaceHosts = []string{
	"amazon.", "noon.com", "etsy.com", "ebay.", "talabat.com", "deliveroo.", "careem.com",
	"instashop", "dubizzle.com", "carrefouruae.com",
}

var genericHosts = []string{
	"google.", "bing.com", "wikipedia.org", "reddit.com", "quora.com", "serpapi.com",
}

// sourceTypeWeights is the base relevance of each source type.
var sourceTypeWeights = map[types.SourceType]float64{
	types.SourceTypeSMBSite:     0.7,
	types.SourceTypeDirectory:   0.5,
	types.SourceTypeMarketplace: 0.4,
	types.SourceTypeSocial:      0.3,
	types.SourceTypeUnknown:     0.1,
}

// ClassifySource determines the SourceType of a URL from its host.
func ClassifySource(rawURL string) types.SourceType {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return types.SourceTypeUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case normalize.IsMapURL(rawURL):
		return types.SourceTypeUnknown
	case normalize.IsSocialURL(rawURL):
		return types.SourceTypeSocial
	case hostMatches(host, directoryHosts):
		return types.SourceTypeDirectory
	case hostMatches(host, marketplaceHosts):
		return types.SourceTypeMarketplace
	case hostMatches(host, genericHosts):
		return types.SourceTypeUnknown
	case RootDomain(rawURL) == "":
		return types.SourceTypeUnknown
	default:
		return types.SourceTypeSMBSite
	}
}

// SourceScore returns a relevance score in [0, 1] for a source of type t seen at a
// 1-based rank position. Positions beyond 20 get no rank bonus.
func SourceScore(t types.SourceType, position int) float64 {
	base, ok := sourceTypeWeights[t]
	if !ok {
		base = sourceTypeWeights[types.SourceTypeUnknown]
	}
	bonus := 0.0
	if position >= 1 && position <= 20 {
		bonus = 0.3 * (1 - float64(position-1)/20)
	}
	return round4(min(base+bonus, 1))
}

func hostMatches(host string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}
