package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jonathan/bizscout/internal/types"
)

// HashDepth is the number of organic and local entries that contribute to ContentHash.
const HashDepth = 20

// ContentHash fingerprints a normalized result set for change detection. It covers the
// top HashDepth organic URLs and local identifiers in provider order.
func ContentHash(results *types.NormalizedResults) string {
	var sb strings.Builder
	if results != nil {
		for i, o := range results.OrganicResults {
			if i >= HashDepth {
				break
			}
			sb.WriteString("o:")
			sb.WriteString(o.URL)
			sb.WriteByte('\n')
		}
		for i, lb := range results.LocalBusinesses {
			if i >= HashDepth {
				break
			}
			sb.WriteString("l:")
			sb.WriteString(lb.ID)
			sb.WriteByte('|')
			sb.WriteString(lb.WebsiteURL)
			sb.WriteByte('\n')
		}
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
