package normalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jonathan/bizscout/internal/types"
)

type serpOrganic struct {
	Position      number `json:"position"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	Snippet       string `json:"snippet"`
	DisplayedLink string `json:"displayed_link"`
}

type cseItem struct {
	CacheID     string `json:"cacheId"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	HTMLSnippet string `json:"htmlSnippet"`
	DisplayLink string `json:"displayLink"`
}

type serpLocal struct {
	Position      number `json:"position"`
	Title         string `json:"title"`
	Name          string `json:"name"`
	PlaceID       string `json:"place_id"`
	DataID        string `json:"data_id"`
	DataCID       string `json:"data_cid"`
	Link          string `json:"link"`
	PlaceIDSearch string `json:"place_id_search"`
	Website       string `json:"website"`
	Links         struct {
		Website    string `json:"website"`
		Directions string `json:"directions"`
	} `json:"links"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	City     string   `json:"city"`
	Type     string   `json:"type"`
	Types    []string `json:"types"`
	Rating   *number  `json:"rating"`
	Reviews  *number  `json:"reviews"`
	GPS      *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"gps_coordinates"`
}

// number accepts JSON numbers and numeric strings such as "1,204" or "(87)".
type number struct {
	value float64
	ok    bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.value, n.ok = f, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.Trim(strings.ReplaceAll(s, ",", ""), "() ")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n.value, n.ok = f, true
	}
	return nil
}

func (n *number) floatPtr() *float64 {
	if n == nil || !n.ok {
		return nil
	}
	v := n.value
	return &v
}

func (n *number) intPtr() *int {
	if n == nil || !n.ok {
		return nil
	}
	v := int(n.value)
	return &v
}

func parseOrganic(raw json.RawMessage) ([]types.OrganicResult, error) {
	if isAbsent(raw) {
		return []types.OrganicResult{}, nil
	}
	var items []serpOrganic
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &PayloadError{Message: "organic_results", Cause: err}
	}

	results := make([]types.OrganicResult, 0, len(items))
	for i, item := range items {
		if !isHTTPURL(item.Link) {
			continue
		}
		position := i + 1
		if item.Position.ok && item.Position.value > 0 {
			position = int(item.Position.value)
		}
		results = append(results, types.OrganicResult{
			ID:          stableID(item.Link),
			Title:       CleanText(item.Title),
			URL:         item.Link,
			Snippet:     CleanText(item.Snippet),
			DisplayText: item.DisplayedLink,
			Position:    position,
		})
	}
	return results, nil
}

func parseCSEItems(raw json.RawMessage) ([]types.OrganicResult, error) {
	if isAbsent(raw) {
		return []types.OrganicResult{}, nil
	}
	var items []cseItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &PayloadError{Message: "items", Cause: err}
	}

	results := make([]types.OrganicResult, 0, len(items))
	for i, item := range items {
		if !isHTTPURL(item.Link) {
			continue
		}
		snippet := item.Snippet
		if item.HTMLSnippet != "" {
			snippet = item.HTMLSnippet
		}
		id := item.CacheID
		if id == "" {
			id = stableID(item.Link)
		}
		results = append(results, types.OrganicResult{
			ID:          id,
			Title:       CleanText(item.Title),
			URL:         item.Link,
			Snippet:     CleanText(snippet),
			DisplayText: item.DisplayLink,
			Position:    i + 1,
		})
	}
	return results, nil
}

// parseLocalResults accepts both the array form and the {"places": [...]} form.
// Entries without a name are skipped and counted.
func parseLocalResults(raw json.RawMessage) ([]types.LocalBusiness, int, error) {
	if isAbsent(raw) {
		return []types.LocalBusiness{}, 0, nil
	}

	var elems []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Places []json.RawMessage `json:"places"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, 0, &PayloadError{Message: "local_results.places", Cause: err}
		}
		elems = wrapper.Places
	} else if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, 0, &PayloadError{Message: "local_results", Cause: err}
	}

	results := make([]types.LocalBusiness, 0, len(elems))
	dropped := 0
	for i, elem := range elems {
		lb, err := parseLocal(elem, i+1)
		if err != nil {
			return nil, 0, err
		}
		if lb.Name == "" {
			dropped++
			continue
		}
		results = append(results, lb)
	}
	return results, dropped, nil
}

func parseLocal(raw json.RawMessage, fallbackPosition int) (types.LocalBusiness, error) {
	var item serpLocal
	if err := json.Unmarshal(raw, &item); err != nil {
		return types.LocalBusiness{}, &PayloadError{Message: "local result", Cause: err}
	}

	name := CleanText(item.Title)
	if name == "" {
		name = CleanText(item.Name)
	}
	position := fallbackPosition
	if item.Position.ok && item.Position.value > 0 {
		position = int(item.Position.value)
	}
	category := item.Type
	if category == "" && len(item.Types) > 0 {
		category = item.Types[0]
	}

	candidates := []string{item.Website, item.Links.Website, item.Link}
	lb := types.LocalBusiness{
		ID:           localID(item, name),
		Name:         name,
		CanonicalURL: firstNonEmpty(item.PlaceIDSearch, item.Links.Directions, mapsLink(item.Link)),
		WebsiteURL:   SelectWebsite(candidates...),
		Address:      strings.TrimSpace(item.Address),
		Phone:        strings.TrimSpace(item.Phone),
		City:         strings.TrimSpace(item.City),
		Category:     strings.TrimSpace(category),
		Rating:       item.Rating.floatPtr(),
		ReviewCount:  item.Reviews.intPtr(),
		SocialHandle: SocialHandle(candidates...),
		Position:     position,
		Raw:          append(json.RawMessage(nil), raw...),
	}
	if item.GPS != nil {
		lb.Latitude = item.GPS.Latitude
		lb.Longitude = item.GPS.Longitude
	}
	return lb, nil
}

func localID(item serpLocal, name string) string {
	if id := firstNonEmpty(item.PlaceID, item.DataID, item.DataCID); id != "" {
		return id
	}
	return stableID(strings.ToLower(name) + "|" + strings.ToLower(item.Address))
}

func mapsLink(link string) string {
	if IsMapURL(link) {
		return link
	}
	return ""
}

func stableID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
