// Package resolve turns normalized search results into deduplicated business
// records, classified sources and append-only evidence.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/types"
)

// Store is the persistence surface the resolver needs. *db.DB implements it.
type Store interface {
	FindBusinessByDomain(ctx context.Context, domain string) (*db.Business, error)
	FindBusinessByPhone(ctx context.Context, phone string) (*db.Business, error)
	InsertBusiness(ctx context.Context, b *db.Business) (*db.Business, error)
	UpdateBusiness(ctx context.Context, b *db.Business) error
	UpsertSource(ctx context.Context, input db.SourceInput) (bool, error)
	InsertEvidence(ctx context.Context, input db.EvidenceInput) error
}

// ResolveError wraps a persistence failure while resolving one result.
type ResolveError struct {
	Message string
	Cause   error
}

func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resolve error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("resolve error: %s", e.Message)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// Outcome counts what a Resolve call changed.
type Outcome struct {
	NewBusinesses    int
	MergedBusinesses int
	NewSources       int
	Evidence         int
}

// Resolver upserts sources and businesses and appends evidence.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// New creates a Resolver.
func New(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve processes every organic and local result produced by task.
//
// Dedup is best-effort: two workers discovering the same business at the same
// moment may both insert it.
func (r *Resolver) Resolve(ctx context.Context, task *db.SearchTask, results *types.NormalizedResults) (*Outcome, error) {
	out := &Outcome{}
	if results == nil {
		return out, nil
	}

	for _, o := range results.OrganicResults {
		st := ClassifySource(o.URL)
		inserted, err := r.store.UpsertSource(ctx, db.SourceInput{
			URL:        o.URL,
			SourceType: string(st),
			Score:      SourceScore(st, o.Position),
			TaskID:     task.ID,
		})
		if err != nil {
			return out, &ResolveError{Message: "organic source " + o.URL, Cause: err}
		}
		if inserted {
			out.NewSources++
		}
	}

	for _, lb := range results.LocalBusinesses {
		if err := r.resolveLocal(ctx, task, lb, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (r *Resolver) resolveLocal(ctx context.Context, task *db.SearchTask, lb types.LocalBusiness, out *Outcome) error {
	domain := RootDomain(lb.WebsiteURL)
	phone := NormalizePhone(lb.Phone, task.CountryCode)
	signals := DeriveSignals(lb)
	confidence := Confidence(lb, lb.WebsiteURL != "", phone != "")

	existing, err := r.lookup(ctx, domain, phone)
	if err != nil {
		return &ResolveError{Message: "lookup " + lb.Name, Cause: err}
	}

	var business *db.Business
	if existing == nil {
		business, err = r.store.InsertBusiness(ctx, newBusiness(task, lb, domain, phone, signals, confidence))
		if err != nil {
			return &ResolveError{Message: "insert " + lb.Name, Cause: err}
		}
		out.NewBusinesses++
	} else {
		business = mergeBusiness(existing, task, lb, domain, phone, signals, confidence)
		if err := r.store.UpdateBusiness(ctx, business); err != nil {
			return &ResolveError{Message: "update " + lb.Name, Cause: err}
		}
		out.MergedBusinesses++
	}

	sourceURL := lb.WebsiteURL
	if sourceURL == "" {
		sourceURL = lb.CanonicalURL
	}
	sourceType := types.SourceTypeUnknown
	if sourceURL != "" {
		sourceType = ClassifySource(sourceURL)
		inserted, err := r.store.UpsertSource(ctx, db.SourceInput{
			URL:        sourceURL,
			SourceType: string(sourceType),
			Score:      SourceScore(sourceType, lb.Position),
			TaskID:     task.ID,
		})
		if err != nil {
			return &ResolveError{Message: "business source " + sourceURL, Cause: err}
		}
		if inserted {
			out.NewSources++
		}
	}

	if err := r.store.InsertEvidence(ctx, db.EvidenceInput{
		BusinessID:   business.ID,
		SearchTaskID: task.ID,
		SourceURL:    sourceURL,
		SourceType:   string(sourceType),
		RawJSON:      lb.Raw,
	}); err != nil {
		return &ResolveError{Message: "evidence for " + lb.Name, Cause: err}
	}
	out.Evidence++

	r.logger.Debug("resolved business",
		"task_id", task.ID,
		"business_id", business.ID,
		"name", business.Name,
		"domain", domain,
		"phone", phone,
		"new", existing == nil,
		"score", business.DeterministicScore,
	)
	return nil
}

// lookup resolves identity by website root domain, then by E.164 phone.
func (r *Resolver) lookup(ctx context.Context, domain, phone string) (*db.Business, error) {
	if domain != "" {
		b, err := r.store.FindBusinessByDomain(ctx, domain)
		if err != nil || b != nil {
			return b, err
		}
	}
	if phone != "" {
		return r.store.FindBusinessByPhone(ctx, phone)
	}
	return nil, nil
}

func newBusiness(task *db.SearchTask, lb types.LocalBusiness, domain, phone string, s types.Signals, confidence float64) *db.Business {
	score := Score(s)
	taskID := task.ID
	city := lb.City
	if city == "" {
		city = task.CityOrEmpty()
	}
	b := &db.Business{
		WebsiteDomain:      strPtr(domain),
		PhoneE164:          strPtr(phone),
		Name:               lb.Name,
		CountryCode:        strPtr(task.CountryCode),
		City:               strPtr(city),
		Address:            strPtr(lb.Address),
		Category:           strPtr(lb.Category),
		Rating:             lb.Rating,
		Latitude:           lb.Latitude,
		Longitude:          lb.Longitude,
		SocialHandle:       strPtr(lb.SocialHandle),
		DeterministicScore: score,
		ScoreBand:          string(Band(score)),
		Confidence:         confidence,
		FirstTaskID:        &taskID,
		LastTaskID:         &taskID,
	}
	applySignals(b, s)
	return b
}

// mergeBusiness folds a new observation into an existing business. Booleans are
// OR-ed, counts take the max, score and band are recomputed, confidence never
// decreases and missing fields are backfilled.
func mergeBusiness(b *db.Business, task *db.SearchTask, lb types.LocalBusiness, domain, phone string, s types.Signals, confidence float64) *db.Business {
	merged := *b
	signals := signalsOf(b).Merge(s)
	applySignals(&merged, signals)

	merged.DeterministicScore = Score(signals)
	merged.ScoreBand = string(Band(merged.DeterministicScore))
	merged.Confidence = max(b.Confidence, confidence)

	backfill(&merged.WebsiteDomain, domain)
	backfill(&merged.PhoneE164, phone)
	backfill(&merged.CountryCode, task.CountryCode)
	backfill(&merged.City, lb.City)
	backfill(&merged.City, task.CityOrEmpty())
	backfill(&merged.Address, lb.Address)
	backfill(&merged.Category, lb.Category)
	backfill(&merged.SocialHandle, lb.SocialHandle)
	if merged.Rating == nil {
		merged.Rating = lb.Rating
	}
	if merged.Latitude == nil || merged.Longitude == nil {
		merged.Latitude, merged.Longitude = lb.Latitude, lb.Longitude
	}
	if merged.Name == "" {
		merged.Name = lb.Name
	}

	taskID := task.ID
	merged.LastTaskID = &taskID
	if merged.FirstTaskID == nil {
		merged.FirstTaskID = &taskID
	}
	return &merged
}

func signalsOf(b *db.Business) types.Signals {
	return types.Signals{
		HasWhatsapp:            b.HasWhatsapp,
		HasInstagram:           b.HasInstagram,
		AcceptsOnlinePayments:  b.AcceptsOnlinePayments,
		PhysicalAddressPresent: b.PhysicalAddressPresent,
		RecentActivity:         b.RecentActivity,
		FollowerCount:          b.FollowerCount,
		ReviewCount:            b.ReviewCount,
	}
}

func applySignals(b *db.Business, s types.Signals) {
	b.HasWhatsapp = s.HasWhatsapp
	b.HasInstagram = s.HasInstagram
	b.AcceptsOnlinePayments = s.AcceptsOnlinePayments
	b.PhysicalAddressPresent = s.PhysicalAddressPresent
	b.RecentActivity = s.RecentActivity
	b.FollowerCount = s.FollowerCount
	b.ReviewCount = s.ReviewCount
}

func backfill(field **string, value string) {
	if (*field == nil || **field == "") && value != "" {
		v := value
		*field = &v
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Store = (*db.DB)(nil)
