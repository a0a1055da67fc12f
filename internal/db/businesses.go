package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Business Methods
// -----------------------------------------------------------------------------

const businessColumns = `id, website_domain, phone_e164, name, country_code, city, address, category,
	rating, latitude, longitude, social_handle, has_whatsapp, has_instagram, accepts_online_payments,
	physical_address_present, recent_activity, follower_count, review_count, deterministic_score,
	score_band, confidence, first_task_id, last_task_id, created_at, updated_at`

func scanBusiness(row pgx.Row) (*Business, error) {
	var b Business
	err := row.Scan(&b.ID, &b.WebsiteDomain, &b.PhoneE164, &b.Name, &b.CountryCode, &b.City,
		&b.Address, &b.Category, &b.Rating, &b.Latitude, &b.Longitude, &b.SocialHandle,
		&b.HasWhatsapp, &b.HasInstagram, &b.AcceptsOnlinePayments, &b.PhysicalAddressPresent,
		&b.RecentActivity, &b.FollowerCount, &b.ReviewCount, &b.DeterministicScore, &b.ScoreBand,
		&b.Confidence, &b.FirstTaskID, &b.LastTaskID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindBusinessByDomain returns the oldest business with the given website root domain, or nil.
func (db *DB) FindBusinessByDomain(ctx context.Context, domain string) (*Business, error) {
	return db.findBusiness(ctx, "website_domain", domain)
}

// FindBusinessByPhone returns the oldest business with the given E.164 phone, or nil.
func (db *DB) FindBusinessByPhone(ctx context.Context, phone string) (*Business, error) {
	return db.findBusiness(ctx, "phone_e164", phone)
}

func (db *DB) findBusiness(ctx context.Context, column, value string) (*Business, error) {
	if value == "" {
		return nil, nil
	}
	b, err := scanBusiness(db.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE `+column+` = $1
		 ORDER BY created_at ASC LIMIT 1`,
		value,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find business by %s: %w", column, err)
	}
	return b, nil
}

// GetBusinessByID retrieves a business by its UUID
func (db *DB) GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	b, err := scanBusiness(db.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return b, nil
}

// InsertBusiness creates a business and returns the stored row.
func (db *DB) InsertBusiness(ctx context.Context, b *Business) (*Business, error) {
	created, err := scanBusiness(db.pool.QueryRow(ctx,
		`INSERT INTO businesses (website_domain, phone_e164, name, country_code, city, address,
		     category, rating, latitude, longitude, social_handle, has_whatsapp, has_instagram,
		     accepts_online_payments, physical_address_present, recent_activity, follower_count,
		     review_count, deterministic_score, score_band, confidence, first_task_id, last_task_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		         $19, $20, $21, $22, $23)
		 RETURNING `+businessColumns,
		b.WebsiteDomain, b.PhoneE164, b.Name, b.CountryCode, b.City, b.Address, b.Category,
		b.Rating, b.Latitude, b.Longitude, b.SocialHandle, b.HasWhatsapp, b.HasInstagram,
		b.AcceptsOnlinePayments, b.PhysicalAddressPresent, b.RecentActivity, b.FollowerCount,
		b.ReviewCount, b.DeterministicScore, b.ScoreBand, b.Confidence, b.FirstTaskID, b.LastTaskID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert business: %w", err)
	}
	return created, nil
}

// UpdateBusiness overwrites the mutable columns of an existing business.
func (db *DB) UpdateBusiness(ctx context.Context, b *Business) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE businesses SET website_domain = $1, phone_e164 = $2, name = $3, country_code = $4,
		     city = $5, address = $6, category = $7, rating = $8, latitude = $9, longitude = $10,
		     social_handle = $11, has_whatsapp = $12, has_instagram = $13,
		     accepts_online_payments = $14, physical_address_present = $15, recent_activity = $16,
		     follower_count = $17, review_count = $18, deterministic_score = $19, score_band = $20,
		     confidence = $21, last_task_id = $22, updated_at = NOW()
		 WHERE id = $23`,
		b.WebsiteDomain, b.PhoneE164, b.Name, b.CountryCode, b.City, b.Address, b.Category,
		b.Rating, b.Latitude, b.Longitude, b.SocialHandle, b.HasWhatsapp, b.HasInstagram,
		b.AcceptsOnlinePayments, b.PhysicalAddressPresent, b.RecentActivity, b.FollowerCount,
		b.ReviewCount, b.DeterministicScore, b.ScoreBand, b.Confidence, b.LastTaskID, b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update business: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("business not found: %s", b.ID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Source Methods
// -----------------------------------------------------------------------------

// UpsertSource inserts a source or raises its score to max(old, new) and records the
// latest discovering task. Returns true when the row was newly created.
func (db *DB) UpsertSource(ctx context.Context, input SourceInput) (bool, error) {
	var inserted bool
	err := db.pool.QueryRow(ctx,
		`INSERT INTO sources (url, source_type, score, last_task_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET
		     score = GREATEST(sources.score, EXCLUDED.score),
		     source_type = CASE WHEN sources.source_type = 'UNKNOWN'
		                        THEN EXCLUDED.source_type ELSE sources.source_type END,
		     last_task_id = EXCLUDED.last_task_id,
		     updated_at = NOW()
		 RETURNING (xmax = 0)`,
		input.URL, input.SourceType, input.Score, input.TaskID,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert source %s: %w", input.URL, err)
	}
	return inserted, nil
}

// GetSourceByURL retrieves a source by URL. Returns nil if not found.
func (db *DB) GetSourceByURL(ctx context.Context, url string) (*Source, error) {
	var s Source
	err := db.pool.QueryRow(ctx,
		`SELECT id, url, source_type, score, last_task_id, created_at, updated_at
		 FROM sources WHERE url = $1`,
		url,
	).Scan(&s.ID, &s.URL, &s.SourceType, &s.Score, &s.LastTaskID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &s, nil
}

// -----------------------------------------------------------------------------
// Evidence Methods
// -----------------------------------------------------------------------------

// InsertEvidence appends one evidence row. Evidence is never updated or merged.
func (db *DB) InsertEvidence(ctx context.Context, input EvidenceInput) error {
	raw := input.RawJSON
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO business_evidence (business_id, search_task_id, source_url, source_type, raw_json)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.BusinessID, input.SearchTaskID, nullIfEmpty(input.SourceURL), input.SourceType, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to insert evidence: %w", err)
	}
	return nil
}

// ListEvidenceByBusiness returns all evidence rows for a business, oldest first.
func (db *DB) ListEvidenceByBusiness(ctx context.Context, businessID uuid.UUID) ([]Evidence, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, business_id, search_task_id, source_url, source_type, raw_json, created_at
		 FROM business_evidence WHERE business_id = $1 ORDER BY created_at ASC`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var evidence []Evidence
	for rows.Next() {
		var e Evidence
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.SearchTaskID, &e.SourceURL, &e.SourceType,
			&e.RawJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		evidence = append(evidence, e)
	}
	return evidence, rows.Err()
}
