package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Business is a deduplicated business entity. Identity is the website root domain,
// falling back to the E.164 phone number.
type Business struct {
	ID            uuid.UUID `json:"id"`
	WebsiteDomain *string   `json:"website_domain,omitempty"`
	PhoneE164     *string   `json:"phone_e164,omitempty"`
	Name          string    `json:"name"`
	CountryCode   *string   `json:"country_code,omitempty"`
	City          *string   `json:"city,omitempty"`
	Address       *string   `json:"address,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Rating        *float64  `json:"rating,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	SocialHandle  *string   `json:"social_handle,omitempty"`

	HasWhatsapp            bool `json:"has_whatsapp"`
	HasInstagram           bool `json:"has_instagram"`
	AcceptsOnlinePayments  bool `json:"accepts_online_payments"`
	PhysicalAddressPresent bool `json:"physical_address_present"`
	RecentActivity         bool `json:"recent_activity"`
	FollowerCount          int  `json:"follower_count"`
	ReviewCount            int  `json:"review_count"`

	DeterministicScore float64 `json:"deterministic_score"`
	ScoreBand          string  `json:"score_band"`
	Confidence         float64 `json:"confidence"`

	FirstTaskID *uuid.UUID `json:"first_task_id,omitempty"`
	LastTaskID  *uuid.UUID `json:"last_task_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Source is a discovered URL with its classification and best relevance score.
type Source struct {
	ID         uuid.UUID  `json:"id"`
	URL        string     `json:"url"`
	SourceType string     `json:"source_type"`
	Score      float64    `json:"score"`
	LastTaskID *uuid.UUID `json:"last_task_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SourceInput is used when upserting a source
type SourceInput struct {
	URL        string
	SourceType string
	Score      float64
	TaskID     uuid.UUID
}

// Evidence is an immutable observation linking a business to the task that produced it.
type Evidence struct {
	ID           uuid.UUID       `json:"id"`
	BusinessID   uuid.UUID       `json:"business_id"`
	SearchTaskID uuid.UUID       `json:"search_task_id"`
	SourceURL    *string         `json:"source_url,omitempty"`
	SourceType   string          `json:"source_type"`
	RawJSON      json.RawMessage `json:"raw_json"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EvidenceInput is used when appending evidence
type EvidenceInput struct {
	BusinessID   uuid.UUID
	SearchTaskID uuid.UUID
	SourceURL    string
	SourceType   string
	RawJSON      json.RawMessage
}
