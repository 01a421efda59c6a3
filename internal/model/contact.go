package model

import "time"

// MergedContact is the join of one BaseRecord with every EnrichmentRecord
// that matched its identity key. Exactly one instance exists per distinct
// identity per task. Emails carries the full union across matched
// enrichment rows; it is never truncated to a single address.
type MergedContact struct {
	IdentityKey    string    `json:"identity_key"`
	Name           string    `json:"name"`
	Emails         []string  `json:"emails"`
	PrimaryEmail   string    `json:"primary_email,omitempty"`
	Description    string    `json:"description,omitempty"`
	Website        string    `json:"website,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	Category       string    `json:"category,omitempty"`
	Country        string    `json:"country,omitempty"`
	HasContactInfo bool      `json:"has_contact_info"`
	FetchedAt      time.Time `json:"fetched_at,omitempty"`
	MergedAt       time.Time `json:"merged_at,omitempty"`
}
