package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// BaseRecord is one organization returned by the directory-search stage.
// Immutable once fetched.
type BaseRecord struct {
	Name        string  `json:"title"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`
	Category    string  `json:"categoryName,omitempty"`
	PlaceID     string  `json:"placeId"`
	CountryCode string  `json:"countryCode,omitempty"`
	Rating      float64 `json:"totalScore,omitempty"`
	ReviewCount int     `json:"reviewsCount,omitempty"`
}

// Validate checks the record carries the minimum shape needed downstream.
// A record must be nameable and must have a stable source identifier so
// that the merge fallback key exists even when the website is absent.
func (r BaseRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return eris.New("base record: missing name")
	}
	if strings.TrimSpace(r.PlaceID) == "" {
		return eris.New("base record: missing place identifier")
	}
	return nil
}

// EnrichmentRecord is one contact-extraction result for a source URL.
// Immutable once fetched. The external extractor may split one source into
// several rows when the email set is large; the merge engine unions them.
type EnrichmentRecord struct {
	SourceURL       string    `json:"url"`
	Emails          []string  `json:"emails,omitempty"`
	PrimaryEmail    string    `json:"primaryEmail,omitempty"`
	Description     string    `json:"description,omitempty"`
	ExtractionError string    `json:"error,omitempty"`
	FetchedAt       time.Time `json:"fetchedAt,omitempty"`
}

// Validate checks the record can be matched back to a base record.
func (r EnrichmentRecord) Validate() error {
	if strings.TrimSpace(r.SourceURL) == "" {
		return eris.New("enrichment record: missing source url")
	}
	return nil
}
