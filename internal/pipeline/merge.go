package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// fallbackDescription marks contacts for which no enrichment data arrived.
const fallbackDescription = "extraction unavailable"

// failedDescriptionPrefix marks contacts whose enrichment rows carried an
// extractor error instead of content. The error text is kept as the note so
// operators can see why a record has no description.
const failedDescriptionPrefix = "extraction failed: "

// realDescription reports whether desc is extractor content rather than one
// of the placeholder notes written for missing or failed enrichment.
func realDescription(desc string) bool {
	return desc != fallbackDescription && !strings.HasPrefix(desc, failedDescriptionPrefix)
}

// emailToken matches an email-shaped token embedded in free text. Some
// descriptions carry an address the dedicated extractor missed, which still
// counts as a usable contact channel.
var emailToken = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// normalizeURLKey folds a website URL into its identity form: lower-cased,
// scheme and "www." prefix stripped, trailing slash removed.
func normalizeURLKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(key, prefix) {
			key = key[len(prefix):]
			break
		}
	}
	key = strings.TrimPrefix(key, "www.")
	return strings.TrimSuffix(key, "/")
}

// identityKey derives the cross-source join key for a base record: the
// normalized website URL, or the stable place identifier when the record has
// no website.
func identityKey(r model.BaseRecord) string {
	if strings.TrimSpace(r.Website) != "" {
		return normalizeURLKey(r.Website)
	}
	return r.PlaceID
}

// Merge joins stage-1 base records with stage-2 enrichment records by
// normalized website identity. Every base record yields exactly one
// MergedContact: matched records carry the union of emails across all
// enrichment rows for their key (the extractor splits large email sets over
// several rows), unmatched records degrade to a contactless fallback. When
// enrich is empty (stage 2 failed or timed out) all base records come back
// as fallbacks.
func Merge(base []model.BaseRecord, enrich []model.EnrichmentRecord, mergedAt time.Time) []model.MergedContact {
	groups := make(map[string][]model.EnrichmentRecord, len(enrich))
	for _, e := range enrich {
		key := normalizeURLKey(e.SourceURL)
		groups[key] = append(groups[key], e)
	}

	contacts := make([]model.MergedContact, 0, len(base))
	for _, b := range base {
		key := identityKey(b)
		contact := model.MergedContact{
			IdentityKey: key,
			Name:        b.Name,
			Website:     b.Website,
			Phone:       b.Phone,
			Address:     b.Address,
			Category:    b.Category,
			Country:     b.CountryCode,
			Emails:      []string{},
			Description: fallbackDescription,
			MergedAt:    mergedAt,
		}

		var extractionErr string
		for _, e := range groups[key] {
			contact.Emails = unionEmails(contact.Emails, e.Emails)
			if e.Description != "" && !realDescription(contact.Description) {
				contact.Description = e.Description
			}
			if e.ExtractionError != "" && extractionErr == "" {
				extractionErr = e.ExtractionError
			}
			if e.FetchedAt.After(contact.FetchedAt) {
				contact.FetchedAt = e.FetchedAt
			}
		}
		// A reported extractor error replaces the generic fallback note, but
		// never a description that actually arrived.
		if extractionErr != "" && contact.Description == fallbackDescription {
			contact.Description = failedDescriptionPrefix + extractionErr
		}

		if len(contact.Emails) > 0 {
			contact.PrimaryEmail = contact.Emails[0]
			contact.HasContactInfo = true
		} else if realDescription(contact.Description) && emailToken.MatchString(contact.Description) {
			contact.HasContactInfo = true
		}

		contacts = append(contacts, contact)
	}

	return contacts
}

// unionEmails appends the given emails onto dst, lower-casing each address
// and dropping case-insensitive duplicates while preserving first-seen order.
func unionEmails(dst []string, emails []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(emails))
	for _, e := range dst {
		seen[e] = struct{}{}
	}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		dst = append(dst, e)
	}
	return dst
}
