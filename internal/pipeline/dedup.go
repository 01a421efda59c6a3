package pipeline

import (
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Dedup collapses merged contacts sharing an identity key, which happens
// when stage 1 returns duplicate organizations. The earlier record (stable
// retrieval order) wins; email sets are unioned and the primary email is
// re-derived so the invariant primaryEmail ∈ emails holds.
func Dedup(contacts []model.MergedContact) []model.MergedContact {
	out := make([]model.MergedContact, 0, len(contacts))
	byKey := make(map[string]int, len(contacts))

	for _, c := range contacts {
		idx, dup := byKey[c.IdentityKey]
		if !dup {
			byKey[c.IdentityKey] = len(out)
			out = append(out, c)
			continue
		}

		kept := &out[idx]
		kept.Emails = unionEmails(kept.Emails, c.Emails)
		if len(kept.Emails) > 0 {
			kept.PrimaryEmail = kept.Emails[0]
			kept.HasContactInfo = true
		}
		if !realDescription(kept.Description) && realDescription(c.Description) {
			kept.Description = c.Description
			kept.HasContactInfo = kept.HasContactInfo || c.HasContactInfo
		}
	}

	return out
}

// FilterContactable drops contacts with no usable contact channel unless the
// caller explicitly asked to keep them (manual follow-up lists). Input order
// is preserved.
func FilterContactable(contacts []model.MergedContact, includeContactless bool) []model.MergedContact {
	if includeContactless {
		return contacts
	}
	out := make([]model.MergedContact, 0, len(contacts))
	for _, c := range contacts {
		if c.HasContactInfo {
			out = append(out, c)
		}
	}
	return out
}
