package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"dental", "clinic", "24-7"}, tokenize("Dental  Clinic, 24-7!"))
	assert.Equal(t, []string{"café", "münchen"}, tokenize("Café München"))
	assert.Empty(t, tokenize("a & b"), "single-character tokens are dropped")
}

func TestFilterRelevantDropsUnrelated(t *testing.T) {
	contacts := []model.MergedContact{
		{IdentityKey: "a.com", Name: "Austin Dental Clinic"},
		{IdentityKey: "b.com", Name: "Joe's Pizza"},
		{IdentityKey: "c.com", Name: "Smile Co", Description: "A modern dental practice."},
	}

	kept, flagged := FilterRelevant(contacts, []string{"dental clinic"}, 0.5)
	require.False(t, flagged)
	require.Len(t, kept, 2)
	assert.Equal(t, "a.com", kept[0].IdentityKey)
	assert.Equal(t, "c.com", kept[1].IdentityKey)
}

func TestFilterRelevantFlagsExcessiveDrop(t *testing.T) {
	contacts := []model.MergedContact{
		{IdentityKey: "a.com", Name: "Joe's Pizza"},
		{IdentityKey: "b.com", Name: "Taco Stand"},
		{IdentityKey: "c.com", Name: "Austin Dental"},
	}

	// Two of three would drop (66%), over the 50% budget: the filter must
	// hand the input back untouched and flag the task.
	kept, flagged := FilterRelevant(contacts, []string{"dental"}, 0.5)
	assert.True(t, flagged)
	assert.Equal(t, contacts, kept)
}

func TestFilterRelevantIgnoresFallbackDescription(t *testing.T) {
	contacts := []model.MergedContact{
		{IdentityKey: "a.com", Name: "Unrelated Name", Description: fallbackDescription},
		{IdentityKey: "b.com", Name: "Dental Hub", Description: fallbackDescription},
	}

	kept, flagged := FilterRelevant(contacts, []string{"dental"}, 1.0)
	require.False(t, flagged)
	require.Len(t, kept, 1)
	assert.Equal(t, "b.com", kept[0].IdentityKey)
}

func TestFilterRelevantIgnoresFailureNotes(t *testing.T) {
	contacts := []model.MergedContact{
		{IdentityKey: "a.com", Name: "Unrelated Name",
			Description: failedDescriptionPrefix + "dental page returned 404"},
		{IdentityKey: "b.com", Name: "Dental Hub",
			Description: failedDescriptionPrefix + "timeout"},
	}

	// Query terms leaking into an extractor error must not count as overlap.
	kept, flagged := FilterRelevant(contacts, []string{"dental"}, 1.0)
	require.False(t, flagged)
	require.Len(t, kept, 1)
	assert.Equal(t, "b.com", kept[0].IdentityKey)
}

func TestFilterRelevantEmptyInputs(t *testing.T) {
	kept, flagged := FilterRelevant(nil, []string{"dental"}, 0.5)
	assert.Empty(t, kept)
	assert.False(t, flagged)

	contacts := []model.MergedContact{{IdentityKey: "a.com", Name: "Acme"}}
	kept, flagged = FilterRelevant(contacts, nil, 0.5)
	assert.Equal(t, contacts, kept)
	assert.False(t, flagged)
}

func TestFilterRelevantCaseFolds(t *testing.T) {
	contacts := []model.MergedContact{
		{IdentityKey: "a.com", Name: "DENTAL EXPERTS"},
	}
	kept, flagged := FilterRelevant(contacts, []string{"Dental"}, 0.5)
	require.False(t, flagged)
	assert.Len(t, kept, 1)
}
