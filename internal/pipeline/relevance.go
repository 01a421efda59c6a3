package pipeline

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var foldCaser = cases.Fold()

// tokenize splits text into case-folded word tokens. Punctuation separates
// tokens; single-character tokens carry no signal and are dropped.
func tokenize(text string) []string {
	folded := foldCaser.String(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127
}

// FilterRelevant drops contacts whose name and description share no token
// with any of the original query terms, guarding against stage-1 false
// positives. The filter is advisory: if it would remove more than
// maxDropFraction of the input, the input is returned unfiltered and
// flagged=true so the task can be routed to manual review.
func FilterRelevant(contacts []model.MergedContact, queries []string, maxDropFraction float64) (kept []model.MergedContact, flagged bool) {
	if len(contacts) == 0 || len(queries) == 0 {
		return contacts, false
	}

	queryTokens := make(map[string]struct{})
	for _, q := range queries {
		for _, tok := range tokenize(q) {
			queryTokens[tok] = struct{}{}
		}
	}
	if len(queryTokens) == 0 {
		return contacts, false
	}

	kept = make([]model.MergedContact, 0, len(contacts))
	for _, c := range contacts {
		if overlaps(c, queryTokens) {
			kept = append(kept, c)
		}
	}

	dropped := len(contacts) - len(kept)
	if maxDropFraction > 0 && float64(dropped) > maxDropFraction*float64(len(contacts)) {
		return contacts, true
	}
	return kept, false
}

func overlaps(c model.MergedContact, queryTokens map[string]struct{}) bool {
	for _, tok := range tokenize(c.Name) {
		if _, ok := queryTokens[tok]; ok {
			return true
		}
	}
	if !realDescription(c.Description) {
		return false
	}
	for _, tok := range tokenize(c.Description) {
		if _, ok := queryTokens[tok]; ok {
			return true
		}
	}
	return false
}
