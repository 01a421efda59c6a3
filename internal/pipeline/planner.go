package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// maxResultCap is the hard upper bound on results per task.
const maxResultCap = 300

// PlanTask normalizes raw search intent into a SearchTask: query strings are
// trimmed, empties dropped, and duplicates removed case-insensitively while
// preserving order. maxResults <= 0 selects defaultMax.
func PlanTask(queries []string, loc model.Location, maxResults, defaultMax int, language string) (*model.SearchTask, error) {
	cleaned := make([]string, 0, len(queries))
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, q)
	}

	if len(cleaned) == 0 {
		return nil, &model.InvalidInputError{Reason: "no query supplied"}
	}

	if maxResults == 0 {
		maxResults = defaultMax
	}
	if maxResults <= 0 {
		return nil, &model.InvalidInputError{Reason: "result cap must be positive"}
	}
	if maxResults > maxResultCap {
		return nil, &model.InvalidInputError{Reason: "result cap exceeds limit"}
	}

	now := time.Now().UTC()
	return &model.SearchTask{
		ID:         uuid.NewString(),
		Queries:    cleaned,
		Location:   loc,
		MaxResults: maxResults,
		Language:   language,
		Status:     model.TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
