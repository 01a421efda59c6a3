package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// validatable is implemented by record types checked at the fetch boundary.
type validatable interface {
	Validate() error
}

// FetchBaseRecords retrieves the stage-1 result set for a succeeded run.
func (c *JobClient) FetchBaseRecords(ctx context.Context, run *model.JobRun) ([]model.BaseRecord, error) {
	return fetchRecords[model.BaseRecord](ctx, c, run)
}

// FetchEnrichmentRecords retrieves the stage-2 result set for a succeeded run.
func (c *JobClient) FetchEnrichmentRecords(ctx context.Context, run *model.JobRun) ([]model.EnrichmentRecord, error) {
	return fetchRecords[model.EnrichmentRecord](ctx, c, run)
}

// fetchRecords pages through the run's dataset in stable retrieval order,
// decoding and validating each item. Items that fail shape validation are
// logged and skipped rather than passed through. Calling this on a
// non-succeeded run is a programming error.
func fetchRecords[T validatable](ctx context.Context, c *JobClient, run *model.JobRun) ([]T, error) {
	if run.Status != model.RunStatusSucceeded {
		return nil, &model.PreconditionError{
			Op:     "fetch results",
			Reason: "run status is " + string(run.Status) + ", want succeeded",
		}
	}
	if run.DatasetID == "" {
		return nil, &model.PreconditionError{
			Op:     "fetch results",
			Reason: "run has no result dataset",
		}
	}

	log := zap.L().With(
		zap.String("task", run.TaskID),
		zap.String("stage", string(run.Stage)),
		zap.String("dataset", run.DatasetID),
	)

	var records []T
	skipped := 0
	offset := 0
	for {
		page, err := c.Items(ctx, run.Stage, run.DatasetID, offset)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch page at offset %d", offset)
		}
		if page.Count == 0 {
			break
		}

		for _, item := range page.Items {
			var rec T
			if err := json.Unmarshal(item, &rec); err != nil {
				skipped++
				log.Warn("skipping undecodable item", zap.Int("offset", offset), zap.Error(err))
				continue
			}
			if err := rec.Validate(); err != nil {
				skipped++
				log.Warn("skipping invalid item", zap.Int("offset", offset), zap.Error(err))
				continue
			}
			records = append(records, rec)
		}

		offset += page.Count
		if offset >= page.Total {
			break
		}
	}

	log.Info("fetched records", zap.Int("count", len(records)), zap.Int("skipped", skipped))
	return records, nil
}
