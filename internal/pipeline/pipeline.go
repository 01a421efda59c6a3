// Package pipeline orchestrates the two-stage lead extraction flow: plan a
// search task, run the directory-search job, derive website URLs, run the
// contact-extraction job, then merge, dedup, and filter the results before
// persisting them.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// TaskResult is the outcome of one task run. Contacts is populated even when
// persistence failed, so the caller can decide re-save policy without losing
// the results.
type TaskResult struct {
	Task     *model.SearchTask
	Contacts []model.MergedContact
}

// Pipeline runs search tasks. Instances are safe for concurrent use: tasks
// share only the job client's rate limiter and circuit breaker.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	jobs   *JobClient
	poller *Poller

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, api apify.Client) *Pipeline {
	jobs := NewJobClient(api, cfg.Apify, cfg.Pipeline.FetchPageSize)
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		jobs:    jobs,
		poller:  NewPoller(jobs, cfg.Pipeline.PollInterval(), cfg.Pipeline.MaxPollErrors),
		nowFunc: time.Now,
	}
}

// Run executes the full pipeline for one task. The task always reaches a
// terminal status: succeeded, partial (stage 2 degraded), or failed. A
// non-nil error is returned for failed tasks and for persistence failures;
// in the latter case the returned TaskResult still carries the contacts.
func (p *Pipeline) Run(ctx context.Context, task *model.SearchTask) (*TaskResult, error) {
	log := zap.L().With(zap.String("task", task.ID))
	log.Info("task starting",
		zap.Strings("queries", task.Queries),
		zap.String("location", task.Location.String()),
		zap.Int("max_results", task.MaxResults),
	)

	task.Status = model.TaskStatusRunning
	if err := p.store.CreateTask(ctx, task); err != nil {
		return nil, eris.Wrap(err, "pipeline: create task")
	}

	// ===== Stage 1: directory search (failure is fatal to the task) =====
	base, err := p.runDirectorySearch(ctx, task)
	if err != nil {
		p.finishTask(ctx, task, model.TaskStatusFailed, err)
		return nil, err
	}
	task.BaseCount = len(base)
	log.Info("directory search complete", zap.Int("records", len(base)))

	// ===== Stage 2: contact extraction (failure degrades to partial) =====
	var enrich []model.EnrichmentRecord
	partial := false
	urls := ExtractURLs(base)
	if len(urls) > 0 {
		enrich, err = p.runContactExtraction(ctx, task, urls)
		if err != nil {
			partial = true
			enrich = nil
			log.Warn("contact extraction degraded, emitting base-only contacts", zap.Error(err))
		}
	} else {
		log.Info("no scrapeable websites, skipping contact extraction")
	}

	// ===== Merge, dedup, filter =====
	contacts := Merge(base, enrich, p.nowFunc().UTC())
	contacts = Dedup(contacts)

	// A degraded stage 2 leaves every contact without emails; dropping
	// contactless records there would empty the output.
	includeContactless := p.cfg.Pipeline.IncludeContactless || partial
	contacts = FilterContactable(contacts, includeContactless)

	contacts, flagged := FilterRelevant(contacts, task.Queries, p.cfg.Pipeline.RelevanceMaxDrop)
	if flagged {
		task.NeedsReview = true
		log.Warn("relevance filter exceeded drop budget, task flagged for review")
	}
	task.ContactCount = len(contacts)

	result := &TaskResult{Task: task, Contacts: contacts}

	// ===== Persist (one retry, results survive failure) =====
	saved, err := p.persist(ctx, task.ID, contacts)
	if err != nil {
		perr := &model.PersistenceError{TaskID: task.ID, Err: err}
		p.finishTask(ctx, task, model.TaskStatusFailed, perr)
		return result, perr
	}
	task.SavedCount = saved

	status := model.TaskStatusSucceeded
	if partial {
		status = model.TaskStatusPartial
	}
	p.finishTask(ctx, task, status, nil)
	log.Info("task finished",
		zap.String("status", string(task.Status)),
		zap.Int("contacts", len(contacts)),
		zap.Int("saved", saved),
	)
	return result, nil
}

// runDirectorySearch submits, awaits, and fetches the stage-1 job.
func (p *Pipeline) runDirectorySearch(ctx context.Context, task *model.SearchTask) ([]model.BaseRecord, error) {
	run, err := p.jobs.SubmitDirectorySearch(ctx, task)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: submit directory search")
	}
	if err := p.poller.AwaitCompletion(ctx, run, p.cfg.Pipeline.SearchTimeout()); err != nil {
		return nil, err
	}
	records, err := p.jobs.FetchBaseRecords(ctx, run)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch base records")
	}
	return records, nil
}

// runContactExtraction submits, awaits, and fetches the stage-2 job.
func (p *Pipeline) runContactExtraction(ctx context.Context, task *model.SearchTask, urls []string) ([]model.EnrichmentRecord, error) {
	run, err := p.jobs.SubmitContactExtraction(ctx, task.ID, urls)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: submit contact extraction")
	}
	if err := p.poller.AwaitCompletion(ctx, run, p.cfg.Pipeline.ExtractionTimeout()); err != nil {
		return nil, err
	}
	records, err := p.jobs.FetchEnrichmentRecords(ctx, run)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch enrichment records")
	}
	return records, nil
}

// persist saves contacts with a single retry on failure.
func (p *Pipeline) persist(ctx context.Context, taskID string, contacts []model.MergedContact) (int, error) {
	saved, err := p.store.UpsertContacts(ctx, taskID, contacts)
	if err == nil {
		return saved, nil
	}
	zap.L().Warn("persist failed, retrying once", zap.String("task", taskID), zap.Error(err))
	return p.store.UpsertContacts(ctx, taskID, contacts)
}

// finishTask records the terminal status; persistence problems here are
// logged, not returned, so the pipeline outcome is preserved.
func (p *Pipeline) finishTask(ctx context.Context, task *model.SearchTask, status model.TaskStatus, cause error) {
	task.Status = status
	if cause != nil {
		task.Error = cause.Error()
	}
	if err := p.store.UpdateTask(ctx, task); err != nil {
		zap.L().Warn("failed to record task status",
			zap.String("task", task.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
