package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// searchInput is the stage-1 actor payload (directory search).
type searchInput struct {
	SearchStrings []string `json:"searchStringsArray"`
	LocationQuery string   `json:"locationQuery,omitempty"`
	MaxPlaces     int      `json:"maxCrawledPlacesPerSearch"`
	Language      string   `json:"language,omitempty"`
}

// contactInput is the stage-2 actor payload (contact extraction).
type contactInput struct {
	StartURLs []startURL `json:"startUrls"`
}

type startURL struct {
	URL string `json:"url"`
}

// JobClient submits stage jobs to the external job-execution service and
// exposes classified status and item access for the poller and fetcher. All
// submissions pass through a process-wide rate limiter and a shared circuit
// breaker; transient failures are retried with backoff.
type JobClient struct {
	api     apify.Client
	cfg     config.ApifyConfig
	pages   int
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewJobClient creates a JobClient. The rate limiter it constructs is owned
// by this client and shared by every task that submits through it.
func NewJobClient(api apify.Client, cfg config.ApifyConfig, fetchPageSize int) *JobClient {
	rps := cfg.SubmitRateLimit
	if rps <= 0 {
		rps = 1
	}
	if fetchPageSize <= 0 {
		fetchPageSize = 250
	}
	return &JobClient{
		api:     api,
		cfg:     cfg,
		pages:   fetchPageSize,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}),
		retry:   resilience.DefaultRetryConfig(),
	}
}

// SubmitDirectorySearch starts the stage-1 job for a task. Fire-and-forget:
// it returns as soon as the external service accepts the run.
func (c *JobClient) SubmitDirectorySearch(ctx context.Context, task *model.SearchTask) (*model.JobRun, error) {
	input := searchInput{
		SearchStrings: task.Queries,
		LocationQuery: task.Location.String(),
		MaxPlaces:     task.MaxResults,
		Language:      task.Language,
	}
	return c.submit(ctx, task.ID, model.StageDirectorySearch, c.cfg.SearchActor, input)
}

// SubmitContactExtraction starts the stage-2 job for the given website URLs.
func (c *JobClient) SubmitContactExtraction(ctx context.Context, taskID string, urls []string) (*model.JobRun, error) {
	input := contactInput{StartURLs: make([]startURL, 0, len(urls))}
	for _, u := range urls {
		input.StartURLs = append(input.StartURLs, startURL{URL: u})
	}
	return c.submit(ctx, taskID, model.StageContactExtraction, c.cfg.ContactActor, input)
}

func (c *JobClient) submit(ctx context.Context, taskID string, stage model.Stage, actorID string, input any) (*model.JobRun, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "submit: rate limiter")
	}

	run, err := resilience.DoVal(ctx, c.retryConfig(stage), func(ctx context.Context) (*apify.Run, error) {
		var out *apify.Run
		cbErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var startErr error
			out, startErr = c.api.StartRun(ctx, actorID, input)
			return classifySubmit(stage, startErr)
		})
		return out, cbErr
	})
	if err != nil {
		return nil, err
	}

	return &model.JobRun{
		TaskID:    taskID,
		Stage:     stage,
		RunID:     run.ID,
		DatasetID: run.DefaultDatasetID,
		Status:    model.RunStatusSubmitted,
		StartedAt: time.Now().UTC(),
	}, nil
}

// RunStatus performs a single status poll for the given external run. The
// caller (the poller) owns the consecutive-error budget, so no retry is
// applied here; errors come back classified.
func (c *JobClient) RunStatus(ctx context.Context, runID string) (*apify.Run, error) {
	run, err := c.api.GetRun(ctx, runID)
	if err != nil {
		return nil, classifyQuery(err)
	}
	return run, nil
}

// Items fetches one dataset page with the standard retry policy.
func (c *JobClient) Items(ctx context.Context, stage model.Stage, datasetID string, offset int) (*apify.ItemsPage, error) {
	return resilience.DoVal(ctx, c.retryConfig(stage), func(ctx context.Context) (*apify.ItemsPage, error) {
		page, err := c.api.ListItems(ctx, datasetID, offset, c.pages)
		if err != nil {
			return nil, classifyQuery(err)
		}
		return page, nil
	})
}

// PageSize returns the configured dataset page size.
func (c *JobClient) PageSize() int {
	return c.pages
}

func (c *JobClient) retryConfig(stage model.Stage) resilience.RetryConfig {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("apify", string(stage))
	return cfg
}

// classifySubmit maps raw client errors onto the pipeline error taxonomy:
// API rejections with transient status codes become retryable
// TransientErrors, other API rejections become terminal SubmissionErrors,
// and everything else (network failures) passes through for the default
// transient heuristics.
func classifySubmit(stage model.Stage, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apify.APIError
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return &model.SubmissionError{Stage: stage, StatusCode: apiErr.StatusCode, Body: apiErr.Body}
	}
	return err
}

// classifyQuery wraps transient API statuses on status polls and item
// fetches; other API errors stay permanent as-is.
func classifyQuery(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apify.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}
