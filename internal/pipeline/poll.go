package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// Poller waits for external job runs to reach a terminal state.
type Poller struct {
	jobs     *JobClient
	interval time.Duration

	// maxErrors is the number of consecutive transient poll failures
	// tolerated before the run is treated as failed.
	maxErrors int

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewPoller creates a Poller with a fixed poll interval.
func NewPoller(jobs *JobClient, interval time.Duration, maxErrors int) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxErrors <= 0 {
		maxErrors = 3
	}
	return &Poller{
		jobs:      jobs,
		interval:  interval,
		maxErrors: maxErrors,
		nowFunc:   time.Now,
	}
}

// AwaitCompletion polls the run's status at the fixed interval until it
// reaches a terminal state or stageTimeout elapses. On timeout the run is
// marked timed_out and left running remotely (it is not aborted). Context
// cancellation stops polling immediately and marks the run failed with no
// remote side effects. Returns nil only when the run succeeded; every other
// outcome yields a *model.StageError.
func (p *Poller) AwaitCompletion(ctx context.Context, run *model.JobRun, stageTimeout time.Duration) error {
	log := zap.L().With(
		zap.String("task", run.TaskID),
		zap.String("stage", string(run.Stage)),
		zap.String("run", run.RunID),
	)

	deadline := p.nowFunc().Add(stageTimeout)
	consecutiveErrors := 0

	for {
		remote, err := p.jobs.RunStatus(ctx, run.RunID)
		switch {
		case err != nil && resilience.IsTransient(err):
			consecutiveErrors++
			log.Warn("transient poll error",
				zap.Int("consecutive", consecutiveErrors),
				zap.Error(err),
			)
			if consecutiveErrors >= p.maxErrors {
				return p.fail(run, eris.Wrap(err, "poll retries exhausted"))
			}
		case err != nil:
			return p.fail(run, err)
		default:
			consecutiveErrors = 0
			done, stepErr := p.observe(run, remote, log)
			if stepErr != nil || done {
				return stepErr
			}
		}

		if p.nowFunc().After(deadline) {
			now := p.nowFunc()
			if terr := run.Transition(model.RunStatusTimedOut, now); terr != nil {
				return terr
			}
			log.Warn("stage timed out", zap.Duration("budget", stageTimeout))
			return &model.StageError{
				Stage:   run.Stage,
				Timeout: true,
				Err:     eris.Errorf("run %s exceeded %s budget", run.RunID, stageTimeout),
			}
		}

		select {
		case <-ctx.Done():
			return p.fail(run, eris.Wrap(ctx.Err(), "polling cancelled"))
		case <-time.After(p.interval):
		}
	}
}

// observe applies one remote status observation to the run. Each observation
// supersedes the last non-terminal status; terminal states are entered once
// and never left. Returns done=true when the run succeeded.
func (p *Poller) observe(run *model.JobRun, remote *apify.Run, log *zap.Logger) (done bool, err error) {
	now := p.nowFunc()

	switch remote.Status {
	case apify.RunStatusReady:
		// Still queued; submitted is already the recorded status.
		return false, nil
	case apify.RunStatusRunning:
		if run.Status == model.RunStatusSubmitted {
			if terr := run.Transition(model.RunStatusRunning, now); terr != nil {
				return false, terr
			}
		}
		return false, nil
	case apify.RunStatusSucceeded:
		if remote.DefaultDatasetID != "" {
			run.DatasetID = remote.DefaultDatasetID
		}
		if terr := run.Transition(model.RunStatusSucceeded, now); terr != nil {
			return false, terr
		}
		log.Info("run succeeded", zap.String("dataset", run.DatasetID))
		return true, nil
	case apify.RunStatusFailed, apify.RunStatusAborted, apify.RunStatusTimedOut:
		return false, p.fail(run, eris.Errorf("remote run ended with status %s", remote.Status))
	default:
		return false, p.fail(run, eris.Errorf("remote run reported unknown status %q", remote.Status))
	}
}

// fail marks the run failed and wraps the cause in a StageError.
func (p *Poller) fail(run *model.JobRun, cause error) error {
	if terr := run.Transition(model.RunStatusFailed, p.nowFunc()); terr != nil {
		return terr
	}
	return &model.StageError{Stage: run.Stage, Err: cause}
}
