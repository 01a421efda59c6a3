package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// mockAPI implements apify.Client with function fields.
type mockAPI struct {
	startRun  func(ctx context.Context, actorID string, input any) (*apify.Run, error)
	getRun    func(ctx context.Context, runID string) (*apify.Run, error)
	listItems func(ctx context.Context, datasetID string, offset, limit int) (*apify.ItemsPage, error)
}

func (m *mockAPI) StartRun(ctx context.Context, actorID string, input any) (*apify.Run, error) {
	return m.startRun(ctx, actorID, input)
}

func (m *mockAPI) GetRun(ctx context.Context, runID string) (*apify.Run, error) {
	return m.getRun(ctx, runID)
}

func (m *mockAPI) ListItems(ctx context.Context, datasetID string, offset, limit int) (*apify.ItemsPage, error) {
	return m.listItems(ctx, datasetID, offset, limit)
}

// memStore is an in-memory store.Store with error injection for the
// persistence paths.
type memStore struct {
	mu       sync.Mutex
	tasks    map[string]*model.SearchTask
	contacts map[string][]model.MergedContact

	// upsertFailures is the number of UpsertContacts calls to fail before
	// succeeding.
	upsertFailures int
	upsertCalls    int
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		tasks:    make(map[string]*model.SearchTask),
		contacts: make(map[string][]model.MergedContact),
	}
}

func (s *memStore) CreateTask(_ context.Context, task *model.SearchTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memStore) UpdateTask(_ context.Context, task *model.SearchTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memStore) GetTask(_ context.Context, taskID string) (*model.SearchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, eris.Errorf("task %s not found", taskID)
	}
	cp := *task
	return &cp, nil
}

func (s *memStore) ListTasks(_ context.Context, _ store.TaskFilter) ([]model.SearchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SearchTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (s *memStore) UpsertContacts(_ context.Context, taskID string, contacts []model.MergedContact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertFailures > 0 {
		s.upsertFailures--
		return 0, eris.New("injected persistence failure")
	}
	s.contacts[taskID] = append([]model.MergedContact(nil), contacts...)
	return len(contacts), nil
}

func (s *memStore) ListContacts(_ context.Context, taskID string) ([]model.MergedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MergedContact(nil), s.contacts[taskID]...), nil
}

func (s *memStore) Migrate(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

// testConfig returns a config tuned for fast tests: generous submit rate,
// short stage budgets.
func testConfig() *config.Config {
	return &config.Config{
		Apify: config.ApifyConfig{
			Token:           "test-token",
			SearchActor:     "acme~directory-search",
			ContactActor:    "acme~contact-extractor",
			SubmitRateLimit: 1000,
		},
		Pipeline: config.PipelineConfig{
			PollIntervalSecs:      1,
			SearchTimeoutSecs:     30,
			ExtractionTimeoutSecs: 30,
			MaxPollErrors:         3,
			FetchPageSize:         250,
			DefaultMaxResults:     100,
			RelevanceMaxDrop:      0.5,
			MaxConcurrentTasks:    3,
		},
	}
}

func testTaskFixture(t *testing.T) *model.SearchTask {
	t.Helper()
	task, err := PlanTask([]string{"dental clinic"}, model.Location{City: "Austin", Country: "US"}, 50, 100, "en")
	if err != nil {
		t.Fatalf("plan task: %v", err)
	}
	return task
}

// rawItems marshals records into a dataset page payload.
func rawItems(t *testing.T, records ...any) []json.RawMessage {
	t.Helper()
	items := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal item: %v", err)
		}
		items = append(items, data)
	}
	return items
}

// succeededRun builds a JobRun already in the succeeded state with a
// dataset attached, as the poller leaves it.
func succeededRun(stage model.Stage, datasetID string) *model.JobRun {
	return &model.JobRun{
		TaskID:    "task-1",
		Stage:     stage,
		RunID:     "run-1",
		DatasetID: datasetID,
		Status:    model.RunStatusSucceeded,
		StartedAt: time.Now().UTC(),
	}
}
