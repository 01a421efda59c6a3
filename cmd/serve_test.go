package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// newTestEnv builds a runEnv over an in-memory store and an Apify endpoint
// that rejects everything, so asynchronous runs fail fast.
func newTestEnv(t *testing.T) *runEnv {
	t.Helper()

	cfg = &config.Config{
		Apify: config.ApifyConfig{
			Token:           "test",
			SearchActor:     "acme~search",
			ContactActor:    "acme~contact",
			SubmitRateLimit: 1000,
		},
		Pipeline: config.PipelineConfig{
			PollIntervalSecs:      1,
			SearchTimeoutSecs:     5,
			ExtractionTimeoutSecs: 5,
			MaxPollErrors:         1,
			FetchPageSize:         100,
			DefaultMaxResults:     100,
			RelevanceMaxDrop:      0.5,
			MaxConcurrentTasks:    2,
		},
	}

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusBadRequest)
	}))
	t.Cleanup(apiSrv.Close)

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	api := apify.NewClient("test", apify.WithBaseURL(apiSrv.URL))
	return &runEnv{Store: st, Pipeline: pipeline.New(cfg, st, api)}
}

func TestServeHealth(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeSubmitTask(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	body := `{"queries":["dental clinic"],"city":"Austin","country":"US","max_results":25}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task_id")
}

func TestServeSubmitTaskRejectsBadInput(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"queries":`},
		{"no queries", `{"queries":[]}`},
		{"negative cap", `{"queries":["plumber"],"max_results":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServeGetTask(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	task := &model.SearchTask{
		ID:        "task-http",
		Queries:   []string{"plumber"},
		Status:    model.TaskStatusSucceeded,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, env.Store.CreateTask(context.Background(), task))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/task-http", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"task-http"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeListContacts(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	task := &model.SearchTask{
		ID:        "task-c",
		Queries:   []string{"plumber"},
		Status:    model.TaskStatusSucceeded,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, env.Store.CreateTask(context.Background(), task))
	_, err := env.Store.UpsertContacts(context.Background(), task.ID, []model.MergedContact{
		{IdentityKey: "acme.com", Name: "Acme", Emails: []string{"info@acme.com"}, PrimaryEmail: "info@acme.com", HasContactInfo: true},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/task-c/contacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "info@acme.com")
}
