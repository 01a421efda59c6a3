package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testTask(id string) *model.SearchTask {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &model.SearchTask{
		ID:         id,
		Queries:    []string{"plumbers", "heating contractors"},
		Location:   model.Location{City: "Portland", Country: "US"},
		MaxResults: 50,
		Language:   "en",
		Status:     model.TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSQLiteStore_TaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := testTask("task-1")
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.Queries, got.Queries)
	assert.Equal(t, task.Location, got.Location)
	assert.Equal(t, model.TaskStatusPending, got.Status)

	task.Status = model.TaskStatusPartial
	task.Error = "stage contact_extraction timed out"
	task.BaseCount = 10
	task.ContactCount = 10
	task.NeedsReview = true
	require.NoError(t, s.UpdateTask(ctx, task))

	got, err = s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPartial, got.Status)
	assert.Equal(t, 10, got.BaseCount)
	assert.True(t, got.NeedsReview)
	assert.Contains(t, got.Error, "timed out")
}

func TestSQLiteStore_GetTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	require.Error(t, err)
}

func TestSQLiteStore_ListTasks_Filter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testTask("task-a")
	require.NoError(t, s.CreateTask(ctx, a))

	b := testTask("task-b")
	b.Status = model.TaskStatusFailed
	b.CreatedAt = b.CreatedAt.Add(time.Hour)
	require.NoError(t, s.CreateTask(ctx, b))

	all, err := s.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "task-b", all[0].ID) // newest first

	failed, err := s.ListTasks(ctx, TaskFilter{Status: model.TaskStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "task-b", failed[0].ID)

	limited, err := s.ListTasks(ctx, TaskFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_UpsertContacts_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := testTask("task-c")
	require.NoError(t, s.CreateTask(ctx, task))

	contacts := []model.MergedContact{
		{
			IdentityKey:    "example.com",
			Name:           "Example Plumbing",
			Emails:         []string{"info@example.com", "sales@example.com"},
			PrimaryEmail:   "info@example.com",
			Website:        "https://example.com",
			HasContactInfo: true,
			MergedAt:       time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			IdentityKey: "place-xyz",
			Name:        "No Website Heating",
			Emails:      []string{},
			Description: "extraction unavailable",
		},
	}

	n, err := s.UpsertContacts(ctx, "task-c", contacts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ListContacts(ctx, "task-c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "example.com", got[0].IdentityKey)
	assert.Equal(t, []string{"info@example.com", "sales@example.com"}, got[0].Emails)
	assert.True(t, got[0].HasContactInfo)
	assert.Equal(t, "place-xyz", got[1].IdentityKey)
	assert.Empty(t, got[1].Emails)
	assert.False(t, got[1].HasContactInfo)

	// Re-saving the same contacts is idempotent.
	contacts[0].Emails = append(contacts[0].Emails, "new@example.com")
	n, err = s.UpsertContacts(ctx, "task-c", contacts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = s.ListContacts(ctx, "task-c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0].Emails, 3)
}

func TestSQLiteStore_UpsertContacts_Empty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.UpsertContacts(context.Background(), "task-x", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
