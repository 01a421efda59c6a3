// Package store persists search tasks and their merged contacts.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// TaskFilter specifies criteria for listing tasks.
type TaskFilter struct {
	Status model.TaskStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead generation pipeline.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, task *model.SearchTask) error
	UpdateTask(ctx context.Context, task *model.SearchTask) error
	GetTask(ctx context.Context, taskID string) (*model.SearchTask, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.SearchTask, error)

	// Contacts
	UpsertContacts(ctx context.Context, taskID string, contacts []model.MergedContact) (int, error)
	ListContacts(ctx context.Context, taskID string) ([]model.MergedContact, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by config and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
