package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. Call
// sites execute these by name so pgx dispatches straight to the prepared
// statement instead of re-describing the SQL text.
var preparedStatements = map[string]string{
	"insert_task": `INSERT INTO tasks (id, queries, location, max_results, language, status, error, needs_review, base_count, contact_count, saved_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"update_task": `UPDATE tasks SET status = $1, error = $2, needs_review = $3, base_count = $4, contact_count = $5, saved_count = $6, updated_at = $7 WHERE id = $8`,
	"get_task": `SELECT id, queries, location, max_results, language, status, error, needs_review, base_count, contact_count, saved_count, created_at, updated_at
		FROM tasks WHERE id = $1`,
	"list_contacts": `SELECT identity_key, name, emails, primary_email, description, website, phone, address, category, country, has_contact_info, fetched_at, merged_at
		FROM contacts WHERE task_id = $1 ORDER BY seq`,
}

var contactColumns = []string{
	"task_id", "seq", "identity_key", "name", "emails", "primary_email",
	"description", "website", "phone", "address", "category", "country",
	"has_contact_info", "fetched_at", "merged_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	queries       JSONB NOT NULL,
	location      JSONB NOT NULL,
	max_results   INT NOT NULL,
	language      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	error         TEXT NOT NULL DEFAULT '',
	needs_review  BOOLEAN NOT NULL DEFAULT FALSE,
	base_count    INT NOT NULL DEFAULT 0,
	contact_count INT NOT NULL DEFAULT 0,
	saved_count   INT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	task_id          TEXT NOT NULL REFERENCES tasks(id),
	seq              INT NOT NULL,
	identity_key     TEXT NOT NULL,
	name             TEXT NOT NULL,
	emails           JSONB NOT NULL,
	primary_email    TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	country          TEXT NOT NULL DEFAULT '',
	has_contact_info BOOLEAN NOT NULL DEFAULT FALSE,
	fetched_at       TIMESTAMPTZ,
	merged_at        TIMESTAMPTZ,
	PRIMARY KEY (task_id, identity_key)
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_contacts_task_seq ON contacts(task_id, seq);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	} else {
		s.pool.Close()
	}
	return nil
}

// CreateTask inserts a new task row.
func (s *PostgresStore) CreateTask(ctx context.Context, task *model.SearchTask) error {
	queries, err := json.Marshal(task.Queries)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal queries")
	}
	location, err := json.Marshal(task.Location)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal location")
	}

	_, err = s.pool.Exec(ctx, "insert_task",
		task.ID, queries, location, task.MaxResults, task.Language,
		task.Status, task.Error, task.NeedsReview,
		task.BaseCount, task.ContactCount, task.SavedCount,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: create task")
	}
	return nil
}

// UpdateTask persists mutable task fields.
func (s *PostgresStore) UpdateTask(ctx context.Context, task *model.SearchTask) error {
	task.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, "update_task",
		task.Status, task.Error, task.NeedsReview,
		task.BaseCount, task.ContactCount, task.SavedCount,
		task.UpdatedAt, task.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update task")
	}
	return nil
}

// GetTask loads one task by ID.
func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*model.SearchTask, error) {
	row := s.pool.QueryRow(ctx, "get_task", taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: get task %s", taskID)
		}
		return nil, eris.Wrap(err, "postgres: get task")
	}
	return task, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.SearchTask, error) {
	sql := `SELECT id, queries, location, max_results, language, status, error, needs_review, base_count, contact_count, saved_count, created_at, updated_at FROM tasks`
	args := []any{}
	if filter.Status != "" {
		sql += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	sql += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	if filter.Offset > 0 {
		sql += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.SearchTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// scannable covers both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*model.SearchTask, error) {
	var (
		task              model.SearchTask
		queries, location []byte
	)
	if err := row.Scan(
		&task.ID, &queries, &location, &task.MaxResults, &task.Language,
		&task.Status, &task.Error, &task.NeedsReview,
		&task.BaseCount, &task.ContactCount, &task.SavedCount,
		&task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(queries, &task.Queries); err != nil {
		return nil, eris.Wrap(err, "unmarshal queries")
	}
	if err := json.Unmarshal(location, &task.Location); err != nil {
		return nil, eris.Wrap(err, "unmarshal location")
	}
	return &task, nil
}

// UpsertContacts saves the task's merged contacts in one bulk upsert keyed
// by (task_id, identity_key), so re-saving after a partial failure is safe.
func (s *PostgresStore) UpsertContacts(ctx context.Context, taskID string, contacts []model.MergedContact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(contacts))
	for i, c := range contacts {
		emails, err := json.Marshal(c.Emails)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal emails")
		}
		rows = append(rows, []any{
			taskID, i, c.IdentityKey, c.Name, emails, c.PrimaryEmail,
			c.Description, c.Website, c.Phone, c.Address, c.Category, c.Country,
			c.HasContactInfo, nullableTime(c.FetchedAt), nullableTime(c.MergedAt),
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "contacts",
		Columns:      contactColumns,
		ConflictKeys: []string{"task_id", "identity_key"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert contacts for task %s", taskID)
	}
	return int(n), nil
}

// ListContacts returns the task's contacts in stored order.
func (s *PostgresStore) ListContacts(ctx context.Context, taskID string) ([]model.MergedContact, error) {
	rows, err := s.pool.Query(ctx, "list_contacts", taskID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.MergedContact
	for rows.Next() {
		var c model.MergedContact
		var emails []byte
		var fetchedAt, mergedAt *time.Time
		if err := rows.Scan(
			&c.IdentityKey, &c.Name, &emails, &c.PrimaryEmail,
			&c.Description, &c.Website, &c.Phone, &c.Address, &c.Category,
			&c.Country, &c.HasContactInfo, &fetchedAt, &mergedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		if err := json.Unmarshal(emails, &c.Emails); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal emails")
		}
		if fetchedAt != nil {
			c.FetchedAt = *fetchedAt
		}
		if mergedAt != nil {
			c.MergedAt = *mergedAt
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// nullableTime maps the zero time onto SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
