package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	queries       TEXT NOT NULL,
	location      TEXT NOT NULL,
	max_results   INTEGER NOT NULL,
	language      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	error         TEXT NOT NULL DEFAULT '',
	needs_review  INTEGER NOT NULL DEFAULT 0,
	base_count    INTEGER NOT NULL DEFAULT 0,
	contact_count INTEGER NOT NULL DEFAULT 0,
	saved_count   INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	task_id          TEXT NOT NULL REFERENCES tasks(id),
	seq              INTEGER NOT NULL,
	identity_key     TEXT NOT NULL,
	name             TEXT NOT NULL,
	emails           TEXT NOT NULL,
	primary_email    TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	country          TEXT NOT NULL DEFAULT '',
	has_contact_info INTEGER NOT NULL DEFAULT 0,
	fetched_at       DATETIME,
	merged_at        DATETIME,
	PRIMARY KEY (task_id, identity_key)
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_contacts_task_seq ON contacts(task_id, seq);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTask inserts a new task row.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.SearchTask) error {
	queries, err := json.Marshal(task.Queries)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal queries")
	}
	location, err := json.Marshal(task.Location)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal location")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, queries, location, max_results, language, status, error, needs_review, base_count, contact_count, saved_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, string(queries), string(location), task.MaxResults, task.Language,
		task.Status, task.Error, task.NeedsReview,
		task.BaseCount, task.ContactCount, task.SavedCount,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create task")
	}
	return nil
}

// UpdateTask persists mutable task fields.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.SearchTask) error {
	task.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, error = ?, needs_review = ?, base_count = ?, contact_count = ?, saved_count = ?, updated_at = ? WHERE id = ?`,
		task.Status, task.Error, task.NeedsReview,
		task.BaseCount, task.ContactCount, task.SavedCount,
		task.UpdatedAt, task.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update task")
	}
	return nil
}

const taskColumns = `id, queries, location, max_results, language, status, error, needs_review, base_count, contact_count, saved_count, created_at, updated_at`

// GetTask loads one task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*model.SearchTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	task, err := scanSQLiteTask(row.Scan)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get task %s", taskID)
	}
	return task, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.SearchTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close()

	var tasks []model.SearchTask
	for rows.Next() {
		task, err := scanSQLiteTask(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanSQLiteTask(scan func(dest ...any) error) (*model.SearchTask, error) {
	var task model.SearchTask
	var queries, location string
	if err := scan(
		&task.ID, &queries, &location, &task.MaxResults, &task.Language,
		&task.Status, &task.Error, &task.NeedsReview,
		&task.BaseCount, &task.ContactCount, &task.SavedCount,
		&task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(queries), &task.Queries); err != nil {
		return nil, eris.Wrap(err, "unmarshal queries")
	}
	if err := json.Unmarshal([]byte(location), &task.Location); err != nil {
		return nil, eris.Wrap(err, "unmarshal location")
	}
	return &task, nil
}

// UpsertContacts saves the task's merged contacts inside one transaction,
// keyed by (task_id, identity_key) so re-saving is safe.
func (s *SQLiteStore) UpsertContacts(ctx context.Context, taskID string, contacts []model.MergedContact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contacts (task_id, seq, identity_key, name, emails, primary_email, description, website, phone, address, category, country, has_contact_info, fetched_at, merged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (task_id, identity_key) DO UPDATE SET
			seq = excluded.seq,
			name = excluded.name,
			emails = excluded.emails,
			primary_email = excluded.primary_email,
			description = excluded.description,
			website = excluded.website,
			phone = excluded.phone,
			address = excluded.address,
			category = excluded.category,
			country = excluded.country,
			has_contact_info = excluded.has_contact_info,
			fetched_at = excluded.fetched_at,
			merged_at = excluded.merged_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for i, c := range contacts {
		emails, err := json.Marshal(c.Emails)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal emails")
		}
		if _, err := stmt.ExecContext(ctx,
			taskID, i, c.IdentityKey, c.Name, string(emails), c.PrimaryEmail,
			c.Description, c.Website, c.Phone, c.Address, c.Category, c.Country,
			c.HasContactInfo, sqliteTime(c.FetchedAt), sqliteTime(c.MergedAt),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert contact %s", c.IdentityKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return len(contacts), nil
}

// ListContacts returns the task's contacts in stored order.
func (s *SQLiteStore) ListContacts(ctx context.Context, taskID string) ([]model.MergedContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_key, name, emails, primary_email, description, website, phone, address, category, country, has_contact_info, fetched_at, merged_at
		 FROM contacts WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []model.MergedContact
	for rows.Next() {
		var c model.MergedContact
		var emails string
		var fetchedAt, mergedAt sql.NullTime
		if err := rows.Scan(
			&c.IdentityKey, &c.Name, &emails, &c.PrimaryEmail,
			&c.Description, &c.Website, &c.Phone, &c.Address, &c.Category,
			&c.Country, &c.HasContactInfo, &fetchedAt, &mergedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		if err := json.Unmarshal([]byte(emails), &c.Emails); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal emails")
		}
		if fetchedAt.Valid {
			c.FetchedAt = fetchedAt.Time
		}
		if mergedAt.Valid {
			c.MergedAt = mergedAt.Time
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// sqliteTime maps the zero time onto SQL NULL.
func sqliteTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
