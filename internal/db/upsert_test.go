package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "contacts",
		Columns:      []string{"task_id", "identity_key"},
		ConflictKeys: []string{"task_id", "identity_key"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_MissingConfig(t *testing.T) {
	rows := [][]any{{"t1", "k1"}}

	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "contacts"}, rows)
	assert.Error(t, err)

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "contacts",
		Columns: []string{"task_id"},
	}, rows)
	assert.Error(t, err)
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_contacts"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_contacts"}, []string{"task_id", "identity_key", "name"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "contacts" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rows := [][]any{
		{"t1", "example.com", "Example"},
		{"t1", "acme.com", "Acme"},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "contacts",
		Columns:      []string{"task_id", "identity_key", "name"},
		ConflictKeys: []string{"task_id", "identity_key"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
