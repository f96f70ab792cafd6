package moddb

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mod_records").WillReturnResult(sqlmock.NewResult(0, 0))

	logger, _ := test.NewNullLogger()
	store, err := NewStore(context.Background(), db, logger)
	require.NoError(t, err)
	return store, mock
}

func TestNewStore_SchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mod_records").WillReturnError(errors.New("disk full"))

	_, err = NewStore(context.Background(), db, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Upsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO mod_records").
		WithArgs("alice.farming", "alice.Farming", "assume_broken", "uses the removed tick API", "", "1.4.0").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Upsert(context.Background(), &plugins.DataRecord{
		ID:           "alice.Farming",
		Status:       plugins.RecordAssumeBroken,
		StatusReason: "uses the removed tick API",
		UpperVersion: "1.4.0",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	record := store.Lookup("ALICE.FARMING")
	require.NotNil(t, record)
	assert.Equal(t, plugins.RecordAssumeBroken, record.Status)
}

func TestStore_UpsertRejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t)

	tests := []struct {
		name   string
		record *plugins.DataRecord
	}{
		{"nil", nil},
		{"missing id", &plugins.DataRecord{Status: plugins.RecordOK}},
		{"unknown status", &plugins.DataRecord{ID: "a.b", Status: "maybe"}},
		{"bad upper version", &plugins.DataRecord{ID: "a.b", Status: plugins.RecordObsolete, UpperVersion: "one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Upsert(context.Background(), tt.record)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Refresh(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"display_id", "status", "status_reason", "page_url", "upper_version"}).
		AddRow("alice.Farming", "obsolete", "merged into the host", "", "").
		AddRow("bob.Core", "assume_compatible", "", "https://example.com/core", "2.0.0")
	mock.ExpectQuery("SELECT (.+) FROM mod_records").WillReturnRows(rows)

	require.NoError(t, store.Refresh(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	record := store.Lookup("bob.core")
	require.NotNil(t, record)
	assert.Equal(t, "bob.Core", record.ID)
	assert.Equal(t, "2.0.0", record.UpperVersion)
	assert.Nil(t, store.Lookup("carol.Missing"))
}

func TestStore_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM mod_records WHERE id").
		WithArgs("carol.missing").
		WillReturnRows(sqlmock.NewRows([]string{"display_id", "status", "status_reason", "page_url", "upper_version"}))

	record, err := store.Get(context.Background(), "carol.Missing")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SQLite(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	store, err := Open(ctx, filepath.Join(t.TempDir(), "moddb.sqlite"), logger)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	seed := `
records:
  - id: alice.Farming
    status: assume_broken
    reason: uses the removed tick API
    upper_version: 1.4.0
  - id: bob.Core
    status: obsolete
    reason: merged into the host
`
	n, err := store.Import(ctx, strings.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Upsert(ctx, &plugins.DataRecord{ID: "alice.Farming", Status: plugins.RecordOK}))
	require.NoError(t, store.Delete(ctx, "bob.core"))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice.Farming", records[0].ID)
	assert.Equal(t, plugins.RecordOK, records[0].Status)

	reopened, err := NewStore(ctx, store.db, logger)
	require.NoError(t, err)
	require.NoError(t, reopened.Refresh(ctx))
	assert.NotNil(t, reopened.Lookup("alice.farming"))
	assert.Nil(t, reopened.Lookup("bob.Core"))
}

func TestStore_ImportRejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Import(context.Background(), strings.NewReader("records:\n  - id: a.b\n    status: unknown\n"))
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}
