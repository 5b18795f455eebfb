package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"life.tape/internal/models"
)

func newPostgresWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreWithDB(db), mock
}

var entryCols = []string{"id", "transcript", "title", "tag", "is_dark_side", "created_at", "duration", "audio_uri"}

func TestPostgres_GetState(t *testing.T) {
	st, mock := newPostgresWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key, value, updated_at FROM app_state WHERE key = $1`)).
		WithArgs("life-tape-user-storage").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow("life-tape-user-storage", []byte(`{"state":{"isOnboarded":true}}`), now))

	rec, err := st.GetState(context.Background(), "life-tape-user-storage")
	require.NoError(t, err)
	assert.Equal(t, "life-tape-user-storage", rec.Key)
	assert.JSONEq(t, `{"state":{"isOnboarded":true}}`, string(rec.Value))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetState_NotFound(t *testing.T) {
	st, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`SELECT key, value, updated_at FROM app_state`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))

	_, err := st.GetState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_UpsertState(t *testing.T) {
	st, mock := newPostgresWithMock(t)

	mock.ExpectExec(`INSERT INTO app_state .* ON CONFLICT \(key\)\s+DO UPDATE SET value = EXCLUDED.value`).
		WithArgs("k", `{"v":1}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.UpsertState(context.Background(), &models.StateRecord{Key: "k", Value: []byte(`{"v":1}`)}))
	assert.ErrorIs(t, st.UpsertState(context.Background(), &models.StateRecord{}), ErrInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteState_DBError(t *testing.T) {
	st, mock := newPostgresWithMock(t)

	mock.ExpectExec(`DELETE FROM app_state`).WithArgs("k").WillReturnError(errors.New("boom"))

	err := st.DeleteState(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete state")
}

func TestBuildListQuery(t *testing.T) {
	dark := false
	q, args := buildListQuery(models.EntryFilter{DarkSide: &dark, Tag: "work", Search: "50%", Limit: 10})

	assert.Equal(t,
		"SELECT id, transcript, title, tag, is_dark_side, created_at, duration, audio_uri FROM entries"+
			" WHERE is_dark_side = $1 AND tag = $2 AND (title ILIKE $3 OR transcript ILIKE $3 OR tag ILIKE $3)"+
			" ORDER BY created_at DESC, id ASC LIMIT $4",
		q)
	assert.Equal(t, []any{false, "work", `%50\%%`, 10}, args)

	q, args = buildListQuery(models.EntryFilter{Ascending: true})
	assert.Equal(t, "SELECT "+entryColumns+" FROM entries ORDER BY created_at ASC, id ASC", q)
	assert.Empty(t, args)
}

func TestPostgres_ListEntries(t *testing.T) {
	st, mock := newPostgresWithMock(t)
	dark := true

	mock.ExpectQuery(`SELECT .* FROM entries WHERE is_dark_side = \$1 ORDER BY created_at DESC`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("e2", "second", "TWO", "work", true, int64(200), int64(5), "s3://b/k").
			AddRow("e1", "first", "ONE", nil, true, int64(100), int64(3), nil))

	got, err := st.ListEntries(context.Background(), models.EntryFilter{DarkSide: &dark})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.Entry{ID: "e2", Transcript: "second", Title: "TWO", Tag: "work", IsDarkSide: true, CreatedAt: 200, Duration: 5, AudioURI: "s3://b/k"}, *got[0])
	assert.Equal(t, "", got[1].Tag)
	assert.Equal(t, "", got[1].AudioURI)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertEntry(t *testing.T) {
	st, mock := newPostgresWithMock(t)
	e := &models.Entry{ID: "e1", Transcript: "t", Title: "T", CreatedAt: 1, Duration: 2}

	mock.ExpectExec(`INSERT INTO entries .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("e1", "t", "T", nil, false, int64(1), int64(2), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO entries`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, st.InsertEntry(context.Background(), e))
	assert.ErrorIs(t, st.InsertEntry(context.Background(), e), ErrConflict)
	assert.ErrorIs(t, st.InsertEntry(context.Background(), &models.Entry{}), ErrInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateEntry(t *testing.T) {
	st, mock := newPostgresWithMock(t)
	title := "RENAMED"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM entries WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entryCols).AddRow("e1", "t", "OLD", "work", false, int64(1), int64(2), nil))
	mock.ExpectExec(`UPDATE entries`).
		WithArgs("e1", "t", "RENAMED", "work", false, int64(2), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := st.UpdateEntry(context.Background(), "e1", models.EntryPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "RENAMED", e.Title)
	assert.Equal(t, "work", e.Tag)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateEntry_NotFoundRollsBack(t *testing.T) {
	st, mock := newPostgresWithMock(t)
	title := "X"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FOR UPDATE`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(entryCols))
	mock.ExpectRollback()

	_, err := st.UpdateEntry(context.Background(), "nope", models.EntryPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteEntry(t *testing.T) {
	st, mock := newPostgresWithMock(t)

	mock.ExpectExec(`DELETE FROM entries WHERE id = \$1`).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM entries WHERE id = \$1`).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, st.DeleteEntry(context.Background(), "e1"))
	assert.ErrorIs(t, st.DeleteEntry(context.Background(), "e1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UsesEmbeddedFS(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}
