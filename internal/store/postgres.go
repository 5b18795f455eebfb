package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"life.tape/internal/models"
	"life.tape/internal/store/migrations"
)

var _ Store = (*PostgresStore)(nil)

// DBTX is the subset of database/sql used by the queries below. Both *sql.DB
// and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// NewPostgresStore opens dsn with the pgx driver, verifies the connection
// and applies the embedded migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return NewPostgresStoreWithDB(db), nil
}

// NewPostgresStoreWithDB wraps an already open, migrated database.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunMigrations runs the embedded goose migrations against db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (p *PostgresStore) GetState(ctx context.Context, key string) (*models.StateRecord, error) {
	const query = `SELECT key, value, updated_at FROM app_state WHERE key = $1`

	var rec models.StateRecord
	var value []byte
	err := p.db.QueryRowContext(ctx, query, key).Scan(&rec.Key, &value, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select state: %w", err)
	}
	rec.Value = value
	return &rec, nil
}

func (p *PostgresStore) UpsertState(ctx context.Context, rec *models.StateRecord) error {
	if rec.Key == "" {
		return ErrInvalid
	}
	const query = `
		INSERT INTO app_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	if _, err := p.db.ExecContext(ctx, query, rec.Key, string(rec.Value), updatedAt); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteState(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

const entryColumns = `id, transcript, title, tag, is_dark_side, created_at, duration, audio_uri`

func (p *PostgresStore) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.Entry, error) {
	query, args := buildListQuery(filter)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildListQuery(filter models.EntryFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.DarkSide != nil {
		args = append(args, *filter.DarkSide)
		where = append(where, fmt.Sprintf("is_dark_side = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf("tag = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR transcript ILIKE $%d OR tag ILIKE $%d)", n, n, n))
	}

	var b strings.Builder
	b.WriteString("SELECT " + entryColumns + " FROM entries")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if filter.Ascending {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id ASC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *PostgresStore) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	return getEntry(ctx, p.db, id, false)
}

func getEntry(ctx context.Context, db DBTX, id string, forUpdate bool) (*models.Entry, error) {
	query := "SELECT " + entryColumns + " FROM entries WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("select entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanEntry(rows)
}

func (p *PostgresStore) InsertEntry(ctx context.Context, e *models.Entry) error {
	if e.ID == "" {
		return ErrInvalid
	}
	const query = `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	res, err := p.db.ExecContext(ctx, query,
		e.ID, e.Transcript, e.Title, nullString(e.Tag), e.IsDarkSide, e.CreatedAt, e.Duration, nullString(e.AudioURI))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (p *PostgresStore) UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (*models.Entry, error) {
	var updated *models.Entry
	err := withTx(ctx, p.db, func(ctx context.Context, tx DBTX) error {
		e, err := getEntry(ctx, tx, id, true)
		if err != nil {
			return err
		}
		patch.Apply(e)

		const query = `
			UPDATE entries
			SET transcript = $2, title = $3, tag = $4, is_dark_side = $5, duration = $6, audio_uri = $7
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.Transcript, e.Title, nullString(e.Tag), e.IsDarkSide, e.Duration, nullString(e.AudioURI)); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (p *PostgresStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		e        models.Entry
		tag      sql.NullString
		audioURI sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Transcript, &e.Title, &tag, &e.IsDarkSide, &e.CreatedAt, &e.Duration, &audioURI); err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Tag = tag.String
	e.AudioURI = audioURI.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
