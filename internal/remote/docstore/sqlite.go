package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/remote/docstore/migrations"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore is a DocumentStore backed by one SQLite table holding JSON documents.
type SQLiteStore struct {
	db    *sql.DB
	clock remote.Clock
}

var _ remote.DocumentStore = (*SQLiteStore)(nil)

var sortColumns = map[remote.SortField]string{
	"":                   "created_at",
	remote.SortCreatedAt: "created_at",
	remote.SortUpdatedAt: "updated_at",
}

// OpenSQLite opens and configures a SQLite connection.
// path can be a file path or ":memory:".
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and a single
	// writer avoids SQLITE_BUSY on files.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// NewSQLiteStore opens path, applies pending migrations and returns the store.
func NewSQLiteStore(path string, clock remote.Clock) (*SQLiteStore, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, clock), nil
}

// NewSQLiteStoreFromDB wraps an already migrated connection.
func NewSQLiteStoreFromDB(db *sql.DB, clock remote.Clock) *SQLiteStore {
	if clock == nil {
		clock = remote.RealClock{}
	}
	return &SQLiteStore{db: db, clock: clock}
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return remote.Document{}, err
	}

	data, err := json.Marshal(mergeFields(nil, fields))
	if err != nil {
		return remote.Document{}, fmt.Errorf("%w: encode fields: %w", remote.ErrPersistence, err)
	}

	now := s.clock.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(data), now.UnixNano(), now.UnixNano())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return remote.Document{}, fmt.Errorf("%w: document %s/%s already exists", remote.ErrPersistence, collection, id)
		}
		return remote.Document{}, fmt.Errorf("%w: insert document: %w", remote.ErrPersistence, err)
	}

	logger.WithComponent("sqlite-docstore").Debugf("created document %s/%s", collection, id)
	return buildDocument(collection, id, data, now.UnixNano(), now.UnixNano())
}

func (s *SQLiteStore) GetDocument(ctx context.Context, collection, id string) (remote.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return remote.Document{}, err
	}
	return s.get(ctx, s.db, collection, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryRower, collection, id string) (remote.Document, error) {
	var (
		data             string
		created, updated int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&data, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return remote.Document{}, fmt.Errorf("document %s/%s: %w", collection, id, remote.ErrNotFound)
		}
		return remote.Document{}, fmt.Errorf("%w: select document: %w", remote.ErrPersistence, err)
	}
	return buildDocument(collection, id, []byte(data), created, updated)
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return remote.Document{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return remote.Document{}, fmt.Errorf("%w: begin: %w", remote.ErrPersistence, err)
	}
	defer tx.Rollback()

	current, err := s.get(ctx, tx, collection, id)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return remote.Document{}, fmt.Errorf("update %w: %w", remote.ErrPersistence, err)
		}
		return remote.Document{}, err
	}

	data, err := json.Marshal(mergeFields(current.Fields, fields))
	if err != nil {
		return remote.Document{}, fmt.Errorf("%w: encode fields: %w", remote.ErrPersistence, err)
	}
	updated := s.clock.Now().UnixNano()
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(data), updated, collection, id); err != nil {
		return remote.Document{}, fmt.Errorf("%w: update document: %w", remote.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return remote.Document{}, fmt.Errorf("%w: commit: %w", remote.ErrPersistence, err)
	}

	logger.WithComponent("sqlite-docstore").Debugf("updated document %s/%s", collection, id)
	return buildDocument(collection, id, data, current.CreatedAt.UnixNano(), updated)
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: delete document: %w", remote.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete document: %w", remote.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	logger.WithComponent("sqlite-docstore").Debugf("deleted document %s/%s", collection, id)
	return nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, collection string, q remote.Query) (remote.Page, error) {
	if collection == "" {
		return remote.Page{}, fmt.Errorf("%w: collection is required", remote.ErrInvalidArgument)
	}
	if err := validateQuery(q); err != nil {
		return remote.Page{}, err
	}
	col := sortColumns[q.OrderBy]

	where := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range q.Filters {
		if f.Contains {
			where = append(where, "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE value = ?)")
		} else {
			where = append(where, "json_extract(data, ?) = ?")
		}
		args = append(args, "$."+f.Field, f.Value)
	}
	if q.Search != nil {
		for _, word := range strings.Fields(strings.ToLower(q.Search.Term)) {
			where = append(where, `lower(json_extract(data, ?)) LIKE ? ESCAPE '\'`)
			args = append(args, "$."+q.Search.Field, "%"+escapeLike(word)+"%")
		}
	}
	filter := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+filter, args...).Scan(&total); err != nil {
		return remote.Page{}, fmt.Errorf("%w: count documents: %w", remote.ErrPersistence, err)
	}

	pageWhere := filter
	pageArgs := append([]any{}, args...)
	if q.CursorAfter != "" {
		var cursorKey int64
		err := s.db.QueryRowContext(ctx,
			"SELECT "+col+" FROM documents WHERE collection = ? AND id = ?",
			collection, q.CursorAfter).Scan(&cursorKey)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return remote.Page{}, fmt.Errorf("cursor document %s: %w", q.CursorAfter, remote.ErrNotFound)
			}
			return remote.Page{}, fmt.Errorf("%w: select cursor: %w", remote.ErrPersistence, err)
		}
		pageWhere += " AND (" + col + " < ? OR (" + col + " = ? AND id < ?))"
		pageArgs = append(pageArgs, cursorKey, cursorKey, q.CursorAfter)
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	pageArgs = append(pageArgs, limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data, created_at, updated_at FROM documents WHERE "+pageWhere+
			" ORDER BY "+col+" DESC, id DESC LIMIT ?", pageArgs...)
	if err != nil {
		return remote.Page{}, fmt.Errorf("%w: list documents: %w", remote.ErrPersistence, err)
	}
	defer rows.Close()

	page := remote.Page{Documents: []remote.Document{}, Total: total}
	for rows.Next() {
		var (
			id, data         string
			created, updated int64
		)
		if err := rows.Scan(&id, &data, &created, &updated); err != nil {
			return remote.Page{}, fmt.Errorf("%w: scan document: %w", remote.ErrPersistence, err)
		}
		doc, err := buildDocument(collection, id, []byte(data), created, updated)
		if err != nil {
			return remote.Page{}, err
		}
		page.Documents = append(page.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return remote.Page{}, fmt.Errorf("%w: iterate documents: %w", remote.ErrPersistence, err)
	}
	return page, nil
}

func buildDocument(collection, id string, data []byte, created, updated int64) (remote.Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return remote.Document{}, fmt.Errorf("%w: decode document %s/%s: %w", remote.ErrPersistence, collection, id, err)
	}
	return remote.Document{
		Collection: collection,
		ID:         id,
		Fields:     fields,
		CreatedAt:  time.Unix(0, created).UTC(),
		UpdatedAt:  time.Unix(0, updated).UTC(),
	}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
