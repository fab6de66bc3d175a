// Package postgres stores documents as JSONB rows in a single table.
// Transactions run at SERIALIZABLE isolation, so PostgreSQL detects the
// read-write conflicts the engine relies on and reports them as SQLSTATE
// 40001, which this package maps to sentinel.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	fields      JSONB       NOT NULL,
	time_fields JSONB       NOT NULL DEFAULT '[]'::jsonb,
	version     BIGINT      NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_fields_gin ON documents USING GIN (fields jsonb_path_ops);
`

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// Store implements docstore.Store on database/sql.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for commit failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps an open pool. The caller owns db unless Close is called.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the documents table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", mapError(err))
	}
	return nil
}

// Truncate removes every document. Intended for tests.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE documents`); err != nil {
		return fmt.Errorf("truncate documents: %w", mapError(err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return get(ctx, s.db, collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, preds ...docstore.Predicate) ([]*docstore.Document, error) {
	return query(ctx, s.db, collection, preds)
}

func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	t := &tx{sqlTx: sqlTx}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := applyWrites(ctx, sqlTx, t.WriteSet.Seal()); err != nil {
		s.logCommitFailure(ctx, "transaction", err)
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		s.logCommitFailure(ctx, "transaction", err)
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

func (s *Store) RunBatch(ctx context.Context, fn func(b docstore.Batch) error) error {
	b := &docstore.WriteSet{}
	if err := fn(b); err != nil {
		return err
	}
	writes := b.Seal()
	if len(writes) == 0 {
		return nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", mapError(err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	if err := applyWrites(ctx, sqlTx, writes); err != nil {
		s.logCommitFailure(ctx, "batch", err)
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		s.logCommitFailure(ctx, "batch", err)
		return fmt.Errorf("commit batch: %w", mapError(err))
	}
	return nil
}

func (s *Store) logCommitFailure(ctx context.Context, kind string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.DebugContext(ctx, "document store commit failed",
		"kind", kind,
		"conflict", errors.Is(err, sentinel.ErrConflict),
		"error", err,
	)
}

type tx struct {
	docstore.WriteSet
	sqlTx *sql.Tx
}

func (t *tx) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if t.WriteSet.Len() > 0 {
		return nil, fmt.Errorf("read after write in transaction: %w", sentinel.ErrInvalidState)
	}
	return get(ctx, t.sqlTx, collection, id)
}

func (t *tx) Query(ctx context.Context, collection string, preds ...docstore.Predicate) ([]*docstore.Document, error) {
	if t.WriteSet.Len() > 0 {
		return nil, fmt.Errorf("read after write in transaction: %w", sentinel.ErrInvalidState)
	}
	return query(ctx, t.sqlTx, collection, preds)
}

func get(ctx context.Context, q queryer, collection, id string) (*docstore.Document, error) {
	var (
		data, timeFields []byte
		version          int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT fields, time_fields, version FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data, &timeFields, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, mapError(err))
	}
	return toDocument(collection, id, data, timeFields, version)
}

func query(ctx context.Context, q queryer, collection string, preds []docstore.Predicate) ([]*docstore.Document, error) {
	valid, err := docstore.ValidatePredicates(preds)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	where, args := buildWhere(collection, valid)

	rows, err := q.QueryContext(ctx,
		`SELECT id, fields, time_fields, version FROM documents WHERE `+where+` ORDER BY id COLLATE "C"`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapError(err))
	}
	defer rows.Close()

	var out []*docstore.Document
	for rows.Next() {
		var (
			id               string
			data, timeFields []byte
			version          int64
		)
		if err := rows.Scan(&id, &data, &timeFields, &version); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, mapError(err))
		}
		doc, err := toDocument(collection, id, data, timeFields, version)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapError(err))
	}
	return out, nil
}

// buildWhere translates predicates into SQL. Field names travel as
// parameters. Each comparison is guarded by a CASE on the JSON type so a
// value of another type reads as NULL and never matches.
func buildWhere(collection string, preds []docstore.Predicate) (string, []any) {
	args := []any{collection}
	clauses := []string{"collection = $1"}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, p := range preds {
		field := next(p.Field)
		op := string(p.Op)
		if p.Op == docstore.OpEq {
			op = "="
		} else if p.Op == docstore.OpNe {
			op = "<>"
		}

		switch v := p.Value.(type) {
		case []string:
			clauses = append(clauses, fmt.Sprintf(
				`(CASE WHEN jsonb_typeof(fields->%[1]s) = 'string' THEN fields->>%[1]s END) = ANY(%[2]s::text[])`,
				field, next(pq.Array(v))))
		case string:
			clauses = append(clauses, fmt.Sprintf(
				`(CASE WHEN jsonb_typeof(fields->%[1]s) = 'string' THEN fields->>%[1]s END) COLLATE "C" %[2]s %[3]s::text`,
				field, op, next(v)))
		case bool:
			clauses = append(clauses, fmt.Sprintf(
				`(CASE WHEN jsonb_typeof(fields->%[1]s) = 'boolean' THEN (fields->>%[1]s)::boolean END) %[2]s %[3]s::boolean`,
				field, op, next(v)))
		case int64:
			clauses = append(clauses, fmt.Sprintf(
				`(CASE WHEN jsonb_typeof(fields->%[1]s) = 'number' AND NOT jsonb_exists(time_fields, %[1]s) THEN (fields->>%[1]s)::numeric END) %[2]s %[3]s::numeric`,
				field, op, next(v)))
		case float64:
			clauses = append(clauses, fmt.Sprintf(
				`(CASE WHEN jsonb_typeof(fields->%[1]s) = 'number' AND NOT jsonb_exists(time_fields, %[1]s) THEN (fields->>%[1]s)::double precision END) %[2]s %[3]s::double precision`,
				field, op, next(v)))
		case time.Time:
			clauses = append(clauses, fmt.Sprintf(
				`(CASE WHEN jsonb_exists(time_fields, %[1]s) THEN (fields->>%[1]s)::bigint END) %[2]s %[3]s::bigint`,
				field, op, next(v.UnixNano())))
		}
	}
	return strings.Join(clauses, " AND "), args
}

func applyWrites(ctx context.Context, e execer, writes []docstore.Write) error {
	for _, w := range writes {
		enc, err := docstore.Encode(w.Fields)
		if err != nil {
			return err
		}
		timeFields, err := json.Marshal(nonNil(enc.TimeFields))
		if err != nil {
			return fmt.Errorf("encode time fields: %w", err)
		}

		switch w.Kind {
		case docstore.WriteCreate:
			_, err = e.ExecContext(ctx,
				`INSERT INTO documents (collection, id, fields, time_fields, version, updated_at)
				 VALUES ($1, $2, $3::jsonb, $4::jsonb, 1, now())`,
				w.Collection, w.ID, string(enc.Data), string(timeFields),
			)
			if err != nil {
				return fmt.Errorf("create %s/%s: %w", w.Collection, w.ID, mapError(err))
			}
		case docstore.WriteUpdate:
			// Keys rewritten by this update drop their old time marker.
			res, err := e.ExecContext(ctx,
				`UPDATE documents SET
					fields = fields || $3::jsonb,
					time_fields = COALESCE(
						(SELECT jsonb_agg(k) FROM jsonb_array_elements_text(time_fields) AS k
						 WHERE NOT jsonb_exists($3::jsonb, k)),
						'[]'::jsonb) || $4::jsonb,
					version = version + 1,
					updated_at = now()
				 WHERE collection = $1 AND id = $2`,
				w.Collection, w.ID, string(enc.Data), string(timeFields),
			)
			if err != nil {
				return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, mapError(err))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, mapError(err))
			}
			if n == 0 {
				return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, sentinel.ErrNotFound)
			}
		}
	}
	return nil
}

func toDocument(collection, id string, data, timeFieldsJSON []byte, version int64) (*docstore.Document, error) {
	var timeFields []string
	if len(timeFieldsJSON) > 0 {
		if err := json.Unmarshal(timeFieldsJSON, &timeFields); err != nil {
			return nil, fmt.Errorf("decode time fields of %s/%s: %w", collection, id, err)
		}
	}
	sort.Strings(timeFields)
	fields, err := docstore.Decode(docstore.Encoded{Data: data, TimeFields: timeFields})
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &docstore.Document{Collection: collection, ID: id, Fields: fields, Version: version}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// mapError attaches sentinel meaning to driver errors while keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %w", sentinel.ErrAlreadyUsed, err)
		}
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
