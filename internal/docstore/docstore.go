// Package docstore is the transactional document store the sanction engine
// runs on. Documents live in named collections and carry flat field maps;
// adapters exist for memory, PostgreSQL and Redis.
//
// Semantics shared by every adapter:
//   - Reads inside a transaction see committed state; staged writes become
//     visible only after commit.
//   - A transaction commits only if nothing it read (documents, or the result
//     set of a query) changed since the read. Otherwise it fails with
//     sentinel.ErrConflict and no write is applied. Adapters never retry.
//   - A batch applies all of its writes or none, without read validation.
//   - Update merges fields into an existing document and fails with
//     sentinel.ErrNotFound when it is absent. Create fails with
//     sentinel.ErrAlreadyUsed when the id is taken.
package docstore

import (
	"context"

	"github.com/google/uuid"
)

// Fields is a flat document body. Values are normalized to string, bool,
// int64, float64, time.Time (UTC) or nil.
type Fields map[string]any

// Clone returns a shallow copy; every supported value is immutable.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Document is a stored record.
type Document struct {
	Collection string
	ID         string
	Fields     Fields
	// Version increases on every committed write.
	Version int64
}

// Reader reads committed documents.
type Reader interface {
	// Get returns sentinel.ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Query returns every document of collection matching all predicates,
	// ordered by id.
	Query(ctx context.Context, collection string, preds ...Predicate) ([]*Document, error)
}

// Writer stages writes for an atomic commit.
type Writer interface {
	Create(collection, id string, fields Fields) error
	Update(collection, id string, fields Fields) error
}

// Tx is a read-validate-write unit of work.
type Tx interface {
	Reader
	Writer
}

// Batch is a write-only atomic unit.
type Batch interface {
	Writer
}

// TxFunc is the body of a transaction. Returning an error aborts it.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is implemented by every adapter.
type Store interface {
	Reader
	RunTransaction(ctx context.Context, fn TxFunc) error
	RunBatch(ctx context.Context, fn func(b Batch) error) error
	Close() error
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}
