// Package memory is the in-process document store used by tests and the
// single-instance deployment. Transactions use optimistic concurrency: each
// read remembers the version it saw and commit fails if any of them moved.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/pkg/platform/sentinel"
)

type record struct {
	fields  docstore.Fields
	version int64
}

// Store keeps documents in maps guarded by one RWMutex. Every committed
// write takes the next value of a global sequence as its version, and the
// collection it touched records that value too so query reads can be
// validated.
type Store struct {
	mu          sync.RWMutex
	docs        map[string]map[string]*record
	collVersion map[string]int64
	seq         int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		docs:        make(map[string]map[string]*record),
		collVersion: make(map[string]int64),
	}
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, _, err := s.getLocked(collection, id)
	return doc, err
}

func (s *Store) Query(ctx context.Context, collection string, preds ...docstore.Predicate) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	valid, err := docstore.ValidatePredicates(preds)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, _ := s.queryLocked(collection, valid)
	return docs, nil
}

func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t := &tx{
		store:   s,
		reads:   make(map[docstore.DocKey]int64),
		queried: make(map[string]int64),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return s.commit(t.WriteSet.Seal(), t.validate)
}

func (s *Store) RunBatch(ctx context.Context, fn func(b docstore.Batch) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	b := &docstore.WriteSet{}
	if err := fn(b); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return s.commit(b.Seal(), nil)
}

func (s *Store) Close() error { return nil }

// Reset drops every document.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]map[string]*record)
	s.collVersion = make(map[string]int64)
}

func (s *Store) getLocked(collection, id string) (*docstore.Document, int64, error) {
	rec, ok := s.docs[collection][id]
	if !ok {
		return nil, 0, fmt.Errorf("get %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	return &docstore.Document{
		Collection: collection,
		ID:         id,
		Fields:     rec.fields.Clone(),
		Version:    rec.version,
	}, rec.version, nil
}

func (s *Store) queryLocked(collection string, preds []docstore.Predicate) ([]*docstore.Document, int64) {
	var out []*docstore.Document
	for id, rec := range s.docs[collection] {
		if !docstore.Matches(rec.fields, preds) {
			continue
		}
		out = append(out, &docstore.Document{
			Collection: collection,
			ID:         id,
			Fields:     rec.fields.Clone(),
			Version:    rec.version,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, s.collVersion[collection]
}

// commit validates (when validate is non-nil) and applies writes under the
// write lock. Nothing is applied unless every write can be.
func (s *Store) commit(writes []docstore.Write, validate func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if validate != nil {
		if err := validate(); err != nil {
			return err
		}
	}
	for _, w := range writes {
		_, exists := s.docs[w.Collection][w.ID]
		switch {
		case w.Kind == docstore.WriteCreate && exists:
			return fmt.Errorf("create %s/%s: %w", w.Collection, w.ID, sentinel.ErrAlreadyUsed)
		case w.Kind == docstore.WriteUpdate && !exists:
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, sentinel.ErrNotFound)
		}
	}

	for _, w := range writes {
		s.seq++
		coll, ok := s.docs[w.Collection]
		if !ok {
			coll = make(map[string]*record)
			s.docs[w.Collection] = coll
		}
		if w.Kind == docstore.WriteCreate {
			coll[w.ID] = &record{fields: w.Fields.Clone(), version: s.seq}
		} else {
			rec := coll[w.ID]
			rec.fields = docstore.Merge(rec.fields, w.Fields)
			rec.version = s.seq
		}
		s.collVersion[w.Collection] = s.seq
	}
	return nil
}

type tx struct {
	docstore.WriteSet
	store   *Store
	reads   map[docstore.DocKey]int64
	queried map[string]int64
}

func (t *tx) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := t.checkRead(ctx); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	doc, version, err := t.store.getLocked(collection, id)
	t.reads[docstore.DocKey{Collection: collection, ID: id}] = version
	return doc, err
}

func (t *tx) Query(ctx context.Context, collection string, preds ...docstore.Predicate) ([]*docstore.Document, error) {
	if err := t.checkRead(ctx); err != nil {
		return nil, err
	}
	valid, err := docstore.ValidatePredicates(preds)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	docs, version := t.store.queryLocked(collection, valid)
	if _, seen := t.queried[collection]; !seen {
		t.queried[collection] = version
	}
	return docs, nil
}

func (t *tx) checkRead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.WriteSet.Len() > 0 {
		return fmt.Errorf("read after write in transaction: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// validate runs under the store write lock.
func (t *tx) validate() error {
	for key, seen := range t.reads {
		var current int64
		if rec, ok := t.store.docs[key.Collection][key.ID]; ok {
			current = rec.version
		}
		if current != seen {
			return fmt.Errorf("%s/%s changed since read: %w", key.Collection, key.ID, sentinel.ErrConflict)
		}
	}
	for collection, seen := range t.queried {
		if t.store.collVersion[collection] != seen {
			return fmt.Errorf("collection %s changed since query: %w", collection, sentinel.ErrConflict)
		}
	}
	return nil
}
