// Package redis stores each document as a JSON value and tracks collection
// membership in a set. Transactions WATCH every key they read (including
// the collection set for queries) and commit with MULTI/EXEC, so a
// concurrent change surfaces as redis.TxFailedErr and then
// sentinel.ErrConflict.
//
// Batches also need to read the documents they merge into. They watch those
// keys and re-run the merge a few times when EXEC is aborted; callers never
// observe a partially applied batch.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"

	"github.com/redis/go-redis/v9"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/pkg/platform/sentinel"
)

const (
	docKeyPrefix      = "doc:"
	setKeyPrefix      = "docs:"
	batchMergeRetries = 3
)

// envelope is the stored JSON value.
type envelope struct {
	Version    int64           `json:"v"`
	TimeFields []string        `json:"t,omitempty"`
	Fields     json.RawMessage `json:"f"`
}

// Store implements docstore.Store on a single Redis node.
type Store struct {
	client *redis.Client
}

// New wraps client. The client lifecycle is managed by the caller unless
// Close is called.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func docKey(collection, id string) string {
	return docKeyPrefix + collection + ":" + id
}

func setKey(collection string) string {
	return setKeyPrefix + collection
}

// cmdable is satisfied by both *redis.Client and *redis.Tx.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return get(ctx, s.client, collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, preds ...docstore.Predicate) ([]*docstore.Document, error) {
	valid, err := docstore.ValidatePredicates(preds)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	ids, err := s.client.SMembers(ctx, setKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapError(err))
	}
	return load(ctx, s.client, collection, ids, valid)
}

func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := &tx{rtx: rtx}
		if err := fn(ctx, t); err != nil {
			return err
		}
		return commit(ctx, rtx, t.WriteSet.Seal())
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("commit transaction: %w", sentinel.ErrConflict)
	}
	return err
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

	for attempt := 0; attempt < batchMergeRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			return commit(ctx, rtx, writes)
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("commit batch: %w", sentinel.ErrConflict)
}

type tx struct {
	docstore.WriteSet
	rtx *redis.Tx
}

func (t *tx) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if t.WriteSet.Len() > 0 {
		return nil, fmt.Errorf("read after write in transaction: %w", sentinel.ErrInvalidState)
	}
	if err := t.rtx.Watch(ctx, docKey(collection, id)).Err(); err != nil {
		return nil, fmt.Errorf("watch %s/%s: %w", collection, id, mapError(err))
	}
	return get(ctx, t.rtx, collection, id)
}

func (t *tx) Query(ctx context.Context, collection string, preds ...docstore.Predicate) ([]*docstore.Document, error) {
	if t.WriteSet.Len() > 0 {
		return nil, fmt.Errorf("read after write in transaction: %w", sentinel.ErrInvalidState)
	}
	valid, err := docstore.ValidatePredicates(preds)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if err := t.rtx.Watch(ctx, setKey(collection)).Err(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", collection, mapError(err))
	}
	ids, err := t.rtx.SMembers(ctx, setKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapError(err))
	}
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = docKey(collection, id)
		}
		// Every member is watched, not only matches: a document that starts
		// matching after this read must abort the commit.
		if err := t.rtx.Watch(ctx, keys...).Err(); err != nil {
			return nil, fmt.Errorf("watch %s members: %w", collection, mapError(err))
		}
	}
	return load(ctx, t.rtx, collection, ids, valid)
}

func get(ctx context.Context, c cmdable, collection, id string) (*docstore.Document, error) {
	raw, err := c.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, mapError(err))
	}
	return decode(collection, id, raw)
}

func load(ctx context.Context, c cmdable, collection string, ids []string, preds []docstore.Predicate) ([]*docstore.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, mapError(err))
	}

	var out []*docstore.Document
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Set member without a document; skip it.
			continue
		}
		doc, err := decode(collection, ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		if docstore.Matches(doc.Fields, preds) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// commit reads the current value of every written key under WATCH, merges,
// and applies all writes in one MULTI/EXEC.
func commit(ctx context.Context, rtx *redis.Tx, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = docKey(w.Collection, w.ID)
	}
	if err := rtx.Watch(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("watch writes: %w", mapError(err))
	}
	current, err := rtx.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("read before commit: %w", mapError(err))
	}

	values := make([][]byte, len(writes))
	for i, w := range writes {
		raw, exists := current[i].(string)
		switch {
		case w.Kind == docstore.WriteCreate && exists:
			return fmt.Errorf("create %s/%s: %w", w.Collection, w.ID, sentinel.ErrAlreadyUsed)
		case w.Kind == docstore.WriteUpdate && !exists:
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, sentinel.ErrNotFound)
		}

		fields, version := w.Fields, int64(1)
		if exists {
			prev, err := decode(w.Collection, w.ID, []byte(raw))
			if err != nil {
				return err
			}
			fields = docstore.Merge(prev.Fields, w.Fields)
			version = prev.Version + 1
		}
		data, err := encode(fields, version)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		values[i] = data
	}

	_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, w := range writes {
			pipe.Set(ctx, keys[i], values[i], 0)
			if w.Kind == docstore.WriteCreate {
				pipe.SAdd(ctx, setKey(w.Collection), w.ID)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("exec: %w", mapError(err))
	}
	return err
}

func encode(fields docstore.Fields, version int64) ([]byte, error) {
	enc, err := docstore.Encode(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: version, TimeFields: enc.TimeFields, Fields: enc.Data})
}

func decode(collection, id string, raw []byte) (*docstore.Document, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	fields, err := docstore.Decode(docstore.Encoded{Data: env.Fields, TimeFields: env.TimeFields})
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &docstore.Document{Collection: collection, ID: id, Fields: fields, Version: env.Version}, nil
}

func mapError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
