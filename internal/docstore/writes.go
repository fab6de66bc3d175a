package docstore

import (
	"fmt"

	"vehicle-sanctions/pkg/platform/sentinel"
)

// WriteKind distinguishes staged creates from merges.
type WriteKind int

const (
	WriteCreate WriteKind = iota + 1
	WriteUpdate
)

// Write is one staged mutation.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Fields     Fields
}

// Key identifies the target document.
func (w Write) Key() DocKey {
	return DocKey{Collection: w.Collection, ID: w.ID}
}

// DocKey identifies a document across collections.
type DocKey struct {
	Collection string
	ID         string
}

// WriteSet collects staged writes for adapters. Values are normalized at
// staging time so a bad field fails the unit of work before commit.
// Writes to the same document are folded: a create followed by updates stays
// a create with merged fields.
type WriteSet struct {
	writes []Write
	index  map[DocKey]int
	sealed bool
}

func (s *WriteSet) Create(collection, id string, fields Fields) error {
	return s.stage(WriteCreate, collection, id, fields)
}

func (s *WriteSet) Update(collection, id string, fields Fields) error {
	return s.stage(WriteUpdate, collection, id, fields)
}

func (s *WriteSet) stage(kind WriteKind, collection, id string, fields Fields) error {
	if s.sealed {
		return fmt.Errorf("stage write on %s/%s: %w", collection, id, sentinel.ErrInvalidState)
	}
	if collection == "" || id == "" {
		return fmt.Errorf("stage write: collection and id are required")
	}
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return fmt.Errorf("stage write on %s/%s: %w", collection, id, err)
	}
	key := DocKey{Collection: collection, ID: id}
	if s.index == nil {
		s.index = make(map[DocKey]int)
	}
	if i, ok := s.index[key]; ok {
		if kind == WriteCreate {
			return fmt.Errorf("create %s/%s: %w", collection, id, sentinel.ErrAlreadyUsed)
		}
		s.writes[i].Fields = Merge(s.writes[i].Fields, normalized)
		return nil
	}
	s.index[key] = len(s.writes)
	s.writes = append(s.writes, Write{Kind: kind, Collection: collection, ID: id, Fields: normalized})
	return nil
}

// Seal stops further staging and returns the writes in staging order.
func (s *WriteSet) Seal() []Write {
	s.sealed = true
	return s.writes
}

// Len reports the number of distinct documents written.
func (s *WriteSet) Len() int {
	return len(s.writes)
}
