// Package docstoretest holds the behavioural suite every docstore adapter
// must pass. Adapter packages run it from their own tests.
package docstoretest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/pkg/platform/sentinel"
)

// Suite exercises a fresh store per test. NewStore must return an empty store.
type Suite struct {
	suite.Suite
	NewStore func() docstore.Store
	store    docstore.Store
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore()
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *Suite) seed(collection, id string, fields docstore.Fields) {
	err := s.store.RunBatch(context.Background(), func(b docstore.Batch) error {
		return b.Create(collection, id, fields)
	})
	s.Require().NoError(err)
}

func (s *Suite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(context.Background(), "vehicles", "absent")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestBatchCreateRoundTripsTypes() {
	at := time.Date(2025, 3, 14, 9, 30, 0, 123456789, time.FixedZone("PHT", 8*3600))
	s.seed("vehicles", "veh-1", docstore.Fields{
		"plateNumber":       "ABC-123",
		"hasActiveSanction": true,
		"offenseNumber":     2,
		"validUntil":        at,
		"sanctionId":        nil,
	})

	doc, err := s.store.Get(context.Background(), "vehicles", "veh-1")
	s.Require().NoError(err)
	s.Equal("veh-1", doc.ID)
	s.Equal("ABC-123", doc.Fields["plateNumber"])
	s.Equal(true, doc.Fields["hasActiveSanction"])
	s.Equal(int64(2), doc.Fields["offenseNumber"])
	s.Equal(at.UTC(), doc.Fields["validUntil"])
	s.Nil(doc.Fields["sanctionId"])
	s.Positive(doc.Version)
}

func (s *Suite) TestUpdateMergesAndBumpsVersion() {
	s.seed("vehicles", "veh-1", docstore.Fields{"registrationStatus": "active", "plateNumber": "X"})
	before, err := s.store.Get(context.Background(), "vehicles", "veh-1")
	s.Require().NoError(err)

	err = s.store.RunBatch(context.Background(), func(b docstore.Batch) error {
		return b.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "warned"})
	})
	s.Require().NoError(err)

	after, err := s.store.Get(context.Background(), "vehicles", "veh-1")
	s.Require().NoError(err)
	s.Equal("warned", after.Fields["registrationStatus"])
	s.Equal("X", after.Fields["plateNumber"])
	s.Greater(after.Version, before.Version)
}

func (s *Suite) TestBatchIsAllOrNothing() {
	err := s.store.RunBatch(context.Background(), func(b docstore.Batch) error {
		if err := b.Create("sanctions", "san-1", docstore.Fields{"status": "active"}); err != nil {
			return err
		}
		return b.Update("vehicles", "missing", docstore.Fields{"hasActiveSanction": true})
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Get(context.Background(), "sanctions", "san-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestCreateExistingFails() {
	s.seed("sanctions", "san-1", docstore.Fields{"status": "active"})
	err := s.store.RunBatch(context.Background(), func(b docstore.Batch) error {
		return b.Create("sanctions", "san-1", docstore.Fields{"status": "cleared"})
	})
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	doc, err := s.store.Get(context.Background(), "sanctions", "san-1")
	s.Require().NoError(err)
	s.Equal("active", doc.Fields["status"])
}

func (s *Suite) TestQueryPredicates() {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.seed("sanctions", "s1", docstore.Fields{"type": "suspension", "status": "active", "endAt": base.Add(-time.Hour)})
	s.seed("sanctions", "s2", docstore.Fields{"type": "suspension", "status": "active", "endAt": base})
	s.seed("sanctions", "s3", docstore.Fields{"type": "suspension", "status": "active", "endAt": base.Add(time.Hour)})
	s.seed("sanctions", "s4", docstore.Fields{"type": "revocation", "status": "active"})
	s.seed("sanctions", "s5", docstore.Fields{"type": "warning", "status": "completed", "endAt": nil})

	ctx := context.Background()
	ids := func(docs []*docstore.Document) []string {
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	s.Run("equality and time upper bound", func() {
		docs, err := s.store.Query(ctx, "sanctions",
			docstore.Where("type", docstore.OpEq, "suspension"),
			docstore.Where("status", docstore.OpEq, "active"),
			docstore.Where("endAt", docstore.OpLte, base),
		)
		s.Require().NoError(err)
		s.Equal([]string{"s1", "s2"}, ids(docs))
	})

	s.Run("open interval", func() {
		docs, err := s.store.Query(ctx, "sanctions",
			docstore.Where("endAt", docstore.OpGt, base.Add(-time.Hour)),
			docstore.Where("endAt", docstore.OpLt, base.Add(2*time.Hour)),
		)
		s.Require().NoError(err)
		s.Equal([]string{"s2", "s3"}, ids(docs))
	})

	s.Run("not equal skips documents without the field", func() {
		docs, err := s.store.Query(ctx, "sanctions", docstore.Where("endAt", docstore.OpNe, base))
		s.Require().NoError(err)
		s.Equal([]string{"s1", "s3"}, ids(docs))
	})

	s.Run("in", func() {
		docs, err := s.store.Query(ctx, "sanctions", docstore.Where("type", docstore.OpIn, []string{"warning", "revocation"}))
		s.Require().NoError(err)
		s.Equal([]string{"s4", "s5"}, ids(docs))
	})

	s.Run("no predicates returns the whole collection", func() {
		docs, err := s.store.Query(ctx, "sanctions")
		s.Require().NoError(err)
		s.Len(docs, 5)
	})

	s.Run("invalid predicate", func() {
		_, err := s.store.Query(ctx, "sanctions", docstore.Where("type", docstore.OpIn, "warning"))
		s.Require().Error(err)
	})
}

func (s *Suite) TestTransactionCommitsStagedWrites() {
	s.seed("vehicles", "veh-1", docstore.Fields{"registrationStatus": "active", "hasActiveSanction": false})

	err := s.store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, "vehicles", "veh-1"); err != nil {
			return err
		}
		if err := tx.Create("sanctions", "san-1", docstore.Fields{"vehicleId": "veh-1", "status": "active"}); err != nil {
			return err
		}
		return tx.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "suspended", "hasActiveSanction": true})
	})
	s.Require().NoError(err)

	veh, err := s.store.Get(context.Background(), "vehicles", "veh-1")
	s.Require().NoError(err)
	s.Equal("suspended", veh.Fields["registrationStatus"])
	s.Equal(true, veh.Fields["hasActiveSanction"])

	_, err = s.store.Get(context.Background(), "sanctions", "san-1")
	s.Require().NoError(err)
}

func (s *Suite) TestTransactionAbortAppliesNothing() {
	s.seed("vehicles", "veh-1", docstore.Fields{"registrationStatus": "active"})
	boom := errors.New("boom")

	err := s.store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, "vehicles", "veh-1"); err != nil {
			return err
		}
		if err := tx.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "revoked"}); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	veh, err := s.store.Get(context.Background(), "vehicles", "veh-1")
	s.Require().NoError(err)
	s.Equal("active", veh.Fields["registrationStatus"])
}

func (s *Suite) TestTransactionConflictsWhenReadDocumentChanges() {
	s.seed("vehicles", "veh-1", docstore.Fields{"registrationStatus": "active"})

	err := s.store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, "vehicles", "veh-1"); err != nil {
			return err
		}
		// A competing writer commits between our read and our commit.
		if err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
			return b.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "warned"})
		}); err != nil {
			return err
		}
		return tx.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "suspended"})
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	veh, err := s.store.Get(context.Background(), "vehicles", "veh-1")
	s.Require().NoError(err)
	s.Equal("warned", veh.Fields["registrationStatus"])
}

func (s *Suite) TestReadAfterWriteIsRejected() {
	s.seed("vehicles", "veh-1", docstore.Fields{"registrationStatus": "active"})

	err := s.store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "warned"}); err != nil {
			return err
		}
		_, err := tx.Get(ctx, "vehicles", "veh-1")
		return err
	})
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
}

// TestConcurrentIncrements checks that retried transactions never lose an update.
func (s *Suite) TestConcurrentIncrements() {
	s.seed("counters", "c", docstore.Fields{"n": 0})
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 50; attempt++ {
				err := s.store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
					doc, err := tx.Get(ctx, "counters", "c")
					if err != nil {
						return err
					}
					return tx.Update("counters", "c", docstore.Fields{"n": doc.Fields["n"].(int64) + 1})
				})
				if err == nil {
					return
				}
				if !sentinel.IsRetryable(err) {
					errs <- err
					return
				}
			}
			errs <- errors.New("retries exhausted")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	doc, err := s.store.Get(context.Background(), "counters", "c")
	s.Require().NoError(err)
	s.Equal(int64(workers), doc.Fields["n"])
}
