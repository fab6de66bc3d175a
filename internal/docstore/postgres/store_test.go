package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/pkg/platform/sentinel"
)

func TestBuildWhere(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	preds, err := docstore.ValidatePredicates([]docstore.Predicate{
		docstore.Where("status", docstore.OpEq, "active"),
		docstore.Where("endAt", docstore.OpLte, now),
		docstore.Where("type", docstore.OpIn, []string{"suspension"}),
	})
	require.NoError(t, err)

	where, args := buildWhere("sanctions", preds)

	assert.Contains(t, where, "collection = $1")
	assert.Contains(t, where, `COLLATE "C" = $3::text`)
	assert.Contains(t, where, "<= $5::bigint")
	assert.Contains(t, where, "= ANY($7::text[])")
	require.Len(t, args, 7)
	assert.Equal(t, "sanctions", args[0])
	assert.Equal(t, "status", args[1])
	assert.Equal(t, now.UnixNano(), args[4])
}

func TestMapError(t *testing.T) {
	conflict := fmt.Errorf("exec: %w", &pgconn.PgError{Code: sqlStateSerializationFailure})
	assert.ErrorIs(t, mapError(conflict), sentinel.ErrConflict)

	deadlock := &pgconn.PgError{Code: sqlStateDeadlockDetected}
	assert.ErrorIs(t, mapError(deadlock), sentinel.ErrConflict)

	dup := &pgconn.PgError{Code: sqlStateUniqueViolation}
	assert.ErrorIs(t, mapError(dup), sentinel.ErrAlreadyUsed)

	other := errors.New("syntax error")
	assert.Equal(t, other, mapError(other))
	assert.False(t, sentinel.IsRetryable(mapError(other)))
}
