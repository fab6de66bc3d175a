package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/pkg/platform/sentinel"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	raw, err := encode(docstore.Fields{"endAt": at, "status": "active"}, 4)
	require.NoError(t, err)

	doc, err := decode("sanctions", "san-1", raw)
	require.NoError(t, err)
	assert.Equal(t, int64(4), doc.Version)
	assert.Equal(t, at, doc.Fields["endAt"])
	assert.Equal(t, "active", doc.Fields["status"])
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "doc:vehicles:veh-1", docKey("vehicles", "veh-1"))
	assert.Equal(t, "docs:vehicles", setKey("vehicles"))
}

func TestMapErrorMarksDeadlinesUnavailable(t *testing.T) {
	assert.ErrorIs(t, mapError(context.DeadlineExceeded), sentinel.ErrUnavailable)
	assert.False(t, sentinel.IsRetryable(mapError(assert.AnError)))
}
