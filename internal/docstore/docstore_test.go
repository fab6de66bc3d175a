package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-sanctions/pkg/platform/sentinel"
)

type plate string

func TestNormalizeValue(t *testing.T) {
	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.FixedZone("PHT", 8*3600))

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int widens", 3, int64(3)},
		{"named string", plate("ABC-123"), "ABC-123"},
		{"time to UTC", at, at.UTC()},
		{"nil time pointer", (*time.Time)(nil), nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeValue([]int{1})
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	fields := Fields{
		"status": "active",
		"endAt":  now,
		"count":  int64(2),
		"flag":   true,
	}

	match := func(preds ...Predicate) bool {
		valid, err := ValidatePredicates(preds)
		require.NoError(t, err)
		return Matches(fields, valid)
	}

	assert.True(t, match(Where("status", OpEq, "active"), Where("endAt", OpLte, now)))
	assert.False(t, match(Where("endAt", OpLt, now)))
	assert.True(t, match(Where("count", OpGte, 2)))
	assert.True(t, match(Where("flag", OpEq, true)))
	assert.True(t, match(Where("status", OpIn, []string{"cleared", "active"})))
	assert.False(t, match(Where("missing", OpNe, "x")), "absent fields never match")
	assert.False(t, match(Where("count", OpEq, "2")), "type mismatch never matches")
}

func TestValidatePredicateRejectsBadShapes(t *testing.T) {
	_, err := Where("flag", OpLt, true).Validate()
	assert.Error(t, err)
	_, err = Where("x", Op("~"), "a").Validate()
	assert.Error(t, err)
	_, err = Where("x", OpEq, nil).Validate()
	assert.Error(t, err)
	_, err = Where("", OpEq, "a").Validate()
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 2, 8, 0, 0, 42, time.UTC)
	in := Fields{
		"plateNumber":   "ABC-123",
		"offenseNumber": int64(3),
		"endAt":         at,
		"sanctionId":    nil,
		"active":        true,
		"ratio":         0.5,
	}
	enc, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"endAt"}, enc.TimeFields)

	out, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteSetFoldsWritesPerDocument(t *testing.T) {
	var ws WriteSet
	require.NoError(t, ws.Create("sanctions", "s1", Fields{"status": "active"}))
	require.NoError(t, ws.Update("sanctions", "s1", Fields{"endAt": nil}))
	require.NoError(t, ws.Update("vehicles", "v1", Fields{"hasActiveSanction": true}))
	assert.ErrorIs(t, ws.Create("sanctions", "s1", Fields{}), sentinel.ErrAlreadyUsed)

	writes := ws.Seal()
	require.Len(t, writes, 2)
	assert.Equal(t, WriteCreate, writes[0].Kind)
	assert.Equal(t, Fields{"status": "active", "endAt": nil}, writes[0].Fields)

	assert.ErrorIs(t, ws.Update("vehicles", "v1", Fields{}), sentinel.ErrInvalidState)
}
