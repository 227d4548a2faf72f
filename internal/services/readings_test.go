package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

func readingDoc(id, client string, kind models.ReadingKind, at time.Time) bson.D {
	return bson.D{
		{Key: "reading_id", Value: id},
		{Key: "client_id", Value: client},
		{Key: "kind", Value: string(kind)},
		{Key: "created_at", Value: at},
		{Key: "payload", Value: bson.D{{Key: "spread", Value: "Daily"}}},
	}
}

func TestReadingHistory_Disabled(t *testing.T) {
	var nilHistory *ReadingHistory
	assert.ErrorIs(t, nilHistory.Save(context.Background(), &models.Reading{}), ErrHistoryDisabled)

	h := NewReadingHistory(nil, nil, nil)
	_, _, err := h.List(context.Background(), "c", nil, 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	assert.ErrorIs(t, h.EnsureIndexes(context.Background()), ErrHistoryDisabled)
}

func TestReadingHistory_Mongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save fills id and time", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		h := NewReadingHistory(mt.Coll, nil, nil)
		h.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

		r := &models.Reading{ClientID: "c1", Kind: models.ReadingKindTarot, Payload: map[string]string{"spread": "Quick"}}
		require.NoError(t, h.Save(context.Background(), r))
		assert.NotEmpty(t, r.ReadingID)
		assert.Equal(t, "2026-10-18T12:00:00Z", r.CreatedAt.Format(time.RFC3339))
	})

	mt.Run("save error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		h := NewReadingHistory(mt.Coll, nil, nil)
		err := h.Save(context.Background(), &models.Reading{ReadingID: "dup", ClientID: "c1"})
		assert.Error(t, err)
	})

	mt.Run("list paginates", func(mt *mtest.T) {
		now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			readingDoc("r3", "c1", models.ReadingKindTarot, now),
			readingDoc("r2", "c1", models.ReadingKindPalm, now.Add(-time.Hour)),
			readingDoc("r1", "c1", models.ReadingKindFace, now.Add(-2*time.Hour)),
		))
		h := NewReadingHistory(mt.Coll, nil, nil)

		out, hasMore, err := h.List(context.Background(), "c1", nil, 2)
		require.NoError(t, err)
		assert.True(t, hasMore)
		require.Len(t, out, 2)
		assert.Equal(t, "r3", out[0].ReadingID)
		assert.Equal(t, models.ReadingKindPalm, out[1].Kind)
	})

	mt.Run("list last page", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			readingDoc("r1", "c1", models.ReadingKindNumerology, time.Now()),
		))
		h := NewReadingHistory(mt.Coll, nil, nil)

		before := time.Now()
		out, hasMore, err := h.List(context.Background(), "c1", &before, 0)
		require.NoError(t, err)
		assert.False(t, hasMore)
		assert.Len(t, out, 1)
	})

	mt.Run("unreachable cache falls through to mongo", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			readingDoc("r1", "c1", models.ReadingKindTarot, time.Now()),
		))
		cache := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			MaxRetries:  -1,
			DialTimeout: 100 * time.Millisecond,
		})
		defer cache.Close()

		h := NewReadingHistory(mt.Coll, cache, nil)
		out, _, err := h.List(context.Background(), "c1", nil, 5)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		h := NewReadingHistory(mt.Coll, nil, nil)
		assert.NoError(t, h.EnsureIndexes(context.Background()))
	})
}

func TestCachedPage(t *testing.T) {
	list := func(n int) []models.Reading {
		out := make([]models.Reading, n)
		for i := range out {
			out[i].ReadingID = string(rune('a' + i))
		}
		return out
	}

	page, more, ok := cachedPage(list(recentMaxLen), 5)
	require.True(t, ok)
	assert.Len(t, page, 5)
	assert.True(t, more)

	page, more, ok = cachedPage(list(7), DefaultHistoryLimit)
	require.True(t, ok)
	assert.Len(t, page, 7)
	assert.False(t, more)

	// exactly one full page: older rows may or may not exist
	_, _, ok = cachedPage(list(recentMaxLen), recentMaxLen)
	assert.False(t, ok)
}
