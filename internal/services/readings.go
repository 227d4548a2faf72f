package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

const (
	ReadingsCollection = "readings"

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	recentKeyPrefix = "readings:client:"
	recentKeySuffix = ":recent"
	recentMaxLen    = 20
	recentTTL       = 1 * time.Hour
)

var ErrHistoryDisabled = errors.New("reading history is not configured")

// ReadingHistory stores completed readings in MongoDB. A Redis list keeps the
// newest readings per client for the first history page.
type ReadingHistory struct {
	col    *mongo.Collection
	cache  redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

// NewReadingHistory returns a history over col. cache may be nil.
func NewReadingHistory(col *mongo.Collection, cache redis.Cmdable, logger *zap.Logger) *ReadingHistory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadingHistory{col: col, cache: cache, logger: logger, now: time.Now}
}

// EnsureIndexes configures indexes for the readings collection.
// Called on startup from main after Mongo has connected.
func (h *ReadingHistory) EnsureIndexes(ctx context.Context) error {
	if h == nil || h.col == nil {
		return ErrHistoryDisabled
	}
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_client_created"),
		},
		{
			Keys:    bson.D{{Key: "reading_id", Value: 1}},
			Options: options.Index().SetName("idx_reading_id").SetUnique(true),
		},
	}
	_, err := h.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save persists r, filling in its id and timestamp when missing.
func (h *ReadingHistory) Save(ctx context.Context, r *models.Reading) error {
	if h == nil || h.col == nil {
		return ErrHistoryDisabled
	}
	if r.ReadingID == "" {
		r.ReadingID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = h.now().UTC()
	}
	if _, err := h.col.InsertOne(ctx, r); err != nil {
		return err
	}
	h.pushRecent(ctx, r)
	return nil
}

// List returns a client's readings newest first. Pagination is by created_at;
// before nil means the first page, which is served from Redis when cached.
func (h *ReadingHistory) List(ctx context.Context, clientID string, before *time.Time, limit int64) ([]models.Reading, bool, error) {
	if h == nil || h.col == nil {
		return nil, false, ErrHistoryDisabled
	}
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}

	if before == nil && limit <= recentMaxLen {
		if cached, ok := h.recent(ctx, clientID); ok {
			if page, hasMore, ok := cachedPage(cached, limit); ok {
				return page, hasMore, nil
			}
		}
	}

	filter := bson.M{"client_id": clientID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := h.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var out []models.Reading
	for cur.Next(ctx) {
		var r models.Reading
		if err := cur.Decode(&r); err != nil {
			continue
		}
		out = append(out, r)
	}
	if err := cur.Err(); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(out)) > limit
	if hasMore {
		out = out[:limit]
	}
	if before == nil && len(out) > 0 && (!hasMore || len(out) >= recentMaxLen) {
		h.warmRecent(ctx, clientID, out)
	}
	return out, hasMore, nil
}

// cachedPage answers a first page from the cached list. A full list that is
// exactly one page long cannot tell whether older rows exist, so ok is false
// and the caller asks Mongo.
func cachedPage(cached []models.Reading, limit int64) ([]models.Reading, bool, bool) {
	switch n := int64(len(cached)); {
	case n > limit:
		return cached[:limit], true, true
	case n < recentMaxLen:
		// a short list is the whole history
		return cached, false, true
	default:
		return nil, false, false
	}
}

func recentKey(clientID string) string {
	return recentKeyPrefix + clientID + recentKeySuffix
}

// pushRecent adds r at the head of the client's cached list. The list is
// only created by warmRecent so it always mirrors the newest Mongo rows.
func (h *ReadingHistory) pushRecent(ctx context.Context, r *models.Reading) {
	if h.cache == nil {
		return
	}
	data, err := json.Marshal(cachedReading(*r))
	if err != nil {
		return
	}
	key := recentKey(r.ClientID)
	pipe := h.cache.Pipeline()
	pipe.LPushX(ctx, key, data)
	pipe.LTrim(ctx, key, 0, recentMaxLen-1)
	pipe.Expire(ctx, key, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.Warn("recent readings push failed", zap.Error(err))
	}
}

// recent returns the cached list newest first; ok is false on a miss.
func (h *ReadingHistory) recent(ctx context.Context, clientID string) ([]models.Reading, bool) {
	if h.cache == nil {
		return nil, false
	}
	raw, err := h.cache.LRange(ctx, recentKey(clientID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	out := make([]models.Reading, 0, len(raw))
	for _, item := range raw {
		var c cachedReading
		if json.Unmarshal([]byte(item), &c) != nil {
			continue
		}
		out = append(out, models.Reading(c))
	}
	return out, len(out) > 0
}

// warmRecent replaces the cached list with a page fetched from Mongo. The
// page is either the full history or at least recentMaxLen rows.
func (h *ReadingHistory) warmRecent(ctx context.Context, clientID string, page []models.Reading) {
	if h.cache == nil {
		return
	}
	key := recentKey(clientID)
	pipe := h.cache.Pipeline()
	pipe.Del(ctx, key)
	for _, r := range page {
		data, err := json.Marshal(cachedReading(r))
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, recentMaxLen-1)
	pipe.Expire(ctx, key, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.Warn("recent readings warm failed", zap.Error(err))
	}
}

// cachedReading is models.Reading with every field serialized, since the
// client-facing JSON hides the owner.
type cachedReading struct {
	ID        primitive.ObjectID `json:"oid"`
	ReadingID string             `json:"reading_id"`
	ClientID  string             `json:"client_id"`
	Kind      models.ReadingKind `json:"kind"`
	CreatedAt time.Time          `json:"created_at"`
	Payload   interface{}        `json:"payload"`
}
