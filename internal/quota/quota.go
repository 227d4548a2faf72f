// Package quota tracks per-day action counters such as tarot draws.
//
// Each tracked key holds one models.UsageCounter JSON record in a
// kvstore.Store. A Tracker starts Uninitialized, becomes Loaded after Load and
// then answers Remaining and Record. Storage failures never reach the caller:
// reads degrade to the in-memory count and writes are logged and dropped
// while the in-memory count still advances. The Manager keeps one Tracker per
// key, so that count outlives a single request.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/kvstore"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

const (
	// TarotActivity is the storage key prefix for tarot draws
	TarotActivity = "tarot_daily_usage"
	// AppActivity is the storage key prefix for general app usage
	AppActivity = "app_daily_usage"
	// DefaultTarotLimit is the number of tarot draws allowed per day
	DefaultTarotLimit = 3
	// DefaultTrackerCacheSize bounds the trackers a Manager keeps in memory
	DefaultTrackerCacheSize = 10000

	dayLayout = "2006-01-02"
)

var (
	ErrNotLoaded = errors.New("quota: tracker not loaded")
	ErrExhausted = errors.New("quota: daily limit reached")
)

// State is the lifecycle of a Tracker.
type State int

const (
	Uninitialized State = iota
	Loaded
)

// Observer receives quota outcomes, typically for metrics.
type Observer interface {
	ObserveRecord(activity string, allowed bool)
	ObserveStorageFailure(activity, op string)
}

type nopObserver struct{}

func (nopObserver) ObserveRecord(string, bool)           {}
func (nopObserver) ObserveStorageFailure(string, string) {}

// Manager hands out trackers that share a store, a limit and a per-key
// critical section.
type Manager struct {
	store    kvstore.Store
	limit    int
	now      func() time.Time
	logger   *zap.Logger
	observer Observer
	locks    *keyLocks
	size     int
	trackers *lru.Cache[string, *Tracker]
}

type Option func(*Manager)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithTrackerCacheSize bounds how many keys keep an in-memory tracker. The
// least recently used trackers are dropped first.
func WithTrackerCacheSize(n int) Option {
	return func(m *Manager) { m.size = n }
}

// NewManager builds a Manager enforcing limit actions per day.
func NewManager(store kvstore.Store, limit int, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		limit:    limit,
		now:      time.Now,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		locks:    newKeyLocks(),
		size:     DefaultTrackerCacheSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.size <= 0 {
		m.size = DefaultTrackerCacheSize
	}
	trackers, err := lru.New[string, *Tracker](m.size)
	if err != nil {
		// only possible with a non-positive size
		panic(err)
	}
	m.trackers = trackers
	return m
}

// Limit returns the configured daily bound.
func (m *Manager) Limit() int {
	return m.limit
}

// Key joins an activity and a client identity into a storage key.
func Key(activity, identity string) string {
	if identity == "" {
		return activity
	}
	return activity + ":" + identity
}

// Tracker returns the tracker for key, creating an Uninitialized one on first
// use. Later calls for the same key share its in-memory count.
func (m *Manager) Tracker(key string) *Tracker {
	if t, ok := m.trackers.Get(key); ok {
		return t
	}
	t := &Tracker{m: m, key: key}
	if prev, found, _ := m.trackers.PeekOrAdd(key, t); found {
		return prev
	}
	return t
}

// Today is the ISO day in UTC used for counter records.
func (m *Manager) Today() string {
	return m.now().UTC().Format(dayLayout)
}

// Tracker is the state machine for one key. It is safe for concurrent use.
type Tracker struct {
	m   *Manager
	key string

	mu    sync.Mutex
	state State
	date  string
	count int
}

// Snapshot is a point-in-time view of a tracker.
type Snapshot struct {
	Key       string
	Date      string
	Count     int
	Limit     int
	Remaining int
}

// Summary converts the snapshot into the client-facing record.
func (s Snapshot) Summary(activity string) models.UsageSummary {
	return models.UsageSummary{
		Activity:  activity,
		Date:      s.Date,
		Limit:     s.Limit,
		Used:      s.Count,
		Remaining: s.Remaining,
	}
}

// State reports whether Load has completed.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Load reads the persisted counter. A missing, unreadable or stale record is
// replaced with a fresh record for today. The result never drops below the
// count this tracker already holds for today.
func (t *Tracker) Load(ctx context.Context) Snapshot {
	unlock := t.m.locks.lock(t.key)
	defer unlock()

	today := t.m.Today()

	t.mu.Lock()
	count := 0
	if t.date == today {
		count = t.count
	}
	t.mu.Unlock()

	if rec, ok := t.read(ctx); ok && rec.Date == today {
		count = max(count, rec.Count)
	} else {
		t.write(ctx, models.UsageCounter{Date: today, Count: count})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Loaded
	t.date = today
	t.count = count
	return t.snapshotLocked()
}

// Remaining is max(limit - count, 0). An Uninitialized tracker has nothing
// remaining.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Loaded {
		return 0
	}
	return t.remainingLocked()
}

// Snapshot returns the current in-memory view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Record counts one completed action. It must only be called once the
// action is confirmed. The read-modify-write runs inside the key's critical
// section and picks up increments made by other trackers for the same key.
// ErrExhausted is returned without changing anything when no quota is left.
func (t *Tracker) Record(ctx context.Context) (Snapshot, error) {
	if t.State() != Loaded {
		return Snapshot{}, ErrNotLoaded
	}

	unlock := t.m.locks.lock(t.key)
	defer unlock()

	today := t.m.Today()

	t.mu.Lock()
	base := 0
	if t.date == today {
		base = t.count
	}
	t.mu.Unlock()

	if rec, ok := t.read(ctx); ok && rec.Date == today && rec.Count > base {
		base = rec.Count
	}

	activity := activityOf(t.key)
	if base >= t.m.limit {
		t.m.observer.ObserveRecord(activity, false)
		t.mu.Lock()
		defer t.mu.Unlock()
		t.date = today
		t.count = base
		return t.snapshotLocked(), ErrExhausted
	}

	next := min(base+1, t.m.limit)
	t.write(ctx, models.UsageCounter{Date: today, Count: next})
	t.m.observer.ObserveRecord(activity, true)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.date = today
	t.count = next
	return t.snapshotLocked(), nil
}

func (t *Tracker) remainingLocked() int {
	return max(t.m.limit-t.count, 0)
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{Key: t.key, Date: t.date, Count: t.count, Limit: t.m.limit}
	if t.state == Loaded {
		s.Remaining = t.remainingLocked()
	}
	return s
}

// read returns the stored record; ok is false for a missing or undecodable
// value and for any store error.
func (t *Tracker) read(ctx context.Context) (models.UsageCounter, bool) {
	raw, found, err := t.m.store.Get(ctx, t.key)
	if err != nil {
		t.m.logger.Warn("usage counter read failed", zap.String("key", t.key), zap.Error(err))
		t.m.observer.ObserveStorageFailure(activityOf(t.key), "read")
		return models.UsageCounter{}, false
	}
	if !found {
		return models.UsageCounter{}, false
	}
	var rec models.UsageCounter
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.m.logger.Warn("usage counter is not valid JSON", zap.String("key", t.key), zap.Error(err))
		return models.UsageCounter{}, false
	}
	if rec.Count < 0 {
		rec.Count = 0
	}
	return rec, true
}

func (t *Tracker) write(ctx context.Context, rec models.UsageCounter) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := t.m.store.Set(ctx, t.key, string(data)); err != nil {
		t.m.logger.Warn("usage counter write failed", zap.String("key", t.key), zap.Error(err))
		t.m.observer.ObserveStorageFailure(activityOf(t.key), "write")
	}
}

func activityOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
