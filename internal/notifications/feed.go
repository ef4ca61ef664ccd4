package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"userhub/internal/models"
)

const (
	// The feed shows at most this many banners.
	feedCapacity = 5

	// Banners remove themselves after this long.
	feedTTL = 5 * time.Second
)

// Feed is the capped, time-expiring list of in-app banners. It is independent
// of system-level notifications and never persisted.
type Feed struct {
	mu      sync.Mutex
	entries []models.Notification

	ttl      time.Duration
	capacity int
	schedule func(d time.Duration, f func())

	logger *zap.Logger
}

// FeedOption adjusts feed behavior, mainly for tests.
type FeedOption func(*Feed)

// WithTTL overrides the banner lifetime.
func WithTTL(d time.Duration) FeedOption {
	return func(f *Feed) { f.ttl = d }
}

// WithScheduler overrides how self-removal is scheduled.
func WithScheduler(fn func(time.Duration, func())) FeedOption {
	return func(f *Feed) { f.schedule = fn }
}

// NewFeed creates an empty feed.
func NewFeed(logger *zap.Logger, opts ...FeedOption) *Feed {
	f := &Feed{
		ttl:      feedTTL,
		capacity: feedCapacity,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Push prepends a banner, trims the oldest past capacity and schedules the
// banner's self-removal keyed by its id.
func (f *Feed) Push(message string, severity models.Severity) models.Notification {
	entry := models.Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	f.mu.Lock()
	f.entries = append([]models.Notification{entry}, f.entries...)
	if len(f.entries) > f.capacity {
		f.entries = f.entries[:f.capacity]
	}
	f.mu.Unlock()

	// The timer fires harmlessly if the entry was dismissed or trimmed
	// before it expired.
	f.schedule(f.ttl, func() { f.Dismiss(entry.ID) })

	return entry
}

// Dismiss removes a banner immediately. An absent id is a no-op; no timer is
// cancelled.
func (f *Feed) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return
		}
	}
}

// List returns the current banners, newest first.
func (f *Feed) List() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Notification, len(f.entries))
	copy(out, f.entries)
	return out
}
