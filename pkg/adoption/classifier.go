package adoption

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/canopy-network/forkx/pkg/metrics"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long an allow-list snapshot is served without a reload.
const DefaultCacheTTL = 60 * time.Second

// reloadTimeout bounds a shared allow-list read, which outlives the caller that started it.
const reloadTimeout = 10 * time.Second

// HashSource returns the full allow-list.
type HashSource interface {
	AllHashes(ctx context.Context) ([]string, error)
}

// Classifier decides whether a commit hash is upgraded against a cached allow-list snapshot.
//
// A failed reload is treated as "not upgraded" for that call: overstating adoption is worse
// than understating it. The snapshot is not replaced on failure, so the next call retries.
type Classifier struct {
	source HashSource
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	snapshot   mapset.Set[string]
	deadline   time.Time
	generation uint64

	refreshes singleflight.Group
}

// ClassifierOption customises a Classifier.
type ClassifierOption func(*Classifier)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) { c.now = now }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewClassifier(source HashSource, logger *zap.Logger, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		source: source,
		ttl:    DefaultCacheTTL,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsUpgraded reports whether hash is in the allow-list. Matching is exact and case sensitive.
func (c *Classifier) IsUpgraded(ctx context.Context, hash string) bool {
	set, ok := c.load(ctx)
	upgraded := ok && set.Contains(hash)
	metrics.Classifications.WithLabelValues(strconv.FormatBool(upgraded)).Inc()
	return upgraded
}

// Invalidate drops the snapshot so the next IsUpgraded reloads it regardless of TTL.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.deadline = time.Time{}
	c.generation++
	c.mu.Unlock()
}

func (c *Classifier) load(ctx context.Context) (mapset.Set[string], bool) {
	c.mu.Lock()
	if c.snapshot != nil && c.now().Before(c.deadline) {
		set := c.snapshot
		c.mu.Unlock()
		return set, true
	}
	gen := c.generation
	c.mu.Unlock()

	// Callers of the same generation share one reload. A reload that began before an
	// Invalidate never satisfies callers that arrive after it. The read is detached from the
	// caller that starts it so a cancelled request does not fail the others waiting on it.
	ch := c.refreshes.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
		defer cancel()

		hashes, err := c.source.AllHashes(readCtx)
		if err != nil {
			return nil, err
		}
		set := mapset.NewThreadUnsafeSet[string](hashes...)

		c.mu.Lock()
		if c.generation == gen {
			c.snapshot = set
			c.deadline = c.now().Add(c.ttl)
		}
		c.mu.Unlock()
		return set, nil
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		// Only this caller gave up; the shared reload keeps going for everyone else.
		c.logger.Debug("Caller cancelled while waiting for allow-list reload", zap.Error(ctx.Err()))
		return nil, false
	}
	if err != nil {
		metrics.AllowlistRefreshes.WithLabelValues("error").Inc()
		c.logger.Warn("Allow-list reload failed, classifying as not upgraded", zap.Error(err))
		return nil, false
	}
	metrics.AllowlistRefreshes.WithLabelValues("ok").Inc()
	return v.(mapset.Set[string]), true
}
