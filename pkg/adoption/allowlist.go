package adoption

import (
	"context"

	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"go.uber.org/zap"
)

// Broadcaster tells other processes that the allow-list changed.
type Broadcaster interface {
	PublishInvalidation(ctx context.Context)
}

// Allowlist is the write path for commit allow-list entries. Every mutation invalidates the
// classifier before returning, so a following submission sees the change.
type Allowlist struct {
	store       db.CommitAllowlist
	classifier  *Classifier
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewAllowlist wires the allow-list store to the classifier. broadcaster may be nil.
func NewAllowlist(store db.CommitAllowlist, classifier *Classifier, broadcaster Broadcaster, logger *zap.Logger) *Allowlist {
	return &Allowlist{
		store:       store,
		classifier:  classifier,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (a *Allowlist) List(ctx context.Context) ([]tracker.ValidCommit, error) {
	return a.store.ListCommits(ctx)
}

func (a *Allowlist) Add(ctx context.Context, hash string, label *string) (*tracker.ValidCommit, error) {
	defer a.invalidate(ctx)
	c, err := a.store.AddCommit(ctx, hash, label)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Commit added to allow-list", zap.String("hash", hash))
	return c, nil
}

func (a *Allowlist) AddMany(ctx context.Context, commits []tracker.CommitInput) (int, error) {
	defer a.invalidate(ctx)
	added, err := a.store.AddCommits(ctx, commits)
	if err != nil {
		return 0, err
	}
	a.logger.Info("Commits added to allow-list", zap.Int("requested", len(commits)), zap.Int("added", added))
	return added, nil
}

func (a *Allowlist) Remove(ctx context.Context, hash string) error {
	defer a.invalidate(ctx)
	if err := a.store.DeleteCommit(ctx, hash); err != nil {
		return err
	}
	a.logger.Info("Commit removed from allow-list", zap.String("hash", hash))
	return nil
}

// invalidate runs even when the store call failed: a partial write is still a change.
func (a *Allowlist) invalidate(ctx context.Context) {
	a.classifier.Invalidate()
	if a.broadcaster != nil {
		a.broadcaster.PublishInvalidation(ctx)
	}
}
