// Package memory is an in-process tracker store for development and tests.
// Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/puzpuzpuz/xsync/v4"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	reports   *xsync.Map[string, tracker.NodeReport]
	producers *xsync.Map[string, tracker.StakeRecord]
	commits   *xsync.Map[string, tracker.ValidCommit]

	// syncMu serialises bulk syncs so the diff sees a stable snapshot.
	syncMu   sync.Mutex
	lastSync *time.Time

	now func() time.Time
}

func New() *Store {
	return &Store{
		reports:   xsync.NewMap[string, tracker.NodeReport](),
		producers: xsync.NewMap[string, tracker.StakeRecord](),
		commits:   xsync.NewMap[string, tracker.ValidCommit](),
		now:       time.Now,
	}
}

func (s *Store) Close() error { return nil }

// --- CommitAllowlist ---

func (s *Store) AllHashes(_ context.Context) ([]string, error) {
	hashes := make([]string, 0, s.commits.Size())
	s.commits.Range(func(hash string, _ tracker.ValidCommit) bool {
		hashes = append(hashes, hash)
		return true
	})
	return hashes, nil
}

func (s *Store) ListCommits(_ context.Context) ([]tracker.ValidCommit, error) {
	commits := make([]tracker.ValidCommit, 0, s.commits.Size())
	s.commits.Range(func(_ string, c tracker.ValidCommit) bool {
		commits = append(commits, c)
		return true
	})
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].CreatedAt.After(commits[j].CreatedAt)
	})
	return commits, nil
}

func (s *Store) AddCommit(_ context.Context, hash string, label *string) (*tracker.ValidCommit, error) {
	c := tracker.ValidCommit{Hash: hash, Label: label, CreatedAt: s.now()}
	if _, loaded := s.commits.LoadOrStore(hash, c); loaded {
		return nil, fmt.Errorf("add valid commit %s: %w", hash, store.ErrAlreadyExists)
	}
	return &c, nil
}

func (s *Store) AddCommits(_ context.Context, commits []tracker.CommitInput) (int, error) {
	added := 0
	for _, in := range commits {
		c := tracker.ValidCommit{Hash: in.Hash, Label: in.Label, CreatedAt: s.now()}
		if _, loaded := s.commits.LoadOrStore(in.Hash, c); !loaded {
			added++
		}
	}
	return added, nil
}

func (s *Store) DeleteCommit(_ context.Context, hash string) error {
	if _, ok := s.commits.LoadAndDelete(hash); !ok {
		return fmt.Errorf("valid commit %s: %w", hash, store.ErrNotFound)
	}
	return nil
}

// --- NodeReportStore ---

func (s *Store) UpsertNodeReport(_ context.Context, r *tracker.NodeReport) error {
	now := s.now()
	s.reports.Compute(r.PeerID, func(old tracker.NodeReport, loaded bool) (tracker.NodeReport, xsync.ComputeOp) {
		next := *r
		next.CreatedAt = now
		if loaded {
			next.CreatedAt = old.CreatedAt
		}
		next.UpdatedAt = now
		return next, xsync.UpdateOp
	})
	return nil
}

func (s *Store) ListNodeReports(_ context.Context) ([]tracker.NodeReport, error) {
	reports := make([]tracker.NodeReport, 0, s.reports.Size())
	s.reports.Range(func(_ string, r tracker.NodeReport) bool {
		reports = append(reports, r)
		return true
	})
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].PeerID < reports[j].PeerID
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

func (s *Store) GetNodeReport(_ context.Context, peerID string) (*tracker.NodeReport, error) {
	r, ok := s.reports.Load(peerID)
	if !ok {
		return nil, fmt.Errorf("node report %s: %w", peerID, store.ErrNotFound)
	}
	return &r, nil
}

// --- StakeRegistry ---

func (s *Store) ListStakeRecords(_ context.Context) ([]tracker.StakeRecord, error) {
	records := make([]tracker.StakeRecord, 0, s.producers.Size())
	s.producers.Range(func(_ string, rec tracker.StakeRecord) bool {
		records = append(records, rec)
		return true
	})
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].PercentTotalStake == records[j].PercentTotalStake {
			return records[i].PublicKey < records[j].PublicKey
		}
		return records[i].PercentTotalStake > records[j].PercentTotalStake
	})
	return records, nil
}

func (s *Store) GetStakeRecord(_ context.Context, publicKey string) (*tracker.StakeRecord, error) {
	rec, ok := s.producers.Load(publicKey)
	if !ok {
		return nil, fmt.Errorf("block producer %s: %w", publicKey, store.ErrNotFound)
	}
	return &rec, nil
}

func (s *Store) SetProducerUpgraded(_ context.Context, publicKey string, upgraded bool) error {
	found := false
	s.producers.Compute(publicKey, func(old tracker.StakeRecord, loaded bool) (tracker.StakeRecord, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		found = true
		old.Upgraded = upgraded
		return old, xsync.UpdateOp
	})
	if !found {
		return fmt.Errorf("block producer %s: %w", publicKey, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SyncStakeRecords(_ context.Context, records []tracker.StakeRecord) (tracker.SyncResult, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	existing := make(map[string]tracker.StakeRecord, s.producers.Size())
	s.producers.Range(func(key string, rec tracker.StakeRecord) bool {
		existing[key] = rec
		return true
	})

	diff := store.DiffStakeRecords(existing, records)
	for _, rec := range diff.Insert {
		s.producers.Store(rec.PublicKey, rec)
	}
	for _, rec := range diff.Update {
		s.producers.Store(rec.PublicKey, rec)
	}

	now := s.now().UTC()
	s.lastSync = &now

	return tracker.SyncResult{
		Total:     len(records),
		Inserted:  len(diff.Insert),
		Updated:   len(diff.Update),
		Unchanged: diff.Unchanged,
	}, nil
}

func (s *Store) LastStakeSync(_ context.Context) (*time.Time, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.lastSync == nil {
		return nil, nil
	}
	t := *s.lastSync
	return &t, nil
}
