package memory

import (
	"context"
	"testing"
	"time"

	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore() *Store {
	s := New()
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = clock.now
	return s
}

func TestCommits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	label := "v2.0.0"
	c, err := s.AddCommit(ctx, "abc", &label)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Hash)

	_, err = s.AddCommit(ctx, "abc", nil)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	added, err := s.AddCommits(ctx, []tracker.CommitInput{{Hash: "abc"}, {Hash: "def"}, {Hash: "def"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	hashes, err := s.AllHashes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abc", "def"}, hashes)

	commits, err := s.ListCommits(ctx)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "def", commits[0].Hash, "newest first")

	require.NoError(t, s.DeleteCommit(ctx, "abc"))
	require.ErrorIs(t, s.DeleteCommit(ctx, "abc"), store.ErrNotFound)
}

func TestNodeReports(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.UpsertNodeReport(ctx, &tracker.NodeReport{PeerID: "p1", CommitHash: "old", MaxObservedBlockHeight: 1}))
	require.NoError(t, s.UpsertNodeReport(ctx, &tracker.NodeReport{PeerID: "p2", CommitHash: "x"}))

	first, err := s.GetNodeReport(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.UpsertNodeReport(ctx, &tracker.NodeReport{PeerID: "p1", CommitHash: "new", MaxObservedBlockHeight: 2, Upgraded: true}))

	got, err := s.GetNodeReport(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.CommitHash)
	assert.True(t, got.Upgraded)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))

	reports, err := s.ListNodeReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "p2", reports[0].PeerID)

	_, err = s.GetNodeReport(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStakeRegistry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	last, err := s.LastStakeSync(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	res, err := s.SyncStakeRecords(ctx, []tracker.StakeRecord{
		{PublicKey: "BP1", PercentTotalStake: 0.1},
		{PublicKey: "BP2", PercentTotalStake: 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, tracker.SyncResult{Total: 2, Inserted: 2}, res)

	require.NoError(t, s.SetProducerUpgraded(ctx, "BP1", true))
	require.ErrorIs(t, s.SetProducerUpgraded(ctx, "BP9", true), store.ErrNotFound)

	res, err = s.SyncStakeRecords(ctx, []tracker.StakeRecord{
		{PublicKey: "BP1", PercentTotalStake: 0.2},
		{PublicKey: "BP2", PercentTotalStake: 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, tracker.SyncResult{Total: 2, Updated: 1, Unchanged: 1}, res)

	records, err := s.ListStakeRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "BP2", records[0].PublicKey)
	assert.True(t, records[1].Upgraded)

	last, err = s.LastStakeSync(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, time.UTC, last.Location())
}
