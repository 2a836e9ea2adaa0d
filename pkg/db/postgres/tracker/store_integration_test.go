//go:build integration

package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestValidCommits(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	c, err := testDB.AddCommit(ctx, "abcdef12", ptr("v1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", *c.Label)

	_, err = testDB.AddCommit(ctx, "abcdef12", nil)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	added, err := testDB.AddCommits(ctx, []tracker.CommitInput{{Hash: "abcdef12"}, {Hash: "1234"}, {Hash: "5678", Label: ptr("rc")}})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	hashes, err := testDB.AllHashes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abcdef12", "1234", "5678"}, hashes)

	require.NoError(t, testDB.DeleteCommit(ctx, "1234"))
	require.ErrorIs(t, testDB.DeleteCommit(ctx, "1234"), store.ErrNotFound)

	commits, err := testDB.ListCommits(ctx)
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestNodeReports(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := &tracker.NodeReport{
		PeerID:                 "peer-1",
		CommitHash:             "aa",
		ChainID:                "mainnet",
		MaxObservedBlockHeight: 18446744073709551615 >> 1,
		PeerCount:              12,
		Timestamp:              ts,
		BlockProducerPublicKey: ptr("BP1"),
	}
	require.NoError(t, testDB.UpsertNodeReport(ctx, report))

	first, err := testDB.GetNodeReport(ctx, "peer-1")
	require.NoError(t, err)
	assert.Equal(t, report.MaxObservedBlockHeight, first.MaxObservedBlockHeight)
	assert.Equal(t, "BP1", first.ProducerKey())
	assert.True(t, ts.Equal(first.Timestamp))

	report.CommitHash = "bb"
	report.Upgraded = true
	report.BlockProducerPublicKey = nil
	require.NoError(t, testDB.UpsertNodeReport(ctx, report))

	second, err := testDB.GetNodeReport(ctx, "peer-1")
	require.NoError(t, err)
	assert.Equal(t, "bb", second.CommitHash)
	assert.True(t, second.Upgraded)
	assert.Nil(t, second.BlockProducerPublicKey)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	reports, err := testDB.ListNodeReports(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, err = testDB.GetNodeReport(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSyncStakeRecords(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	last, err := testDB.LastStakeSync(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	// Enough rows to need several update batches.
	initial := make([]tracker.StakeRecord, 0, 250)
	for i := 0; i < 250; i++ {
		initial = append(initial, tracker.StakeRecord{
			PublicKey:               fmt.Sprintf("BP%03d", i),
			TotalStake:              float64(i),
			NumDelegators:           uint64(i % 7),
			IsActive:                i%2 == 0,
			PercentTotalStake:       float64(i) / 10000,
			PercentTotalActiveStake: ptr(float64(i) / 5000),
		})
	}
	res, err := testDB.SyncStakeRecords(ctx, initial)
	require.NoError(t, err)
	assert.Equal(t, tracker.SyncResult{Total: 250, Inserted: 250}, res)

	require.NoError(t, testDB.SetProducerUpgraded(ctx, "BP001", true))
	require.ErrorIs(t, testDB.SetProducerUpgraded(ctx, "missing", true), store.ErrNotFound)

	changed := make([]tracker.StakeRecord, len(initial))
	copy(changed, initial)
	for i := 0; i < 150; i++ {
		changed[i].TotalStake += 1
	}
	changed[1].PercentTotalActiveStake = nil
	changed = append(changed, tracker.StakeRecord{PublicKey: "BPNEW", TotalStake: 5})

	res, err = testDB.SyncStakeRecords(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, tracker.SyncResult{Total: 251, Inserted: 1, Updated: 150, Unchanged: 100}, res)

	bp1, err := testDB.GetStakeRecord(ctx, "BP001")
	require.NoError(t, err)
	assert.True(t, bp1.Upgraded)
	assert.Equal(t, 2.0, bp1.TotalStake)
	assert.Nil(t, bp1.PercentTotalActiveStake)

	records, err := testDB.ListStakeRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 251)
	assert.Equal(t, "BP249", records[0].PublicKey)

	last, err = testDB.LastStakeSync(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, time.Now(), *last, time.Minute)
}
