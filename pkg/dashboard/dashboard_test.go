package dashboard

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/canopy-network/forkx/pkg/adoption"
	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/memory"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	_, err := store.SyncStakeRecords(ctx, []tracker.StakeRecord{
		{PublicKey: "BP1", TotalStake: 1000, NumDelegators: 4, IsActive: true, PercentTotalStake: 0.5, PercentTotalActiveStake: ptr(0.5)},
		{PublicKey: "BP2", TotalStake: 600, IsActive: true, PercentTotalStake: 0.3, PercentTotalActiveStake: ptr(0.3)},
	})
	require.NoError(t, err)

	reports := []tracker.NodeReport{
		{PeerID: "peer-1", CommitHash: "abcdef1234567890", ChainID: "1", BlockProducerPublicKey: ptr("BP1"), Upgraded: true},
		{PeerID: "peer-2", CommitHash: "0000000000", ChainID: "1", BlockProducerPublicKey: ptr("BP2")},
		{PeerID: "peer-3", CommitHash: "abcdef1234567890", ChainID: "1", Upgraded: true},
	}
	for i := range reports {
		require.NoError(t, store.UpsertNodeReport(ctx, &reports[i]))
	}
	return store
}

func TestBuild(t *testing.T) {
	store := seed(t)
	b := NewBuilder(store, store, 60)

	s, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, adoption.Counts{Total: 3, Upgraded: 2, Pending: 1}, s.Counts)
	assert.Equal(t, 67, s.NodePercent)
	assert.True(t, s.ReleaseReached)
	assert.Equal(t, 60, s.ReleasePercentage)
	assert.InDelta(t, 0.5, s.Stake.UpgradedActiveStakePercent, 1e-9)
	assert.InDelta(t, 0.8, s.Stake.TotalActiveStakePercent, 1e-9)
	assert.InDelta(t, 0.5, s.Stake.UpgradedTotalStakePercent, 1e-9)
	assert.NotNil(t, s.LastStakeSync)
	assert.Len(t, s.Reports, 3)
}

func TestBuild_Empty(t *testing.T) {
	store := memory.New()
	s, err := NewBuilder(store, store, DefaultReleasePercentage).Build(context.Background())
	require.NoError(t, err)

	assert.Zero(t, s.NodePercent)
	assert.False(t, s.ReleaseReached)
	assert.Nil(t, s.LastStakeSync)
	assert.Empty(t, s.Reports)
}

type brokenReports struct{ db.NodeReportStore }

func (brokenReports) ListNodeReports(context.Context) ([]tracker.NodeReport, error) {
	return nil, errors.New("connection refused")
}

func TestBuild_FailsWholeOnReadError(t *testing.T) {
	store := memory.New()
	s, err := NewBuilder(brokenReports{}, store, DefaultReleasePercentage).Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, s)
}

func TestNodePercent(t *testing.T) {
	assert.Equal(t, 0, NodePercent(adoption.Counts{}))
	assert.Equal(t, 33, NodePercent(adoption.Counts{Total: 3, Upgraded: 1}))
	assert.Equal(t, 50, NodePercent(adoption.Counts{Total: 2, Upgraded: 1}))
	assert.Equal(t, 100, NodePercent(adoption.Counts{Total: 7, Upgraded: 7}))
}

func TestRender(t *testing.T) {
	store := seed(t)
	s, err := NewBuilder(store, store, 80).Build(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	html := buf.String()

	assert.Contains(t, html, "peer-1")
	assert.Contains(t, html, ">abcdef12<")
	assert.Contains(t, html, "50.00%")
	assert.Contains(t, html, "80.00%")
	assert.Contains(t, html, "left: 80%")
	assert.Contains(t, html, "67%")
	assert.NotContains(t, html, "release threshold reached")
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &Summary{ReleasePercentage: 80, GeneratedAt: time.Now()}))
	assert.Contains(t, buf.String(), "No reports yet.")
	assert.Contains(t, buf.String(), "last synced: never")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "120.00%", formatPercent(1.2))
	assert.Equal(t, "-", formatOptPercent(nil))
	assert.Equal(t, "-", formatOptString(ptr("")))
	assert.Equal(t, "no", formatOptBool(ptr(false)))
	assert.Equal(t, "12", formatOptUint(ptr(uint64(12))))
	assert.Equal(t, "abc", shortHash("abc"))
}
