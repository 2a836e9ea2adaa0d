package db

import (
	"testing"

	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDiffStakeRecords(t *testing.T) {
	existing := map[string]tracker.StakeRecord{
		"BP1": {PublicKey: "BP1", TotalStake: 100, IsActive: true, PercentTotalStake: 0.1, PercentTotalActiveStake: ptr(0.2), Upgraded: true},
		"BP2": {PublicKey: "BP2", TotalStake: 200, IsActive: true, PercentTotalStake: 0.2, PercentTotalActiveStake: ptr(0.3)},
		"BP3": {PublicKey: "BP3", TotalStake: 300, PercentTotalStake: 0.3},
	}
	incoming := []tracker.StakeRecord{
		{PublicKey: "BP1", TotalStake: 150, IsActive: true, PercentTotalStake: 0.15, PercentTotalActiveStake: ptr(0.2)},
		{PublicKey: "BP2", TotalStake: 200, IsActive: true, PercentTotalStake: 0.2, PercentTotalActiveStake: ptr(0.3), Upgraded: true},
		{PublicKey: "BP3", TotalStake: 300, PercentTotalStake: 0.3, PercentTotalActiveStake: ptr(0.0)},
		{PublicKey: "BP4", TotalStake: 1, Upgraded: true},
	}

	diff := DiffStakeRecords(existing, incoming)

	require.Len(t, diff.Insert, 1)
	assert.Equal(t, "BP4", diff.Insert[0].PublicKey)
	assert.False(t, diff.Insert[0].Upgraded, "new producers start not upgraded")

	require.Len(t, diff.Update, 2)
	assert.Equal(t, "BP1", diff.Update[0].PublicKey)
	assert.True(t, diff.Update[0].Upgraded, "updates keep the stored upgraded flag")
	assert.Equal(t, "BP3", diff.Update[1].PublicKey, "nil to non-nil active stake is a change")

	assert.Equal(t, 1, diff.Unchanged, "the upgraded flag alone is not a stake change")
}

func TestDiffStakeRecords_DuplicateKeysLastWins(t *testing.T) {
	incoming := []tracker.StakeRecord{
		{PublicKey: "BP1", TotalStake: 1},
		{PublicKey: "BP2", TotalStake: 2},
		{PublicKey: "BP1", TotalStake: 3},
	}

	diff := DiffStakeRecords(nil, incoming)

	require.Len(t, diff.Insert, 2)
	assert.Equal(t, "BP1", diff.Insert[0].PublicKey)
	assert.Equal(t, 3.0, diff.Insert[0].TotalStake)
	assert.Equal(t, "BP2", diff.Insert[1].PublicKey)
}

func TestDiffStakeRecords_Empty(t *testing.T) {
	diff := DiffStakeRecords(map[string]tracker.StakeRecord{"BP1": {PublicKey: "BP1"}}, nil)
	assert.Empty(t, diff.Insert)
	assert.Empty(t, diff.Update)
	assert.Zero(t, diff.Unchanged)
}
