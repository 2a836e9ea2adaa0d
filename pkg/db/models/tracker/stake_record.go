package tracker

const (
	BlockProducersTableName = "block_producers"
	SyncMetadataTableName   = "sync_metadata"

	// LastStakeSyncKey is the sync_metadata key holding the last stake sync time.
	LastStakeSyncKey = "block_producers_last_sync"
)

// StakeRecord is one block producer's stake attributes, refreshed by bulk sync.
type StakeRecord struct {
	PublicKey         string  `json:"public_key"`
	TotalStake        float64 `json:"total_stake"`
	NumDelegators     uint64  `json:"num_delegators"`
	IsActive          bool    `json:"is_active"`
	PercentTotalStake float64 `json:"percent_total_stake"`
	// PercentTotalActiveStake is nil when the producer is outside the active-stake base.
	PercentTotalActiveStake *float64 `json:"percent_total_active_stake"`
	// Upgraded is a manual override, independent from node report classification.
	Upgraded bool `json:"upgraded"`
}

// SameStake reports whether two records carry identical synced attributes.
// The manual Upgraded flag is not part of the comparison.
func (s *StakeRecord) SameStake(o *StakeRecord) bool {
	if s.TotalStake != o.TotalStake ||
		s.NumDelegators != o.NumDelegators ||
		s.IsActive != o.IsActive ||
		s.PercentTotalStake != o.PercentTotalStake {
		return false
	}
	switch {
	case s.PercentTotalActiveStake == nil && o.PercentTotalActiveStake == nil:
		return true
	case s.PercentTotalActiveStake == nil || o.PercentTotalActiveStake == nil:
		return false
	default:
		return *s.PercentTotalActiveStake == *o.PercentTotalActiveStake
	}
}

// SyncResult summarises a bulk stake sync.
type SyncResult struct {
	Total     int `json:"total"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}
