package db

import (
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
)

// StakeDiff is the outcome of comparing an incoming stake snapshot to stored rows.
type StakeDiff struct {
	Insert    []tracker.StakeRecord
	Update    []tracker.StakeRecord
	Unchanged int
}

// DiffStakeRecords classifies incoming records against existing ones keyed by public key.
// When incoming repeats a key the last occurrence wins.
func DiffStakeRecords(existing map[string]tracker.StakeRecord, incoming []tracker.StakeRecord) StakeDiff {
	order := make([]string, 0, len(incoming))
	latest := make(map[string]tracker.StakeRecord, len(incoming))
	for _, rec := range incoming {
		if _, seen := latest[rec.PublicKey]; !seen {
			order = append(order, rec.PublicKey)
		}
		latest[rec.PublicKey] = rec
	}

	var diff StakeDiff
	for _, key := range order {
		rec := latest[key]
		prev, ok := existing[key]
		switch {
		case !ok:
			rec.Upgraded = false
			diff.Insert = append(diff.Insert, rec)
		case !prev.SameStake(&rec):
			rec.Upgraded = prev.Upgraded
			diff.Update = append(diff.Update, rec)
		default:
			diff.Unchanged++
		}
	}
	return diff
}
