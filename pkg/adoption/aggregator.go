package adoption

import (
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	mapset "github.com/deckarep/golang-set/v2"
)

// Counts are node-level tallies; every report counts once regardless of producer.
type Counts struct {
	Total    int `json:"total"`
	Upgraded int `json:"upgraded"`
	Pending  int `json:"pending"`
}

// Stake holds stake-weighted adoption as raw fractions of network stake.
// Values are plain sums and are never clamped, so inconsistent stake data can push them
// above 1.
type Stake struct {
	UpgradedActiveStakePercent float64 `json:"upgraded_active_stake_percent"`
	TotalActiveStakePercent    float64 `json:"total_active_stake_percent"`
	UpgradedTotalStakePercent  float64 `json:"upgraded_total_stake_percent"`
}

// Result is the output of Aggregate.
type Result struct {
	Enriched []tracker.EnrichedReport `json:"enriched"`
	Counts   Counts                   `json:"counts"`
	Stake    Stake                    `json:"stake"`
}

// Aggregate joins reports to stake records by producer key and computes adoption.
//
// Enrichment is 1:1 over reports. Each producer key contributes to each stake sum at most
// once, however many reports carry it; the three sums keep separate "counted" sets because a
// producer can qualify for one and not another. Reports without a producer key, or whose key
// has no stake record, still count as nodes but add nothing to the stake sums.
func Aggregate(reports []tracker.NodeReport, records []tracker.StakeRecord) Result {
	byKey := make(map[string]*tracker.StakeRecord, len(records))
	for i := range records {
		// last seen wins on duplicate keys
		byKey[records[i].PublicKey] = &records[i]
	}

	res := Result{Enriched: make([]tracker.EnrichedReport, 0, len(reports))}

	var (
		upgradedActive = mapset.NewThreadUnsafeSet[string]()
		allActive      = mapset.NewThreadUnsafeSet[string]()
		upgradedAny    = mapset.NewThreadUnsafeSet[string]()
	)

	for _, r := range reports {
		key := r.ProducerKey()
		var rec *tracker.StakeRecord
		if key != "" {
			rec = byKey[key]
		}
		res.Enriched = append(res.Enriched, enrich(r, rec))

		res.Counts.Total++
		if r.Upgraded {
			res.Counts.Upgraded++
		}

		if rec == nil {
			continue
		}

		if r.Upgraded && rec.IsActive && upgradedActive.Add(key) {
			res.Stake.UpgradedActiveStakePercent += valueOrZero(rec.PercentTotalActiveStake)
		}
		if rec.IsActive && allActive.Add(key) {
			res.Stake.TotalActiveStakePercent += valueOrZero(rec.PercentTotalActiveStake)
		}
		if r.Upgraded && upgradedAny.Add(key) {
			res.Stake.UpgradedTotalStakePercent += rec.PercentTotalStake
		}
	}

	res.Counts.Pending = res.Counts.Total - res.Counts.Upgraded
	return res
}

func enrich(r tracker.NodeReport, rec *tracker.StakeRecord) tracker.EnrichedReport {
	e := tracker.EnrichedReport{NodeReport: r}
	if rec == nil {
		return e
	}
	totalStake := rec.TotalStake
	delegators := rec.NumDelegators
	pctTotal := rec.PercentTotalStake
	active := rec.IsActive
	e.TotalStake = &totalStake
	e.NumDelegators = &delegators
	e.PercentTotalStake = &pctTotal
	e.IsActive = &active
	if rec.PercentTotalActiveStake != nil {
		pctActive := *rec.PercentTotalActiveStake
		e.PercentTotalActiveStake = &pctActive
	}
	return e
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
