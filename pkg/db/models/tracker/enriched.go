package tracker

// EnrichedReport is a NodeReport joined with its producer's StakeRecord. Stake fields stay nil
// when the report has no producer key or the key does not resolve.
type EnrichedReport struct {
	NodeReport

	TotalStake              *float64 `json:"total_stake"`
	NumDelegators           *uint64  `json:"num_delegators"`
	PercentTotalStake       *float64 `json:"percent_total_stake"`
	PercentTotalActiveStake *float64 `json:"percent_total_active_stake"`
	IsActive                *bool    `json:"is_active"`
}
