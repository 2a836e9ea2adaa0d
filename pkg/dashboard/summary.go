// Package dashboard turns stored reports and stake records into the adoption summary
// served as HTML at / and as JSON at /api/dashboard.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/canopy-network/forkx/pkg/adoption"
	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/metrics"
)

const DefaultReleasePercentage = 80

// Summary is everything the dashboard shows.
type Summary struct {
	Counts adoption.Counts `json:"counts"`
	Stake  adoption.Stake  `json:"stake"`
	// NodePercent is upgraded/total rounded to a whole percent.
	NodePercent       int                      `json:"node_percent"`
	ReleasePercentage int                      `json:"release_percentage"`
	ReleaseReached    bool                     `json:"release_reached"`
	LastStakeSync     *time.Time               `json:"last_stake_sync"`
	GeneratedAt       time.Time                `json:"generated_at"`
	Reports           []tracker.EnrichedReport `json:"reports"`
}

type Builder struct {
	reports db.NodeReportStore
	stake   db.StakeRegistry
	release int
	now     func() time.Time
}

func NewBuilder(reports db.NodeReportStore, stake db.StakeRegistry, releasePercentage int) *Builder {
	return &Builder{
		reports: reports,
		stake:   stake,
		release: releasePercentage,
		now:     time.Now,
	}
}

// Build reads every report and stake record and aggregates them. Any read failure
// fails the whole build; no partial summary is returned.
func (b *Builder) Build(ctx context.Context) (*Summary, error) {
	reports, err := b.reports.ListNodeReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list node reports: %w", err)
	}
	records, err := b.stake.ListStakeRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stake records: %w", err)
	}
	lastSync, err := b.stake.LastStakeSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("last stake sync: %w", err)
	}

	res := adoption.Aggregate(reports, records)
	nodePercent := NodePercent(res.Counts)

	metrics.Adoption.WithLabelValues("nodes_total").Set(float64(res.Counts.Total))
	metrics.Adoption.WithLabelValues("nodes_upgraded").Set(float64(res.Counts.Upgraded))
	metrics.Adoption.WithLabelValues("upgraded_active_stake").Set(res.Stake.UpgradedActiveStakePercent)
	metrics.Adoption.WithLabelValues("total_active_stake").Set(res.Stake.TotalActiveStakePercent)
	metrics.Adoption.WithLabelValues("upgraded_total_stake").Set(res.Stake.UpgradedTotalStakePercent)

	return &Summary{
		Counts:            res.Counts,
		Stake:             res.Stake,
		NodePercent:       nodePercent,
		ReleasePercentage: b.release,
		ReleaseReached:    res.Counts.Total > 0 && nodePercent >= b.release,
		LastStakeSync:     lastSync,
		GeneratedAt:       b.now().UTC(),
		Reports:           res.Enriched,
	}, nil
}

// NodePercent returns upgraded/total as a rounded whole percent, 0 when there are no nodes.
func NodePercent(c adoption.Counts) int {
	if c.Total == 0 {
		return 0
	}
	return int(math.Round(float64(c.Upgraded) / float64(c.Total) * 100))
}
