package db

import (
	"context"
	"errors"
	"time"

	"github.com/canopy-network/forkx/pkg/db/models/tracker"
)

var (
	// ErrNotFound is returned by point lookups when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by single inserts that hit an existing key.
	ErrAlreadyExists = errors.New("already exists")
)

// CommitAllowlist holds the commit hashes considered upgraded.
type CommitAllowlist interface {
	AllHashes(ctx context.Context) ([]string, error)
	ListCommits(ctx context.Context) ([]tracker.ValidCommit, error)
	AddCommit(ctx context.Context, hash string, label *string) (*tracker.ValidCommit, error)
	// AddCommits skips hashes already present and returns how many were added.
	AddCommits(ctx context.Context, commits []tracker.CommitInput) (int, error)
	DeleteCommit(ctx context.Context, hash string) error
}

// NodeReportStore persists one current report per peer.
type NodeReportStore interface {
	UpsertNodeReport(ctx context.Context, report *tracker.NodeReport) error
	ListNodeReports(ctx context.Context) ([]tracker.NodeReport, error)
	GetNodeReport(ctx context.Context, peerID string) (*tracker.NodeReport, error)
}

// StakeRegistry holds one stake record per block producer key.
type StakeRegistry interface {
	ListStakeRecords(ctx context.Context) ([]tracker.StakeRecord, error)
	GetStakeRecord(ctx context.Context, publicKey string) (*tracker.StakeRecord, error)
	SyncStakeRecords(ctx context.Context, records []tracker.StakeRecord) (tracker.SyncResult, error)
	LastStakeSync(ctx context.Context) (*time.Time, error)
	SetProducerUpgraded(ctx context.Context, publicKey string, upgraded bool) error
}

// Store is the full persistence surface used by the tracker service.
type Store interface {
	CommitAllowlist
	NodeReportStore
	StakeRegistry
	Close() error
}
