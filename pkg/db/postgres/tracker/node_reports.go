package tracker

import (
	"context"
	"fmt"

	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
)

const nodeReportColumns = `
	peer_id, commit_hash, chain_id, max_observed_block_height, peer_count,
	timestamp, block_producer_public_key, upgraded, created_at, updated_at
`

// initNodeReports creates the node_reports table using PostgreSQL DDL
func (db *DB) initNodeReports(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS node_reports (
			peer_id TEXT PRIMARY KEY,
			commit_hash TEXT NOT NULL,
			chain_id TEXT NOT NULL,
			max_observed_block_height BIGINT NOT NULL DEFAULT 0,
			peer_count BIGINT NOT NULL DEFAULT 0,
			timestamp TIMESTAMPTZ NOT NULL,
			block_producer_public_key TEXT,
			upgraded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS node_reports_bp_key_idx ON node_reports (block_producer_public_key);
	`
	return db.Exec(ctx, query)
}

// UpsertNodeReport creates or overwrites the report for report.PeerID.
func (db *DB) UpsertNodeReport(ctx context.Context, r *tracker.NodeReport) error {
	query := `
		INSERT INTO node_reports (
			peer_id, commit_hash, chain_id, max_observed_block_height, peer_count,
			timestamp, block_producer_public_key, upgraded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (peer_id) DO UPDATE SET
			commit_hash = EXCLUDED.commit_hash,
			chain_id = EXCLUDED.chain_id,
			max_observed_block_height = EXCLUDED.max_observed_block_height,
			peer_count = EXCLUDED.peer_count,
			timestamp = EXCLUDED.timestamp,
			block_producer_public_key = EXCLUDED.block_producer_public_key,
			upgraded = EXCLUDED.upgraded,
			updated_at = NOW()
	`

	err := db.Exec(ctx, query,
		r.PeerID,
		r.CommitHash,
		r.ChainID,
		int64(r.MaxObservedBlockHeight),
		int64(r.PeerCount),
		r.Timestamp,
		r.BlockProducerPublicKey,
		r.Upgraded,
	)
	if err != nil {
		return fmt.Errorf("upsert node report %s: %w", r.PeerID, err)
	}
	return nil
}

// ListNodeReports returns every stored report, newest first.
func (db *DB) ListNodeReports(ctx context.Context) ([]tracker.NodeReport, error) {
	query := `SELECT ` + nodeReportColumns + ` FROM node_reports ORDER BY created_at DESC`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list node reports: %w", err)
	}
	defer rows.Close()

	reports := make([]tracker.NodeReport, 0)
	for rows.Next() {
		r, err := scanNodeReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node reports: %w", err)
	}
	return reports, nil
}

// GetNodeReport returns the report for peerID or store.ErrNotFound.
func (db *DB) GetNodeReport(ctx context.Context, peerID string) (*tracker.NodeReport, error) {
	query := `SELECT ` + nodeReportColumns + ` FROM node_reports WHERE peer_id = $1`

	r, err := scanNodeReport(db.QueryRow(ctx, query, peerID))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("node report %s: %w", peerID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query node report %s: %w", peerID, err)
	}
	return r, nil
}

func scanNodeReport(row pgx.Row) (*tracker.NodeReport, error) {
	var (
		r         tracker.NodeReport
		height    int64
		peerCount int64
	)
	err := row.Scan(
		&r.PeerID,
		&r.CommitHash,
		&r.ChainID,
		&height,
		&peerCount,
		&r.Timestamp,
		&r.BlockProducerPublicKey,
		&r.Upgraded,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.MaxObservedBlockHeight = uint64(height)
	r.PeerCount = uint64(peerCount)
	return &r, nil
}
