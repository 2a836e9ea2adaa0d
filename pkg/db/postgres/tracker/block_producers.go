package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	insertBatchSize = 5000
	updateBatchSize = 100
	updateWorkers   = 8
)

const blockProducerColumns = `
	public_key, total_stake, num_delegators, is_active,
	percent_total_stake, percent_total_active_stake, upgraded
`

// initBlockProducers creates the block_producers and sync_metadata tables
func (db *DB) initBlockProducers(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS block_producers (
			public_key TEXT PRIMARY KEY,
			total_stake DOUBLE PRECISION NOT NULL DEFAULT 0,
			num_delegators BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			percent_total_stake DOUBLE PRECISION NOT NULL DEFAULT 0,
			percent_total_active_stake DOUBLE PRECISION,
			upgraded BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS sync_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	return db.Exec(ctx, query)
}

// ListStakeRecords returns all producers ordered by total stake share, largest first.
func (db *DB) ListStakeRecords(ctx context.Context) ([]tracker.StakeRecord, error) {
	query := `SELECT ` + blockProducerColumns + ` FROM block_producers ORDER BY percent_total_stake DESC`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list block producers: %w", err)
	}
	defer rows.Close()

	records := make([]tracker.StakeRecord, 0)
	for rows.Next() {
		rec, err := scanStakeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block producer: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block producers: %w", err)
	}
	return records, nil
}

// GetStakeRecord returns the producer for publicKey or store.ErrNotFound.
func (db *DB) GetStakeRecord(ctx context.Context, publicKey string) (*tracker.StakeRecord, error) {
	query := `SELECT ` + blockProducerColumns + ` FROM block_producers WHERE public_key = $1`

	rec, err := scanStakeRecord(db.QueryRow(ctx, query, publicKey))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("block producer %s: %w", publicKey, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query block producer %s: %w", publicKey, err)
	}
	return rec, nil
}

// SetProducerUpgraded sets the manual upgraded override for a producer.
func (db *DB) SetProducerUpgraded(ctx context.Context, publicKey string, upgraded bool) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE block_producers SET upgraded = $2 WHERE public_key = $1`, publicKey, upgraded)
	if err != nil {
		return fmt.Errorf("set upgraded for %s: %w", publicKey, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("block producer %s: %w", publicKey, store.ErrNotFound)
	}
	return nil
}

// LastStakeSync returns when SyncStakeRecords last completed, or nil if it never ran.
func (db *DB) LastStakeSync(ctx context.Context) (*time.Time, error) {
	var value string
	err := db.QueryRow(ctx, `SELECT value FROM sync_metadata WHERE key = $1`, tracker.LastStakeSyncKey).Scan(&value)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read last stake sync: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("parse last stake sync %q: %w", value, err)
	}
	return &t, nil
}

// SyncStakeRecords diffs records against the table: new keys are inserted, changed ones are
// updated and identical ones are counted as unchanged. Rows absent from records are kept.
func (db *DB) SyncStakeRecords(ctx context.Context, records []tracker.StakeRecord) (tracker.SyncResult, error) {
	db.Logger.Info("Starting block producer sync", zap.Int("total", len(records)))

	existing, err := db.ListStakeRecords(ctx)
	if err != nil {
		return tracker.SyncResult{}, err
	}
	existingByKey := make(map[string]tracker.StakeRecord, len(existing))
	for _, rec := range existing {
		existingByKey[rec.PublicKey] = rec
	}

	diff := store.DiffStakeRecords(existingByKey, records)
	db.Logger.Info("Block producer diff computed",
		zap.Int("existing", len(existing)),
		zap.Int("insert", len(diff.Insert)),
		zap.Int("update", len(diff.Update)),
		zap.Int("unchanged", diff.Unchanged),
	)

	if err := db.insertStakeRecords(ctx, diff.Insert); err != nil {
		return tracker.SyncResult{}, err
	}
	if err := db.updateStakeRecords(ctx, diff.Update); err != nil {
		return tracker.SyncResult{}, err
	}

	query := `
		INSERT INTO sync_metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if err := db.Exec(ctx, query, tracker.LastStakeSyncKey, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return tracker.SyncResult{}, fmt.Errorf("record last stake sync: %w", err)
	}

	result := tracker.SyncResult{
		Total:     len(records),
		Inserted:  len(diff.Insert),
		Updated:   len(diff.Update),
		Unchanged: diff.Unchanged,
	}
	db.Logger.Info("Block producer sync done",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
	)
	return result, nil
}

func (db *DB) insertStakeRecords(ctx context.Context, records []tracker.StakeRecord) error {
	query := `
		INSERT INTO block_producers (
			public_key, total_stake, num_delegators, is_active,
			percent_total_stake, percent_total_active_stake, upgraded
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		ON CONFLICT (public_key) DO NOTHING
	`

	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		batch := &pgx.Batch{}
		for _, rec := range records[start:end] {
			batch.Queue(query,
				rec.PublicKey,
				rec.TotalStake,
				int64(rec.NumDelegators),
				rec.IsActive,
				rec.PercentTotalStake,
				rec.PercentTotalActiveStake,
			)
		}

		err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
			return postgres.SendBatchExec(ctx, tx, batch)
		})
		if err != nil {
			return fmt.Errorf("insert block producers [%d:%d]: %w", start, end, err)
		}
		db.Logger.Debug("Inserted block producers", zap.Int("done", end), zap.Int("total", len(records)))
	}
	return nil
}

// updateStakeRecords applies updates in independent batches spread over the update pool.
func (db *DB) updateStakeRecords(ctx context.Context, records []tracker.StakeRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		UPDATE block_producers SET
			total_stake = $2,
			num_delegators = $3,
			is_active = $4,
			percent_total_stake = $5,
			percent_total_active_stake = $6
		WHERE public_key = $1
	`

	numBatches := (len(records) + updateBatchSize - 1) / updateBatchSize
	errs := make([]error, numBatches)

	group := db.updatePool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := 0; i < numBatches; i++ {
		start := i * updateBatchSize
		end := min(start+updateBatchSize, len(records))
		chunk := records[start:end]
		idx := i
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				errs[idx] = err
				return
			}
			batch := &pgx.Batch{}
			for _, rec := range chunk {
				batch.Queue(query,
					rec.PublicKey,
					rec.TotalStake,
					int64(rec.NumDelegators),
					rec.IsActive,
					rec.PercentTotalStake,
					rec.PercentTotalActiveStake,
				)
			}
			errs[idx] = postgres.SendBatchExec(groupCtx, db.Pool, batch)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return fmt.Errorf("update block producers: %w", err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("update block producers: %w", err)
	}
	return nil
}

func scanStakeRecord(row pgx.Row) (*tracker.StakeRecord, error) {
	var (
		rec        tracker.StakeRecord
		delegators int64
	)
	err := row.Scan(
		&rec.PublicKey,
		&rec.TotalStake,
		&delegators,
		&rec.IsActive,
		&rec.PercentTotalStake,
		&rec.PercentTotalActiveStake,
		&rec.Upgraded,
	)
	if err != nil {
		return nil, err
	}
	rec.NumDelegators = uint64(delegators)
	return &rec, nil
}
