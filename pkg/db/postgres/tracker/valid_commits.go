package tracker

import (
	"context"
	"fmt"

	store "github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
)

// initValidCommits creates the valid_commits table using PostgreSQL DDL
func (db *DB) initValidCommits(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS valid_commits (
			hash TEXT PRIMARY KEY,
			label TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	return db.Exec(ctx, query)
}

// AllHashes returns every allow-listed commit hash.
func (db *DB) AllHashes(ctx context.Context) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT hash FROM valid_commits`)
	if err != nil {
		return nil, fmt.Errorf("list commit hashes: %w", err)
	}
	hashes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect commit hashes: %w", err)
	}
	return hashes, nil
}

// ListCommits returns allow-list entries, newest first.
func (db *DB) ListCommits(ctx context.Context) ([]tracker.ValidCommit, error) {
	rows, err := db.Query(ctx, `SELECT hash, label, created_at FROM valid_commits ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list valid commits: %w", err)
	}
	defer rows.Close()

	commits := make([]tracker.ValidCommit, 0)
	for rows.Next() {
		var c tracker.ValidCommit
		if err := rows.Scan(&c.Hash, &c.Label, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan valid commit: %w", err)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// AddCommit inserts a single allow-list entry; adding an existing hash fails.
func (db *DB) AddCommit(ctx context.Context, hash string, label *string) (*tracker.ValidCommit, error) {
	query := `
		INSERT INTO valid_commits (hash, label, created_at) VALUES ($1, $2, NOW())
		RETURNING hash, label, created_at
	`
	var c tracker.ValidCommit
	if err := db.QueryRow(ctx, query, hash, label).Scan(&c.Hash, &c.Label, &c.CreatedAt); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("add valid commit %s: %w", hash, store.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("add valid commit %s: %w", hash, err)
	}
	return &c, nil
}

// AddCommits inserts entries, skipping hashes already present.
func (db *DB) AddCommits(ctx context.Context, commits []tracker.CommitInput) (int, error) {
	if len(commits) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO valid_commits (hash, label, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT (hash) DO NOTHING
	`
	added := 0
	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range commits {
			batch.Queue(query, c.Hash, c.Label)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range commits {
			tag, err := results.Exec()
			if err != nil {
				return err
			}
			added += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add valid commits: %w", err)
	}
	return added, nil
}

// DeleteCommit removes hash from the allow-list or returns store.ErrNotFound.
func (db *DB) DeleteCommit(ctx context.Context, hash string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM valid_commits WHERE hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("delete valid commit %s: %w", hash, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("valid commit %s: %w", hash, store.ErrNotFound)
	}
	return nil
}

