package tracker

import (
	"time"
)

const NodeReportsTableName = "node_reports"

// NodeReport is the latest status snapshot submitted by one peer. There is exactly one row
// per PeerID; a new submission overwrites the previous one.
type NodeReport struct {
	PeerID                 string    `json:"peer_id"`
	CommitHash             string    `json:"commit_hash"`
	ChainID                string    `json:"chain_id"`
	MaxObservedBlockHeight uint64    `json:"max_observed_block_height"`
	PeerCount              uint64    `json:"peer_count"`
	Timestamp              time.Time `json:"timestamp"`
	BlockProducerPublicKey *string   `json:"block_producer_public_key,omitempty"`
	// Upgraded is decided once at ingestion and never recomputed on read.
	Upgraded  bool      `json:"upgraded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProducerKey returns the block producer key or "" when the report has none.
func (r *NodeReport) ProducerKey() string {
	if r.BlockProducerPublicKey == nil {
		return ""
	}
	return *r.BlockProducerPublicKey
}
