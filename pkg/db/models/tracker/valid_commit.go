package tracker

import (
	"time"
)

const ValidCommitsTableName = "valid_commits"

// ValidCommit is an allow-list entry. Any report carrying Hash is classified upgraded.
type ValidCommit struct {
	Hash      string    `json:"hash"`
	Label     *string   `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CommitInput is the write shape for allow-list additions.
type CommitInput struct {
	Hash  string  `json:"hash" validate:"required"`
	Label *string `json:"label,omitempty"`
}
