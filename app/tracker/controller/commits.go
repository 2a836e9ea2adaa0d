package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const commitsBodyHint = "{ hash: string, label?: string } or { commits: [{ hash: string, label?: string }] }"

// commitsRequest is either a single commit or a list under "commits".
type commitsRequest struct {
	Hash    *string               `json:"hash"`
	Label   *string               `json:"label"`
	Commits []tracker.CommitInput `json:"commits" validate:"omitempty,dive"`
}

// HandleCommitsList returns the commit allow-list.
func (c *Controller) HandleCommitsList(w http.ResponseWriter, r *http.Request) {
	commits, err := c.App.Allowlist.List(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to fetch valid commits", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch valid commits")
		return
	}
	if commits == nil {
		commits = make([]tracker.ValidCommit, 0)
	}
	c.writeJSON(w, http.StatusOK, commits)
}

// HandleCommitsAdd adds one commit or a batch of commits to the allow-list.
func (c *Controller) HandleCommitsAdd(w http.ResponseWriter, r *http.Request) {
	var req commitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body", "expected": commitsBodyHint})
		return
	}

	switch {
	case req.Hash != nil:
		hash := strings.TrimSpace(*req.Hash)
		if hash == "" {
			c.writeError(w, http.StatusBadRequest, "hash must not be empty")
			return
		}
		commit, err := c.App.Allowlist.Add(r.Context(), hash, req.Label)
		if err != nil {
			if errors.Is(err, db.ErrAlreadyExists) {
				c.writeError(w, http.StatusConflict, "commit already in allow-list")
				return
			}
			c.App.Logger.Error("Error adding valid commit", zap.String("hash", hash), zap.Error(err))
			c.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to add valid commit", "message": err.Error()})
			return
		}
		c.writeJSON(w, http.StatusOK, map[string]any{"success": true, "commit": commit})

	case req.Commits != nil:
		for i := range req.Commits {
			req.Commits[i].Hash = strings.TrimSpace(req.Commits[i].Hash)
		}
		if err := c.validate.Struct(req); err != nil {
			c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "every commit needs a hash", "expected": commitsBodyHint})
			return
		}
		added, err := c.App.Allowlist.AddMany(r.Context(), req.Commits)
		if err != nil {
			c.App.Logger.Error("Error adding valid commits", zap.Int("count", len(req.Commits)), zap.Error(err))
			c.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to add valid commit", "message": err.Error()})
			return
		}
		c.writeJSON(w, http.StatusOK, map[string]any{"success": true, "added": added})

	default:
		c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body", "expected": commitsBodyHint})
	}
}

// HandleCommitDelete removes a commit from the allow-list.
func (c *Controller) HandleCommitDelete(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	if err := c.App.Allowlist.Remove(r.Context(), hash); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.writeError(w, http.StatusNotFound, "Valid commit not found")
			return
		}
		c.App.Logger.Error("Error deleting valid commit", zap.String("hash", hash), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to delete valid commit")
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
