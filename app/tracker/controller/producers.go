package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/stakecsv"
	"github.com/canopy-network/forkx/pkg/stakesync"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleProducersList returns all block producers ordered by total stake share.
func (c *Controller) HandleProducersList(w http.ResponseWriter, r *http.Request) {
	records, err := c.App.Store.ListStakeRecords(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to fetch block producers", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch block producers")
		return
	}
	if records == nil {
		records = make([]tracker.StakeRecord, 0)
	}
	c.writeJSON(w, http.StatusOK, records)
}

// HandleProducersLastSync returns when the stake registry was last synced, or null.
func (c *Controller) HandleProducersLastSync(w http.ResponseWriter, r *http.Request) {
	last, err := c.App.Store.LastStakeSync(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to fetch last sync time", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch last sync time")
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]any{"lastSync": last})
}

// HandleProducerDetail returns one block producer.
func (c *Controller) HandleProducerDetail(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["publicKey"]

	rec, err := c.App.Store.GetStakeRecord(r.Context(), key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.writeError(w, http.StatusNotFound, "Block producer not found")
			return
		}
		c.App.Logger.Error("Failed to fetch block producer", zap.String("public_key", key), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch block producer")
		return
	}
	c.writeJSON(w, http.StatusOK, rec)
}

// HandleProducersUpload syncs the stake registry from a CSV request body.
func (c *Controller) HandleProducersUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.writeError(w, http.StatusBadRequest, "Request body must be CSV content as text")
		return
	}

	c.App.Logger.Info("Received CSV upload", zap.Int("bytes", len(body)))

	result, err := c.App.Syncer.Import(r.Context(), bytes.NewReader(body), stakesync.SourceUpload)
	if err != nil {
		if errors.Is(err, stakecsv.ErrMissingColumn) || errors.Is(err, stakecsv.ErrNoRows) {
			c.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		c.App.Logger.Error("Error processing CSV upload", zap.Error(err))
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to process CSV",
			"message": err.Error(),
		})
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Processed %d block producers", result.Total),
		"total":     result.Total,
		"inserted":  result.Inserted,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
	})
}

type upgradedRequest struct {
	Upgraded *bool `json:"upgraded" validate:"required"`
}

// HandleProducerUpgraded sets the manual upgraded flag of a block producer.
func (c *Controller) HandleProducerUpgraded(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["publicKey"]

	var req upgradedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := c.validate.Struct(req); err != nil {
		c.writeError(w, http.StatusBadRequest, "upgraded (boolean) is required")
		return
	}

	if err := c.App.Store.SetProducerUpgraded(r.Context(), key, *req.Upgraded); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.writeError(w, http.StatusNotFound, "Block producer not found")
			return
		}
		c.App.Logger.Error("Failed to update block producer", zap.String("public_key", key), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to update block producer")
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]any{"success": true, "public_key": key, "upgraded": *req.Upgraded})
}
