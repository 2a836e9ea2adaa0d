package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/ingest"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleSubmitStats accepts a node report in any of the supported payload shapes.
func (c *Controller) HandleSubmitStats(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err != nil {
		c.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "unable to read body"})
		return
	}

	report, err := c.App.Ingest.Submit(r.Context(), body)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidSubmission) {
			c.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}
		c.App.Logger.Error("Failed to save stats", zap.Error(err))
		c.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to save stats"})
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]any{"success": true, "upgraded": report.Upgraded})
}

// HandleStatsList returns every stored node report, newest first.
func (c *Controller) HandleStatsList(w http.ResponseWriter, r *http.Request) {
	reports, err := c.App.Store.ListNodeReports(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to fetch stats", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	if reports == nil {
		reports = make([]tracker.NodeReport, 0)
	}
	c.writeJSON(w, http.StatusOK, reports)
}

// HandleStatsDetail returns the current report of one peer.
func (c *Controller) HandleStatsDetail(w http.ResponseWriter, r *http.Request) {
	peerID := mux.Vars(r)["peerId"]

	report, err := c.App.Store.GetNodeReport(r.Context(), peerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.writeError(w, http.StatusNotFound, "Stats not found")
			return
		}
		c.App.Logger.Error("Failed to fetch stats", zap.String("peer_id", peerID), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	c.writeJSON(w, http.StatusOK, report)
}
