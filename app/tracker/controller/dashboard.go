package controller

import (
	"bytes"
	"net/http"

	"github.com/canopy-network/forkx/pkg/dashboard"
	"go.uber.org/zap"
)

// HandleDashboard renders the adoption dashboard. The page is rendered into a buffer first
// so a failure never produces a partial page.
func (c *Controller) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := c.App.Dashboard.Build(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to build dashboard", zap.Error(err))
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, summary); err != nil {
		c.App.Logger.Error("Failed to render dashboard", zap.Error(err))
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// HandleDashboardSummary returns the dashboard data as JSON.
func (c *Controller) HandleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.App.Dashboard.Build(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to build dashboard", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	c.writeJSON(w, http.StatusOK, summary)
}
