package controller

import (
	"net/http"

	"github.com/canopy-network/forkx/app/tracker/types"
	"github.com/canopy-network/forkx/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxSubmissionBytes = 1 << 20
	maxUploadBytes     = 64 << 20
)

type Controller struct {
	App *types.App
	// UploadToken guards the mutating endpoints. Plaintext or a bcrypt hash.
	UploadToken string

	validate *validator.Validate
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:         app,
		UploadToken: utils.Env("UPLOAD_TOKEN", ""),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", c.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Dashboard
	r.HandleFunc("/", c.HandleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard", c.HandleDashboardSummary).Methods(http.MethodGet)

	// Node reports
	r.HandleFunc("/submit/stats", c.HandleSubmitStats).Methods(http.MethodPost)
	r.HandleFunc("/submit/stats", c.HandleStatsList).Methods(http.MethodGet)
	r.HandleFunc("/submit/stats/{peerId}", c.HandleStatsDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", c.HandleStatsList).Methods(http.MethodGet)

	// Block producers; last-sync must be registered before the {publicKey} match
	r.HandleFunc("/api/producers", c.HandleProducersList).Methods(http.MethodGet)
	r.HandleFunc("/api/producers/last-sync", c.HandleProducersLastSync).Methods(http.MethodGet)
	r.Handle("/api/producers/upload", c.RequireUploadToken(http.HandlerFunc(c.HandleProducersUpload))).Methods(http.MethodPost)
	r.HandleFunc("/api/producers/{publicKey}", c.HandleProducerDetail).Methods(http.MethodGet)
	r.Handle("/api/producers/{publicKey}/upgraded", c.RequireUploadToken(http.HandlerFunc(c.HandleProducerUpgraded))).Methods(http.MethodPut)

	// Commit allow-list
	r.HandleFunc("/api/commits", c.HandleCommitsList).Methods(http.MethodGet)
	r.Handle("/api/commits", c.RequireUploadToken(http.HandlerFunc(c.HandleCommitsAdd))).Methods(http.MethodPost)
	r.Handle("/api/commits/{hash}", c.RequireUploadToken(http.HandlerFunc(c.HandleCommitDelete))).Methods(http.MethodDelete)

	return r, nil
}

// writeJSON writes a JSON response. The body is encoded before the status is sent so an
// unencodable value turns into a 500 instead of an empty 200.
func (c *Controller) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		c.App.Logger.Error("Failed to encode JSON response", zap.Error(err))
		statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"Failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// writeError writes an error response
func (c *Controller) writeError(w http.ResponseWriter, statusCode int, message string) {
	c.writeJSON(w, statusCode, map[string]string{"error": message})
}
