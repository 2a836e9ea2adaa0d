package controller

import (
	"net/http"
	"strings"

	"github.com/canopy-network/forkx/pkg/utils"
)

// RequireUploadToken middleware. A missing server token is a configuration error (500),
// a missing or malformed header is 401 and a wrong token is 403.
func (c *Controller) RequireUploadToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.UploadToken == "" {
			c.App.Logger.Error("UPLOAD_TOKEN is not set, rejecting authenticated request")
			c.writeError(w, http.StatusInternalServerError, "Server configuration error")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		if !utils.TokenMatches(c.UploadToken, strings.TrimPrefix(authHeader, "Bearer ")) {
			c.writeError(w, http.StatusForbidden, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
