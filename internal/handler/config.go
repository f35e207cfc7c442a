package handler

import (
	"net/http"
	"strings"

	"github.com/capitalize-ai/callerid-relay/internal/model"
)

// Config handles GET /config. The frontend learns where the API lives:
// the configured base, else the origin it called from.
func Config(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := apiBase
		if base == "" {
			base = strings.TrimRight(r.Header.Get("Origin"), "/")
		}
		writeJSON(w, http.StatusOK, model.ConfigResponse{OK: true, APIBase: base})
	}
}
