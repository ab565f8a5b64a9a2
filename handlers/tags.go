package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	ctxu "github.com/anchorage/registry/context"
)

type tagsAPIResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// getTags lists a repository's tags in lexical order, with optional
// n/last pagination. When a page is truncated a RFC 5988 Link header
// points at the next one.
func (app *App) getTags(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	tags, err := app.registry.Tags().All(r.Context(), name)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	if last := query.Get("last"); last != "" {
		for len(tags) > 0 && tags[0] <= last {
			tags = tags[1:]
		}
	}

	truncated := false
	if nParam := query.Get("n"); nParam != "" {
		if n, err := strconv.Atoi(nParam); err == nil && n >= 0 && n < len(tags) {
			tags = tags[:n]
			truncated = true
		}
	}

	if truncated && len(tags) > 0 {
		next := fmt.Sprintf("/v2/%s/tags/list?n=%s&last=%s", name, query.Get("n"), tags[len(tags)-1])
		w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"next\"", next))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tagsAPIResponse{Name: name, Tags: tags}); err != nil {
		ctxu.GetLogger(r.Context()).WithError(err).Error("error encoding tag list")
	}
}
