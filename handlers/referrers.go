package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/anchorage/registry"
	ctxu "github.com/anchorage/registry/context"
)

// getReferrers serves the referrers index for a subject digest as an OCI
// image index, optionally filtered by artifact type. An unknown subject
// yields a well-formed empty index.
func (app *App) getReferrers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	dgst, err := registry.ParseDigest(vars["digest"])
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	artifactType := r.URL.Query().Get("artifactType")

	index, err := app.registry.Manifests().Referrers(r.Context(), vars["name"], dgst, artifactType)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	if artifactType != "" {
		w.Header().Set("OCI-Filters-Applied", "artifactType")
	}
	w.Header().Set("Content-Type", v1.MediaTypeImageIndex)
	if err := json.NewEncoder(w).Encode(index); err != nil {
		ctxu.GetLogger(r.Context()).WithError(err).Error("error encoding referrers index")
	}
}
