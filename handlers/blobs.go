package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/anchorage/registry"
	ctxu "github.com/anchorage/registry/context"
)

// getBlob serves blob content by digest, honoring a single Range header on
// GET. HEAD returns the same headers without a body.
func (app *App) getBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	dgst, err := registry.ParseDigest(vars["digest"])
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	desc, err := app.registry.Blobs().Stat(r.Context(), name, dgst)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", desc.MediaType)
	w.Header().Set("Docker-Content-Digest", desc.Digest.String())

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(desc.Size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	if spec := r.Header.Get("Range"); spec != "" {
		rc, br, size, err := app.registry.Blobs().OpenRange(r.Context(), name, dgst, spec)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Length", strconv.FormatInt(br.Size(), 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size))
		w.WriteHeader(http.StatusPartialContent)
		if _, err := io.Copy(w, rc); err != nil {
			ctxu.GetLogger(r.Context()).WithError(err).Error("error streaming blob range")
		}
		return
	}

	rc, err := app.registry.Blobs().Open(r.Context(), name, dgst)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(desc.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		ctxu.GetLogger(r.Context()).WithError(err).Error("error streaming blob")
	}
}

// deleteBlob removes a blob from the global store. Deleting a blob that is
// already gone is a success.
func (app *App) deleteBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	dgst, err := registry.ParseDigest(vars["digest"])
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	err = app.registry.Blobs().Delete(r.Context(), vars["name"], dgst)
	if err != nil {
		if _, ok := err.(registry.ErrBlobUnknown); !ok {
			app.writeError(w, r, err)
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
}
