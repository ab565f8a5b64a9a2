package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/api/errcode"
	"github.com/opencontainers/go-digest"
)

func blobURL(name string, dgst digest.Digest) string {
	return fmt.Sprintf("/v2/%s/blobs/%s", name, dgst)
}

func uploadURL(name, id string) string {
	return fmt.Sprintf("/v2/%s/blobs/uploads/%s", name, id)
}

// rangeHeader formats the upload progress Range header. A session with no
// accepted bytes reports 0-0.
func rangeHeader(status registry.UploadStatus) string {
	offset := status.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("0-%d", offset)
}

// parseContentRange parses the inclusive "start-end" form carried on chunk
// uploads. The HTTP "bytes " prefix is not used there.
func parseContentRange(spec string) (start, end int64, err error) {
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, registry.ErrUploadInvalid{Reason: fmt.Sprintf("malformed content range %q", spec)}
	}

	start, err = strconv.ParseInt(first, 10, 64)
	if err == nil {
		end, err = strconv.ParseInt(last, 10, 64)
	}
	if err != nil {
		return 0, 0, registry.ErrUploadInvalid{Reason: fmt.Sprintf("malformed content range %q", spec)}
	}
	return start, end, nil
}

// startBlobUpload handles POST /v2/{name}/blobs/uploads/. Three shapes
// share the route: cross-repository mount (?mount=&from=), monolithic
// upload (?digest=) and opening a chunked session.
func (app *App) startBlobUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	query := r.URL.Query()

	if mountRef := query.Get("mount"); mountRef != "" && query.Get("from") != "" {
		dgst, err := registry.ParseDigest(mountRef)
		if err != nil {
			app.writeError(w, r, err)
			return
		}

		mounted, err := app.registry.Blobs().Mount(r.Context(), query.Get("from"), name, dgst)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		if mounted {
			w.Header().Set("Location", blobURL(name, dgst))
			w.Header().Set("Docker-Content-Digest", dgst.String())
			w.WriteHeader(http.StatusCreated)
			return
		}
		// The source blob is absent. Fall back to a regular session so
		// the client can push the content itself.
	}

	if digestParam := query.Get("digest"); digestParam != "" {
		dgst, err := registry.ParseDigest(digestParam)
		if err != nil {
			app.writeError(w, r, err)
			return
		}

		desc, err := app.registry.Blobs().Put(r.Context(), name, r.Body, dgst, r.Header.Get("Content-Type"))
		if err != nil {
			app.writeError(w, r, err)
			return
		}

		w.Header().Set("Location", blobURL(name, desc.Digest))
		w.Header().Set("Docker-Content-Digest", desc.Digest.String())
		w.WriteHeader(http.StatusCreated)
		return
	}

	status, err := app.registry.Uploads().Start(r.Context(), name)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", uploadURL(name, status.ID))
	w.Header().Set("Range", rangeHeader(status))
	w.Header().Set("Docker-Upload-UUID", status.ID)
	w.WriteHeader(http.StatusAccepted)
}

// patchBlobUpload appends one chunk to an open session. The chunk's range
// comes from Content-Range when present, otherwise it is inferred from the
// session offset and Content-Length.
func (app *App) patchBlobUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, id := vars["name"], vars["id"]

	var start, end int64
	if spec := r.Header.Get("Content-Range"); spec != "" {
		var err error
		start, end, err = parseContentRange(spec)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
	} else {
		if r.ContentLength <= 0 {
			app.writeError(w, r, errcode.ErrorCodeBlobUploadInvalid.WithDetail("content length required without content range"))
			return
		}
		status, err := app.registry.Uploads().Status(r.Context(), id)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		start = status.Offset + 1
		end = start + r.ContentLength - 1
	}

	status, err := app.registry.Uploads().PutChunk(r.Context(), id, r.Body, start, end)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", uploadURL(name, id))
	w.Header().Set("Range", rangeHeader(status))
	w.Header().Set("Docker-Upload-UUID", id)
	w.WriteHeader(http.StatusAccepted)
}

// completeBlobUpload handles PUT /v2/{name}/blobs/uploads/{id}?digest=. A
// non-empty body is accepted as a final chunk before assembly.
func (app *App) completeBlobUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, id := vars["name"], vars["id"]

	digestParam := r.URL.Query().Get("digest")
	if digestParam == "" {
		app.writeError(w, r, errcode.ErrorCodeBlobUploadInvalid.WithDetail("digest parameter required"))
		return
	}
	dgst, err := registry.ParseDigest(digestParam)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	if r.ContentLength > 0 {
		status, err := app.registry.Uploads().Status(r.Context(), id)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		start := status.Offset + 1
		if _, err := app.registry.Uploads().PutChunk(r.Context(), id, r.Body, start, start+r.ContentLength-1); err != nil {
			app.writeError(w, r, err)
			return
		}
	}

	content, target, err := app.registry.Uploads().Complete(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	defer content.Close()

	desc, err := app.registry.Blobs().Put(r.Context(), target, content, dgst, "")
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", blobURL(name, desc.Digest))
	w.Header().Set("Docker-Content-Digest", desc.Digest.String())
	w.WriteHeader(http.StatusCreated)
}

// blobUploadStatus reports an open session's progress.
func (app *App) blobUploadStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	status, err := app.registry.Uploads().Status(r.Context(), vars["id"])
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", uploadURL(vars["name"], status.ID))
	w.Header().Set("Range", rangeHeader(status))
	w.Header().Set("Docker-Upload-UUID", status.ID)
	w.WriteHeader(http.StatusNoContent)
}

// cancelBlobUpload discards an open session and its chunk storage.
func (app *App) cancelBlobUpload(w http.ResponseWriter, r *http.Request) {
	if err := app.registry.Uploads().Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		app.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
