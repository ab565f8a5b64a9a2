package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/api/errcode"
	"github.com/anchorage/registry/reference"
)

func manifestURL(name string, ref string) string {
	return fmt.Sprintf("/v2/%s/manifests/%s", name, ref)
}

// getManifest serves a manifest by tag or digest. The stored bytes are
// returned exactly as pushed.
func (app *App) getManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, ref := vars["name"], vars["reference"]

	var (
		manifest registry.Manifest
		err      error
	)

	if strings.Contains(ref, ":") {
		dgst, perr := registry.ParseDigest(ref)
		if perr != nil {
			app.writeError(w, r, perr)
			return
		}
		manifest, err = app.registry.Manifests().Get(r.Context(), name, dgst)
	} else {
		if !reference.IsTag(ref) {
			app.writeError(w, r, errcode.ErrorCodeTagInvalid.WithDetail(ref))
			return
		}
		manifest, err = app.registry.Manifests().GetByTag(r.Context(), name, ref)
	}
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", manifest.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(manifest.Payload)))
	w.Header().Set("Docker-Content-Digest", manifest.Digest.String())

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(manifest.Payload)
}

// putManifest stores a manifest under a tag or digest reference. A digest
// reference must match the payload before anything is stored.
func (app *App) putManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, ref := vars["name"], vars["reference"]

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		app.writeError(w, r, errcode.ErrorCodeManifestInvalid.WithDetail(err.Error()))
		return
	}

	var tag string
	if strings.Contains(ref, ":") {
		dgst, perr := registry.ParseDigest(ref)
		if perr != nil {
			app.writeError(w, r, perr)
			return
		}
		if computed := dgst.Algorithm().FromBytes(payload); computed != dgst {
			app.writeError(w, r, registry.ErrDigestInvalid{
				Digest: dgst.String(),
				Reason: fmt.Sprintf("payload digest is %s", computed),
			})
			return
		}
	} else {
		if !reference.IsTag(ref) {
			app.writeError(w, r, errcode.ErrorCodeTagInvalid.WithDetail(ref))
			return
		}
		tag = ref
	}

	manifest, err := app.registry.Manifests().Put(r.Context(), name, payload, r.Header.Get("Content-Type"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	if tag != "" {
		if err := app.registry.Tags().Tag(r.Context(), name, tag, manifest.Digest); err != nil {
			app.writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Location", manifestURL(name, manifest.Digest.String()))
	w.Header().Set("Docker-Content-Digest", manifest.Digest.String())
	if manifest.Subject != "" {
		w.Header().Set("OCI-Subject", manifest.Subject.String())
	}
	w.WriteHeader(http.StatusCreated)
}

// deleteManifest removes a manifest by digest. Deletion by tag is not
// supported; clients untag via the tags API instead.
func (app *App) deleteManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, ref := vars["name"], vars["reference"]

	if !strings.Contains(ref, ":") {
		app.writeError(w, r, registry.ErrUnsupported)
		return
	}

	dgst, err := registry.ParseDigest(ref)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	if err := app.registry.Manifests().Delete(r.Context(), name, dgst); err != nil {
		if _, ok := err.(registry.ErrManifestUnknown); !ok {
			app.writeError(w, r, err)
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
}
