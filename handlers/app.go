// Package handlers binds the storage engine onto the OCI distribution
// HTTP endpoint set.
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	ctxu "github.com/anchorage/registry/context"
	"github.com/anchorage/registry/reference"
	"github.com/anchorage/registry/storage"
)

// App is the registry's HTTP application: a router over the storage
// engine's services.
type App struct {
	router   *mux.Router
	registry *storage.Registry
}

var _ http.Handler = &App{}

// NewApp builds the route table over the given registry.
func NewApp(registry *storage.Registry) *App {
	app := &App{
		router:   mux.NewRouter(),
		registry: registry,
	}

	name := "{name:" + reference.NameRegexp.String() + "}"

	app.router.HandleFunc("/v2/", app.version).Methods(http.MethodGet)

	app.router.HandleFunc("/v2/"+name+"/blobs/uploads/", app.startBlobUpload).Methods(http.MethodPost)
	app.router.HandleFunc("/v2/"+name+"/blobs/uploads/{id}", app.blobUploadStatus).Methods(http.MethodGet)
	app.router.HandleFunc("/v2/"+name+"/blobs/uploads/{id}", app.patchBlobUpload).Methods(http.MethodPatch)
	app.router.HandleFunc("/v2/"+name+"/blobs/uploads/{id}", app.completeBlobUpload).Methods(http.MethodPut)
	app.router.HandleFunc("/v2/"+name+"/blobs/uploads/{id}", app.cancelBlobUpload).Methods(http.MethodDelete)

	app.router.HandleFunc("/v2/"+name+"/blobs/{digest}", app.getBlob).Methods(http.MethodGet, http.MethodHead)
	app.router.HandleFunc("/v2/"+name+"/blobs/{digest}", app.deleteBlob).Methods(http.MethodDelete)

	app.router.HandleFunc("/v2/"+name+"/manifests/{reference}", app.getManifest).Methods(http.MethodGet, http.MethodHead)
	app.router.HandleFunc("/v2/"+name+"/manifests/{reference}", app.putManifest).Methods(http.MethodPut)
	app.router.HandleFunc("/v2/"+name+"/manifests/{reference}", app.deleteManifest).Methods(http.MethodDelete)

	app.router.HandleFunc("/v2/"+name+"/tags/list", app.getTags).Methods(http.MethodGet)
	app.router.HandleFunc("/v2/"+name+"/referrers/{digest}", app.getReferrers).Methods(http.MethodGet)

	return app
}

// ServeHTTP attaches a request-scoped logger before routing.
func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logrus.StandardLogger().WithFields(logrus.Fields{
		"request.id":     uuid.NewString(),
		"request.method": r.Method,
		"request.path":   r.URL.Path,
	})

	r = r.WithContext(ctxu.WithLogger(r.Context(), logger))
	app.router.ServeHTTP(w, r)
}

// version is the API version check. A 200 with the version header is all a
// client needs.
func (app *App) version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Docker-Distribution-API-Version", "registry/2.0")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("{}"))
}
