package handlers

import (
	"errors"
	"net/http"

	"github.com/anchorage/registry"
	"github.com/anchorage/registry/api/errcode"
	ctxu "github.com/anchorage/registry/context"
)

// writeError translates a storage error into the registered error
// vocabulary and serves it as an errors envelope.
func (app *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var out errcode.Error

	switch v := err.(type) {
	case errcode.Error:
		out = v
	case errcode.ErrorCode:
		out = v.WithDetail(nil)
	case registry.ErrNameInvalid:
		out = errcode.ErrorCodeNameInvalid.WithDetail(v.Error())
	case registry.ErrDigestInvalid:
		out = errcode.ErrorCodeDigestInvalid.WithDetail(v.Error())
	case registry.ErrRangeInvalid:
		out = errcode.ErrorCodeRangeInvalid.WithDetail(v.Error())
	case registry.ErrBlobUnknown:
		out = errcode.ErrorCodeBlobUnknown.WithDetail(v.Digest.String())
	case registry.ErrManifestUnknown:
		out = errcode.ErrorCodeManifestUnknown.WithDetail(v.Error())
	case registry.ErrManifestInvalid:
		out = errcode.ErrorCodeManifestInvalid.WithDetail(v.Error())
	case registry.ErrUploadUnknown:
		out = errcode.ErrorCodeBlobUploadUnknown.WithDetail(v.ID)
	case registry.ErrUploadInvalid:
		out = errcode.ErrorCodeBlobUploadInvalid.WithDetail(v.Error())
	default:
		if errors.Is(err, registry.ErrUnsupported) {
			out = errcode.ErrorCodeUnsupported.WithDetail(nil)
			break
		}
		ctxu.GetLogger(r.Context()).WithError(err).Error("unclassified error during request")
		out = errcode.ErrorCodeUnknown.WithDetail(err.Error())
	}

	if err := errcode.ServeJSON(w, out); err != nil {
		ctxu.GetLogger(r.Context()).WithError(err).Error("error serving error envelope")
	}
}
