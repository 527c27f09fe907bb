package features

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/api"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
	"github.com/danceflow/danceflow/storage"
)

// UploadResult describes a stored image
type UploadResult struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// upload handles POST /uploads with a multipart "file" field
func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := auth.GetIdentity(ctx)
	if who == nil {
		api.WriteError(w, r, a.log, core.Unauthorized(""))
		return
	}
	if a.storage == nil {
		api.WriteError(w, r, a.log, core.Internal(errors.New("object storage is not configured")))
		return
	}

	tooLarge := core.Validation("", core.FieldIssue{Path: "file", Message: fmt.Sprintf("must be at most %d bytes", a.maxUpload)})

	// leave room for the multipart framing around the file
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+64<<10)
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			api.WriteError(w, r, a.log, tooLarge)
			return
		}
		api.WriteError(w, r, a.log, core.Validation("expected a multipart form", core.FieldIssue{Path: "file", Message: "is required"}))
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile("file")
	if err != nil {
		api.WriteError(w, r, a.log, core.Validation("", core.FieldIssue{Path: "file", Message: "is required"}))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, a.maxUpload+1))
	if err != nil {
		api.WriteError(w, r, a.log, core.Internal(fmt.Errorf("reading upload: %w", err)))
		return
	}
	if int64(len(data)) > a.maxUpload {
		api.WriteError(w, r, a.log, tooLarge)
		return
	}
	if len(data) == 0 {
		api.WriteError(w, r, a.log, core.Validation("", core.FieldIssue{Path: "file", Message: "is empty"}))
		return
	}

	contentType, ext, err := storage.DetectImage(data)
	if err != nil {
		api.WriteError(w, r, a.log, core.Validation("", core.FieldIssue{Path: "file", Message: "must be a JPEG, PNG, GIF, WebP or AVIF image"}))
		return
	}

	key := storage.NewKey("images", ext, a.clock())
	url, err := a.storage.Put(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		api.WriteError(w, r, a.log, core.Internal(fmt.Errorf("storing upload: %w", err)))
		return
	}

	a.log.WithFields(logrus.Fields{"user_id": who.Subject, "key": key, "size": len(data)}).Info("image uploaded")
	api.WriteData(w, http.StatusCreated, UploadResult{URL: url, ContentType: contentType, Size: len(data)})
}
