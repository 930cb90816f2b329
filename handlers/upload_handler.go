package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"event-hub/internal/status"
	"event-hub/monitoring"
	"event-hub/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type UploadHandler struct {
	app     *pocketbase.PocketBase
	uploads *services.UploadService
	monitor *monitoring.Monitor
}

func NewUploadHandler(app *pocketbase.PocketBase, uploads *services.UploadService, monitor *monitoring.Monitor) *UploadHandler {
	return &UploadHandler{
		app:     app,
		uploads: uploads,
		monitor: monitor,
	}
}

// Upload - forward a multipart image to the asset host and return its URL
func (h *UploadHandler) Upload(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	file, header, err := e.Request.FormFile("image")
	if err != nil {
		return apis.NewBadRequestError("No image file provided", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apis.NewBadRequestError("Failed to read image file", err)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	start := time.Now()
	imageURL, err := h.uploads.Upload(e.Request.Context(), data, mimeType)
	h.monitor.TrackUpload(time.Since(start), err == nil)
	if err != nil {
		if errors.Is(err, status.ErrNoFileProvided) {
			return apis.NewBadRequestError("No image file provided", err)
		}
		return apis.NewInternalServerError("Error uploading image", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"imageUrl": imageURL})
}
