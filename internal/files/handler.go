package files

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filesafe-backend/internal/shared/server/respond"
	"filesafe-backend/internal/shared/storage/object"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc           *Service
	MaxUploadSize int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadSize int64) *Handler {
	return &Handler{Svc: svc, MaxUploadSize: maxUploadSize}
}

// RegisterRoutes attaches file routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files/upload", h.upload)
	rg.POST("/files/upload-scanned", h.uploadScanned)
	rg.GET("/files/:id/status", h.status)
	rg.GET("/files/:id/download", h.download)
}

func (h *Handler) upload(c *gin.Context) {
	if h.MaxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadSize)
	}

	// Stream the multipart body part by part; the file content is never
	// read into memory here.
	mr, err := c.Request.MultipartReader()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "multipart/form-data body is required", nil)
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file is required", nil)
		return
	}
	defer part.Close()

	filename := part.FileName()
	if strings.TrimSpace(filename) == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "filename is required", nil)
		return
	}
	contentType := part.Header.Get("Content-Type")

	rec, err := h.Svc.InitiateUpload(c.Request.Context(), filename, contentType, part)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		case errors.As(err, &maxBytesErr):
			// The record was already accepted; the truncated dispatch fails
			// in the background and the record converges on Failed.
			respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeValidation, "upload exceeds the maximum allowed size", nil)
		case rec.ID == "":
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to accept upload", nil)
		default:
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unable to read upload stream", nil)
		}
		return
	}

	c.Set("fileId", rec.ID)
	c.Set("scanRef", rec.ScanRef)
	c.Set("statusTransition", "Uploading->Scanning")
	respond.Accepted(c, toUploadResponse(rec))
}

// uploadScanned receives the scanner's callback: either the clean content
// stream or an infection verdict for the referenced upload.
func (h *Handler) uploadScanned(c *gin.Context) {
	scanRef := c.Query("ref")
	if strings.TrimSpace(scanRef) == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "ref query parameter is required", nil)
		return
	}
	c.Set("scanRef", scanRef)

	var rec FileRecord
	var err error
	if strings.EqualFold(c.GetHeader("scan-result"), "infected") {
		rec, err = h.Svc.MarkInfected(c.Request.Context(), scanRef)
	} else {
		rec, err = h.Svc.CompleteScan(c.Request.Context(), scanRef, c.Request.Body)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "no upload matches the scan reference", nil)
		case errors.Is(err, object.ErrStorage):
			// Reported back so the scanner may retry; the record stays in
			// Scanning until a retry succeeds or the sweeper fails it.
			respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "failed to store scanned content", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to process scan callback", nil)
		}
		return
	}

	c.Set("fileId", rec.ID)
	respond.OK(c, toCallbackResponse(rec))
}

func (h *Handler) status(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "file not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch file status", nil)
		}
		return
	}

	c.Set("fileId", rec.ID)
	respond.OK(c, toStatusResponse(rec))
}

func (h *Handler) download(c *gin.Context) {
	rec, rc, err := h.Svc.OpenDownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "file not found or not available for download", nil)
		case errors.Is(err, object.ErrStorage):
			respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "failed to read stored content", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to open download", nil)
		}
		return
	}
	defer rc.Close()

	c.Set("fileId", rec.ID)
	var size int64
	if rec.FileSize != nil {
		size = *rec.FileSize
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", rec.Filename),
	}
	c.DataFromReader(http.StatusOK, size, rec.ContentType, rc, extraHeaders)
}

// nextFilePart advances the multipart stream to the "file" field, skipping
// any preceding form fields.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		// Drain unrelated fields so the reader can advance.
		_, _ = io.Copy(io.Discard, part)
		_ = part.Close()
	}
}
