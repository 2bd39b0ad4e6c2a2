package files

import (
	"fmt"
	"time"
)

// UploadResponse is returned when an upload is accepted for scanning.
type UploadResponse struct {
	UploadSessionID string    `json:"uploadSessionId"`
	FileID          string    `json:"fileId"`
	Filename        string    `json:"filename"`
	Status          Status    `json:"status"`
	StatusURL       string    `json:"statusUrl"`
	CreatedAt       time.Time `json:"createdAt"`
}

// StatusResponse is the outward-facing representation of a file record.
// DownloadURL is present only once the record is Clean.
type StatusResponse struct {
	FileID      string     `json:"fileId"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	FileSize    *int64     `json:"fileSize"`
	Status      Status     `json:"status"`
	DownloadURL *string    `json:"downloadUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ScannedAt   *time.Time `json:"scannedAt"`
}

// CallbackResponse acknowledges a processed scan callback.
type CallbackResponse struct {
	FileID   string `json:"fileId"`
	Status   Status `json:"status"`
	FileSize *int64 `json:"fileSize,omitempty"`
}

func statusPath(id string) string {
	return fmt.Sprintf("/api/v1/files/%s/status", id)
}

func downloadPath(id string) string {
	return fmt.Sprintf("/api/v1/files/%s/download", id)
}

func toUploadResponse(rec FileRecord) UploadResponse {
	return UploadResponse{
		UploadSessionID: rec.UploadSessionID,
		FileID:          rec.ID,
		Filename:        rec.Filename,
		Status:          rec.Status,
		StatusURL:       statusPath(rec.ID),
		CreatedAt:       rec.CreatedAt,
	}
}

func toStatusResponse(rec FileRecord) StatusResponse {
	resp := StatusResponse{
		FileID:      rec.ID,
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		FileSize:    rec.FileSize,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		ScannedAt:   rec.ScannedAt,
	}
	if rec.Status == StatusClean {
		url := downloadPath(rec.ID)
		resp.DownloadURL = &url
	}
	return resp
}

func toCallbackResponse(rec FileRecord) CallbackResponse {
	return CallbackResponse{
		FileID:   rec.ID,
		Status:   rec.Status,
		FileSize: rec.FileSize,
	}
}
