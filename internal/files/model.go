package files

import "time"

// Status is the lifecycle state of an uploaded file.
type Status string

const (
	StatusUploading Status = "Uploading"
	StatusScanning  Status = "Scanning"
	StatusClean     Status = "Clean"
	StatusInfected  Status = "Infected"
	StatusFailed    Status = "Failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusClean, StatusInfected, StatusFailed:
		return true
	}
	return false
}

// FileRecord is the metadata row for one uploaded file. It is treated as an
// immutable value: transitions produce a new record which is then persisted.
type FileRecord struct {
	ID              string
	Filename        string
	ContentType     string
	FileSize        *int64
	StorageKey      string
	UploadSessionID string
	Status          Status
	ScanRef         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ScannedAt       *time.Time
}

// NewUpload builds the initial record for a fresh upload. FileSize and
// ScannedAt stay unset until the record reaches Clean.
func NewUpload(id, filename, contentType, storageKey, uploadSessionID, scanRef string, now time.Time) FileRecord {
	return FileRecord{
		ID:              id,
		Filename:        filename,
		ContentType:     contentType,
		StorageKey:      storageKey,
		UploadSessionID: uploadSessionID,
		Status:          StatusUploading,
		ScanRef:         scanRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// WithStatus returns a copy of the record in the given status.
func (f FileRecord) WithStatus(status Status, now time.Time) FileRecord {
	f.Status = status
	f.UpdatedAt = now
	return f
}

// WithScanComplete returns a copy marked Clean with the final size and scan
// timestamp. FileSize and ScannedAt are set together, only here.
func (f FileRecord) WithScanComplete(size int64, now time.Time) FileRecord {
	f.FileSize = &size
	f.Status = StatusClean
	f.ScannedAt = &now
	f.UpdatedAt = now
	return f
}
