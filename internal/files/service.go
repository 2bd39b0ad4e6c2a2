package files

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"filesafe-backend/internal/scan"
	"filesafe-backend/internal/shared/metrics"
	"filesafe-backend/internal/shared/storage/object"
	"filesafe-backend/internal/shared/telemetry"
)

const defaultContentType = "application/octet-stream"

// Service orchestrates the upload, scan and store pipeline.
type Service struct {
	Repo    Repo
	Store   object.BlobStore
	Scanner scan.Dispatcher
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// InitiateUpload creates the file record, advances it to Scanning, and hands
// the content stream to the scan dispatcher. The Scanning transition is
// persisted before the stream is handed off, so a status query issued right
// after the response never observes Uploading. The dispatch itself is
// detached: its outcome is only ever visible as a later record mutation.
//
// The returned error is nil once the record is in Scanning, except when
// reading the caller's stream itself fails; that error is returned so the
// transport can report it, while the record's fate is left to the detached
// dispatch and the sweeper.
func (s *Service) InitiateUpload(ctx context.Context, filename, contentType string, content io.Reader) (FileRecord, error) {
	if strings.TrimSpace(filename) == "" {
		return FileRecord{}, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	fileID := uuid.NewString()
	sessionID := uuid.NewString()
	scanRef := uuid.NewString()
	storageKey := fmt.Sprintf("files/%s/%s", sessionID, filename)
	now := s.now()

	rec := NewUpload(fileID, filename, contentType, storageKey, sessionID, scanRef, now)
	if err := s.Repo.Create(ctx, rec); err != nil {
		return FileRecord{}, fmt.Errorf("create file record: %w", err)
	}

	rec = rec.WithStatus(StatusScanning, s.now())
	if err := s.Repo.Update(ctx, rec); err != nil {
		return FileRecord{}, fmt.Errorf("advance to scanning: %w", err)
	}

	telemetry.Info("upload.accepted", map[string]any{
		"file_id":           rec.ID,
		"upload_session_id": rec.UploadSessionID,
		"scan_ref":          rec.ScanRef,
		"filename":          rec.Filename,
		"status_transition": "Uploading->Scanning",
	})
	metrics.IncUploadStarted()

	// The dispatcher consumes the pipe on its own goroutine; the request
	// goroutine feeds it the client stream. The response never waits on the
	// scanner's answer.
	pr, pw := io.Pipe()
	go s.dispatchScan(rec, pr)

	_, copyErr := io.Copy(pw, content)
	pw.CloseWithError(copyErr)
	if copyErr != nil {
		return rec, fmt.Errorf("read upload stream: %w", copyErr)
	}
	return rec, nil
}

// dispatchScan runs detached from the originating request. Failures are
// recorded as a best-effort Failed transition; they cannot reach the
// original caller.
func (s *Service) dispatchScan(rec FileRecord, body *io.PipeReader) {
	defer body.Close()
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("scan.dispatch_panic", map[string]any{
				"file_id":  rec.ID,
				"scan_ref": rec.ScanRef,
				"error":    fmt.Sprint(r),
			})
			s.markFailed(context.Background(), rec)
		}
	}()

	start := time.Now()
	err := s.Scanner.Dispatch(context.Background(), body, rec.ScanRef, rec.Filename, rec.ContentType)
	metrics.ObserveScanDispatchSeconds(time.Since(start).Seconds())
	if err != nil {
		telemetry.Error("scan.dispatch_failed", map[string]any{
			"file_id":  rec.ID,
			"scan_ref": rec.ScanRef,
			"error":    err.Error(),
		})
		s.markFailed(context.Background(), rec)
		return
	}
}

func (s *Service) markFailed(ctx context.Context, rec FileRecord) {
	failed := rec.WithStatus(StatusFailed, s.now())
	if err := s.Repo.Update(ctx, failed); err != nil {
		telemetry.Error("file.mark_failed_error", map[string]any{
			"file_id": rec.ID,
			"error":   err.Error(),
		})
		return
	}
	metrics.IncUploadFailed()
	telemetry.Warn("file.failed", map[string]any{
		"file_id":           rec.ID,
		"scan_ref":          rec.ScanRef,
		"status_transition": fmt.Sprintf("%s->%s", rec.Status, StatusFailed),
	})
}

// CompleteScan handles the scanner's clean-content callback: it streams the
// clean bytes to durable storage and finalizes the record.
//
// On storage failure the record deliberately stays in Scanning and the error
// is returned so the scanner can retry the callback; a record whose storage
// keeps failing is resolved to Failed only by the sweeper. This mirrors the
// retry contract with the scanner and is a policy choice, not an oversight.
func (s *Service) CompleteScan(ctx context.Context, scanRef string, clean io.Reader) (FileRecord, error) {
	rec, err := s.Repo.GetByScanRef(ctx, scanRef)
	if err != nil {
		metrics.IncScanCallback("not_found")
		return FileRecord{}, err
	}

	size, err := s.Store.Put(ctx, rec.StorageKey, rec.ContentType, clean)
	if err != nil {
		metrics.IncScanCallback("error")
		telemetry.Error("callback.store_failed", map[string]any{
			"file_id":     rec.ID,
			"scan_ref":    scanRef,
			"storage_key": rec.StorageKey,
			"error":       err.Error(),
		})
		return FileRecord{}, fmt.Errorf("store clean content: %w", err)
	}

	rec = rec.WithScanComplete(size, s.now())
	if err := s.Repo.Update(ctx, rec); err != nil {
		metrics.IncScanCallback("error")
		return FileRecord{}, fmt.Errorf("finalize record: %w", err)
	}

	metrics.IncScanCallback("clean")
	telemetry.Info("callback.completed", map[string]any{
		"file_id":           rec.ID,
		"scan_ref":          scanRef,
		"file_size":         size,
		"status_transition": "Scanning->Clean",
	})
	return rec, nil
}

// MarkInfected records a scanner-reported infection verdict for the given
// correlation token. The bytes are never stored.
func (s *Service) MarkInfected(ctx context.Context, scanRef string) (FileRecord, error) {
	rec, err := s.Repo.GetByScanRef(ctx, scanRef)
	if err != nil {
		metrics.IncScanCallback("not_found")
		return FileRecord{}, err
	}

	rec = rec.WithStatus(StatusInfected, s.now())
	if err := s.Repo.Update(ctx, rec); err != nil {
		return FileRecord{}, fmt.Errorf("mark infected: %w", err)
	}

	metrics.IncScanCallback("infected")
	telemetry.Warn("callback.infected", map[string]any{
		"file_id":           rec.ID,
		"scan_ref":          scanRef,
		"status_transition": "Scanning->Infected",
	})
	return rec, nil
}

// Get returns the record with the given id.
func (s *Service) Get(ctx context.Context, id string) (FileRecord, error) {
	if strings.TrimSpace(id) == "" {
		return FileRecord{}, fmt.Errorf("%w: file id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

// OpenDownload returns the record plus a stream of its content. Records
// that are not Clean are reported as not found.
func (s *Service) OpenDownload(ctx context.Context, id string) (FileRecord, io.ReadCloser, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return FileRecord{}, nil, err
	}
	if rec.Status != StatusClean {
		return FileRecord{}, nil, ErrNotFound
	}

	rc, err := s.Store.Get(ctx, rec.StorageKey)
	if err != nil {
		return FileRecord{}, nil, fmt.Errorf("open stored content: %w", err)
	}
	return rec, rc, nil
}
