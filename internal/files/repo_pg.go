package files

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new file record.
func (r *PGRepo) Create(ctx context.Context, rec FileRecord) error {
	const query = `
INSERT INTO files (
    id,
    filename,
    content_type,
    file_size,
    storage_key,
    upload_session_id,
    status,
    scan_ref,
    created_at,
    updated_at,
    scanned_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var fileSize sql.NullInt64
	if rec.FileSize != nil {
		fileSize = sql.NullInt64{Int64: *rec.FileSize, Valid: true}
	}
	var scannedAt sql.NullTime
	if rec.ScannedAt != nil {
		scannedAt = sql.NullTime{Time: *rec.ScannedAt, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Filename,
		rec.ContentType,
		fileSize,
		rec.StorageKey,
		rec.UploadSessionID,
		string(rec.Status),
		rec.ScanRef,
		rec.CreatedAt,
		rec.UpdatedAt,
		scannedAt,
	)
	return err
}

// GetByID returns the record with the given id.
func (r *PGRepo) GetByID(ctx context.Context, id string) (FileRecord, error) {
	const query = `
SELECT id, filename, content_type, file_size, storage_key, upload_session_id, status, scan_ref, created_at, updated_at, scanned_at
FROM files
WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetByScanRef returns the record bound to the given scan correlation token.
func (r *PGRepo) GetByScanRef(ctx context.Context, scanRef string) (FileRecord, error) {
	const query = `
SELECT id, filename, content_type, file_size, storage_key, upload_session_id, status, scan_ref, created_at, updated_at, scanned_at
FROM files
WHERE scan_ref = $1`
	return r.queryOne(ctx, query, scanRef)
}

// ListStatusOlderThan returns records in the given status created before cutoff.
func (r *PGRepo) ListStatusOlderThan(ctx context.Context, status Status, cutoff time.Time) ([]FileRecord, error) {
	const query = `
SELECT id, filename, content_type, file_size, storage_key, upload_session_id, status, scan_ref, created_at, updated_at, scanned_at
FROM files
WHERE status = $1 AND created_at < $2
ORDER BY created_at`

	rows, err := r.DB.QueryContext(ctx, query, string(status), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update persists mutable fields of the record. The write is conditional on
// the stored row still being non-terminal; updating an already-terminal row
// affects zero rows and is treated as converged, not as an error.
func (r *PGRepo) Update(ctx context.Context, rec FileRecord) error {
	const query = `
UPDATE files
SET file_size = $2, status = $3, updated_at = $4, scanned_at = $5
WHERE id = $1 AND status NOT IN ('Clean', 'Infected', 'Failed')`

	var fileSize sql.NullInt64
	if rec.FileSize != nil {
		fileSize = sql.NullInt64{Int64: *rec.FileSize, Valid: true}
	}
	var scannedAt sql.NullTime
	if rec.ScannedAt != nil {
		scannedAt = sql.NullTime{Time: *rec.ScannedAt, Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, query, rec.ID, fileSize, string(rec.Status), rec.UpdatedAt, scannedAt)
	return err
}

func (r *PGRepo) queryOne(ctx context.Context, query string, arg any) (FileRecord, error) {
	row := r.DB.QueryRowContext(ctx, query, arg)
	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileRecord{}, ErrNotFound
		}
		return FileRecord{}, err
	}
	return rec, nil
}

func scanRecord(scan func(dest ...any) error) (FileRecord, error) {
	var rec FileRecord
	var fileSize sql.NullInt64
	var status string
	var scannedAt sql.NullTime
	err := scan(
		&rec.ID,
		&rec.Filename,
		&rec.ContentType,
		&fileSize,
		&rec.StorageKey,
		&rec.UploadSessionID,
		&status,
		&rec.ScanRef,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&scannedAt,
	)
	if err != nil {
		return FileRecord{}, err
	}
	rec.Status = Status(status)
	if fileSize.Valid {
		rec.FileSize = &fileSize.Int64
	}
	if scannedAt.Valid {
		rec.ScannedAt = &scannedAt.Time
	}
	return rec, nil
}

var _ Repo = (*PGRepo)(nil)
