package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var recordColumns = []string{
	"id", "filename", "content_type", "file_size", "storage_key",
	"upload_session_id", "status", "scan_ref", "created_at", "updated_at", "scanned_at",
}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewUpload("file-1", "report.pdf", "application/pdf", "files/session-1/report.pdf", "session-1", "ref-1", now)

	mock.ExpectExec("INSERT INTO files").
		WithArgs(
			rec.ID,
			rec.Filename,
			rec.ContentType,
			sqlmock.AnyArg(), // file_size, NULL until Clean
			rec.StorageKey,
			rec.UploadSessionID,
			"Uploading",
			rec.ScanRef,
			rec.CreatedAt,
			rec.UpdatedAt,
			sqlmock.AnyArg(), // scanned_at, NULL until Clean
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateIsConditionalOnNonTerminal(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewUpload("file-1", "report.pdf", "application/pdf", "files/session-1/report.pdf", "session-1", "ref-1", now)
	rec = rec.WithScanComplete(1024, now.Add(time.Minute))

	mock.ExpectExec(`UPDATE files\s+SET file_size = \$2, status = \$3, updated_at = \$4, scanned_at = \$5\s+WHERE id = \$1 AND status NOT IN \('Clean', 'Infected', 'Failed'\)`).
		WithArgs(rec.ID, sqlmock.AnyArg(), "Clean", rec.UpdatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateZeroRowsIsConverged(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewUpload("file-1", "report.pdf", "application/pdf", "files/session-1/report.pdf", "session-1", "ref-1", now)
	rec = rec.WithStatus(StatusFailed, now)

	// Stored row already terminal: no rows affected, still a success.
	mock.ExpectExec("UPDATE files").
		WithArgs(rec.ID, sqlmock.AnyArg(), "Failed", rec.UpdatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update on terminal row: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByScanRefNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM files").
		WithArgs("missing-ref").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, err = repo.GetByScanRef(context.Background(), "missing-ref")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	scanned := now.Add(time.Minute)

	rows := sqlmock.NewRows(recordColumns).AddRow(
		"file-1", "report.pdf", "application/pdf", int64(1024), "files/session-1/report.pdf",
		"session-1", "Clean", "ref-1", now, scanned, scanned,
	)
	mock.ExpectQuery("SELECT (.+) FROM files").
		WithArgs("file-1").
		WillReturnRows(rows)

	rec, err := repo.GetByID(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.Status != StatusClean {
		t.Fatalf("status = %s", rec.Status)
	}
	if rec.FileSize == nil || *rec.FileSize != 1024 {
		t.Fatalf("file size = %v", rec.FileSize)
	}
	if rec.ScannedAt == nil || !rec.ScannedAt.Equal(scanned) {
		t.Fatalf("scanned at = %v", rec.ScannedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListStatusOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-15 * time.Minute)

	rows := sqlmock.NewRows(recordColumns).
		AddRow("file-1", "a.pdf", "application/pdf", nil, "files/s1/a.pdf", "s1", "Scanning", "ref-1", now.Add(-time.Hour), now.Add(-time.Hour), nil).
		AddRow("file-2", "b.pdf", "application/pdf", nil, "files/s2/b.pdf", "s2", "Scanning", "ref-2", now.Add(-30*time.Minute), now.Add(-30*time.Minute), nil)

	mock.ExpectQuery("SELECT (.+) FROM files").
		WithArgs("Scanning", cutoff).
		WillReturnRows(rows)

	got, err := repo.ListStatusOlderThan(context.Background(), StatusScanning, cutoff)
	if err != nil {
		t.Fatalf("ListStatusOlderThan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].ID != "file-1" || got[1].ID != "file-2" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].FileSize != nil {
		t.Fatalf("expected nil file size for scanning record")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
