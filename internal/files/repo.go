package files

import (
	"context"
	"time"
)

// Repo defines persistence operations for file records.
//
// Update is conditionally applied: a record whose stored status is already
// terminal is never overwritten, so a stale Failed write racing a completed
// Clean transition converges on the terminal state. Callers treat a
// no-effect update as success.
type Repo interface {
	Create(ctx context.Context, rec FileRecord) error
	GetByID(ctx context.Context, id string) (FileRecord, error)
	GetByScanRef(ctx context.Context, scanRef string) (FileRecord, error)
	ListStatusOlderThan(ctx context.Context, status Status, cutoff time.Time) ([]FileRecord, error)
	Update(ctx context.Context, rec FileRecord) error
}
