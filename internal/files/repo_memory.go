package files

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. Used when no database
// is configured and throughout the tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]FileRecord
	byRef map[string]string // scanRef -> id
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:  make(map[string]FileRecord),
		byRef: make(map[string]string),
	}
}

// Create stores a new record.
func (r *MemoryRepo) Create(ctx context.Context, rec FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = rec
	r.byRef[rec.ScanRef] = rec.ID
	return nil
}

// GetByID returns the record with the given id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return FileRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return FileRecord{}, ErrNotFound
	}
	return rec, nil
}

// GetByScanRef returns the record bound to the given scan correlation token.
func (r *MemoryRepo) GetByScanRef(ctx context.Context, scanRef string) (FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return FileRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[scanRef]
	if !ok {
		return FileRecord{}, ErrNotFound
	}
	return r.byID[id], nil
}

// ListStatusOlderThan returns records in the given status created before cutoff.
func (r *MemoryRepo) ListStatusOlderThan(ctx context.Context, status Status, cutoff time.Time) ([]FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []FileRecord
	for _, rec := range r.byID {
		if rec.Status == status && rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update persists the record unless the stored row is already terminal.
func (r *MemoryRepo) Update(ctx context.Context, rec FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[rec.ID]
	if !ok || current.Status.Terminal() {
		return nil
	}
	r.byID[rec.ID] = rec
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
