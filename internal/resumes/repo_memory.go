package resumes

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Record)}
}

// Create stores a new resume.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[rec.ID]; exists {
		return ErrInvalidInput
	}
	r.data[rec.ID] = rec
	return nil
}

// GetByID returns a resume by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, resumeID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[resumeID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// GetLatestByUser returns the most recently updated resume for a user.
func (r *MemoryRepo) GetLatestByUser(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		latest Record
		found  bool
	)
	for _, rec := range r.data {
		if rec.UserID != userID {
			continue
		}
		if !found || rec.UpdatedAt.After(latest.UpdatedAt) {
			latest, found = rec, true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return latest, nil
}

// UpdateContent replaces the content of a resume.
func (r *MemoryRepo) UpdateContent(ctx context.Context, resumeID string, content Document, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[resumeID]
	if !ok {
		return ErrNotFound
	}
	rec.Content = content
	rec.UpdatedAt = updatedAt
	r.data[resumeID] = rec
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

// ClaimGuest reassigns every resume of guestUserID to authedUserID.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, rec := range r.data {
		if rec.UserID != guestUserID {
			continue
		}
		rec.UserID = authedUserID
		r.data[id] = rec
		count++
	}
	return count, nil
}
