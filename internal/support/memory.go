package support

import (
	"context"
	"sync"

	"github.com/cofabri/site-backend/internal/domain"
)

// DefaultMemoryCapacity bounds how many failed submissions MemoryRepository keeps.
const DefaultMemoryCapacity = 1000

// MemoryRepository keeps failed submissions in process memory. Entries are
// lost on restart; the error log remains the durable record.
type MemoryRepository struct {
	mu       sync.RWMutex
	items    []domain.FailedSubmission
	capacity int
}

// NewMemoryRepository creates a repository that keeps the newest capacity entries.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRepository{capacity: capacity}
}

// SaveFailed stores sub, evicting the oldest entry when full.
func (r *MemoryRepository) SaveFailed(_ context.Context, sub *domain.FailedSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, *sub)
	if over := len(r.items) - r.capacity; over > 0 {
		r.items = append([]domain.FailedSubmission(nil), r.items[over:]...)
	}
	return nil
}

// ListFailed returns up to limit entries, newest first.
func (r *MemoryRepository) ListFailed(_ context.Context, limit int) ([]domain.FailedSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FailedSubmission, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.items[i])
	}
	return out, nil
}
