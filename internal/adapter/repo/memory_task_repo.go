package repo

import (
	"context"
	"sync"
	"time"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

// MemoryTaskRepository is a process-local domain.TaskRepository, used when
// no database is configured. Rows do not survive a restart.
type MemoryTaskRepository struct {
	mu    sync.Mutex
	tasks map[domain.TaskKey]*domain.TaskRecord
	now   func() time.Time
}

// NewMemoryTaskRepository returns an empty store. A nil clock means time.Now.
func NewMemoryTaskRepository(now func() time.Time) *MemoryTaskRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryTaskRepository{
		tasks: make(map[domain.TaskKey]*domain.TaskRecord),
		now:   now,
	}
}

func (r *MemoryTaskRepository) Lookup(ctx context.Context, key domain.TaskKey) (*domain.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.LastAccessed = r.now()
	out := *rec
	return &out, nil
}

func (r *MemoryTaskRepository) InsertProcessing(ctx context.Context, key domain.TaskKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[key]; ok {
		return domain.ErrDuplicateTask
	}
	now := r.now()
	r.tasks[key] = &domain.TaskRecord{
		Key:          key,
		Status:       domain.TaskStatusProcessing,
		CreatedAt:    now,
		LastAccessed: now,
	}
	return nil
}

func (r *MemoryTaskRepository) WriteResult(ctx context.Context, key domain.TaskKey, encryptedResult string) error {
	return r.transition(key, func(rec *domain.TaskRecord) {
		rec.Status = domain.TaskStatusCompleted
		rec.Result = encryptedResult
		rec.ErrorDetail = ""
	})
}

func (r *MemoryTaskRepository) WriteError(ctx context.Context, key domain.TaskKey, code domain.ErrorCode) error {
	return r.transition(key, func(rec *domain.TaskRecord) {
		rec.Status = domain.TaskStatusError
		rec.Result = ""
		rec.ErrorDetail = code
	})
}

func (r *MemoryTaskRepository) transition(key domain.TaskKey, apply func(*domain.TaskRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[key]
	if !ok || rec.Status != domain.TaskStatusProcessing {
		return domain.ErrNotFound
	}
	apply(rec)
	rec.LastAccessed = r.now()
	return nil
}

func (r *MemoryTaskRepository) Touch(ctx context.Context, key domain.TaskKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.LastAccessed = r.now()
	return nil
}

func (r *MemoryTaskRepository) EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, rec := range r.tasks {
		if rec.LastAccessed.Before(cutoff) {
			delete(r.tasks, key)
			n++
		}
	}
	return n, nil
}

func (r *MemoryTaskRepository) Clear(ctx context.Context, clientID string, suffix *domain.KeySuffix) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if suffix != nil {
		key := domain.TaskKey{ClientID: clientID, ContentHash: suffix.ContentHash, Type: suffix.Type}
		if _, ok := r.tasks[key]; !ok {
			return 0, nil
		}
		delete(r.tasks, key)
		return 1, nil
	}
	var n int64
	for key := range r.tasks {
		if key.ClientID == clientID {
			delete(r.tasks, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows.
func (r *MemoryTaskRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

var _ domain.TaskRepository = (*MemoryTaskRepository)(nil)
