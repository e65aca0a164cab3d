package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository(nil)

	if _, err := repo.Lookup(ctx, testKey); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Lookup on empty store: %v", err)
	}
	if err := repo.InsertProcessing(ctx, testKey); err != nil {
		t.Fatalf("InsertProcessing: %v", err)
	}
	if err := repo.InsertProcessing(ctx, testKey); !errors.Is(err, domain.ErrDuplicateTask) {
		t.Fatalf("second insert err = %v, want ErrDuplicateTask", err)
	}
	if err := repo.WriteResult(ctx, testKey, "cipher"); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	rec, err := repo.Lookup(ctx, testKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Status != domain.TaskStatusCompleted || rec.Result != "cipher" || rec.ErrorDetail != "" {
		t.Fatalf("unexpected record %#v", rec)
	}
	// Terminal rows do not transition again.
	if err := repo.WriteError(ctx, testKey, domain.CodeLLMFailure); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("WriteError on completed row err = %v", err)
	}
}

func TestMemoryRepositoryEviction(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	repo := NewMemoryTaskRepository(clock.Now)
	stale := domain.TaskKey{ClientID: "c", ContentHash: "old", Type: domain.TaskTypeDoc}
	fresh := domain.TaskKey{ClientID: "c", ContentHash: "new", Type: domain.TaskTypeDoc}

	if err := repo.InsertProcessing(ctx, stale); err != nil {
		t.Fatalf("insert stale: %v", err)
	}
	if err := repo.InsertProcessing(ctx, fresh); err != nil {
		t.Fatalf("insert fresh: %v", err)
	}
	clock.Advance(50 * time.Minute)
	if err := repo.Touch(ctx, fresh); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	clock.Advance(20 * time.Minute)

	n, err := repo.EvictOlderThan(ctx, clock.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("EvictOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("evicted %d rows, want 1", n)
	}
	if _, err := repo.Lookup(ctx, stale); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale row survived eviction")
	}
	if _, err := repo.Lookup(ctx, fresh); err != nil {
		t.Fatalf("touched row evicted: %v", err)
	}
}

func TestMemoryRepositoryLookupRefreshesAccess(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	repo := NewMemoryTaskRepository(clock.Now)
	if err := repo.InsertProcessing(ctx, testKey); err != nil {
		t.Fatalf("insert: %v", err)
	}
	clock.Advance(59 * time.Minute)
	if _, err := repo.Lookup(ctx, testKey); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if n, _ := repo.EvictOlderThan(ctx, clock.Now().Add(-time.Hour)); n != 0 {
		t.Fatalf("looked-up row was evicted")
	}
}

func TestMemoryRepositoryClear(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository(nil)
	keys := []domain.TaskKey{
		{ClientID: "a", ContentHash: "1", Type: domain.TaskTypeDoc},
		{ClientID: "a", ContentHash: "1", Type: domain.TaskTypeForm},
		{ClientID: "a", ContentHash: "2", Type: domain.TaskTypeDoc},
		{ClientID: "b", ContentHash: "1", Type: domain.TaskTypeDoc},
	}
	for _, k := range keys {
		if err := repo.InsertProcessing(ctx, k); err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}

	n, err := repo.Clear(ctx, "a", &domain.KeySuffix{ContentHash: "1", Type: domain.TaskTypeForm})
	if err != nil || n != 1 {
		t.Fatalf("Clear one = %d, %v", n, err)
	}
	n, err = repo.Clear(ctx, "a", nil)
	if err != nil || n != 2 {
		t.Fatalf("Clear all = %d, %v", n, err)
	}
	if repo.Len() != 1 {
		t.Fatalf("remaining rows = %d, want 1", repo.Len())
	}
	if n, _ := repo.Clear(ctx, "nobody", nil); n != 0 {
		t.Fatalf("clearing unknown client removed %d rows", n)
	}
}

func TestMemoryRepositoryConcurrentInsertSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository(nil)
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.InsertProcessing(ctx, testKey); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("%d inserts succeeded, want 1", got)
	}
}
