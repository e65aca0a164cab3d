package domain

import (
	"context"
	"time"
)

// TaskRepository is the durable task cache. Every mutation touches a single
// row identified by its TaskKey.
type TaskRepository interface {
	// Lookup returns the row for key and refreshes its last access time in
	// the same statement. ErrNotFound when absent.
	Lookup(ctx context.Context, key TaskKey) (*TaskRecord, error)
	// InsertProcessing creates a processing row, or returns ErrDuplicateTask
	// if any row already exists for key.
	InsertProcessing(ctx context.Context, key TaskKey) error
	// WriteResult moves a processing row to completed.
	WriteResult(ctx context.Context, key TaskKey, encryptedResult string) error
	// WriteError moves a processing row to error.
	WriteError(ctx context.Context, key TaskKey, code ErrorCode) error
	Touch(ctx context.Context, key TaskKey) error
	EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Clear removes every row of clientID, or a single row when suffix is set.
	Clear(ctx context.Context, clientID string, suffix *KeySuffix) (int64, error)
}
