package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/sqlinline"
)

// TaskRepositoryPG implements domain.TaskRepository on PostgreSQL.
type TaskRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTaskRepository creates a task repository backed by PostgreSQL.
func NewTaskRepository(sql infra.SQLExecutor) *TaskRepositoryPG {
	return &TaskRepositoryPG{sql: sql}
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, sql infra.SQLExecutor) error {
	for _, stmt := range sqlinline.SchemaStatements {
		if _, err := sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Lookup fetches the row for key and refreshes last_accessed.
func (r *TaskRepositoryPG) Lookup(ctx context.Context, key domain.TaskKey) (*domain.TaskRecord, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QLookupTask, key.ClientID, key.ContentHash, string(key.Type))
	rec := domain.TaskRecord{Key: key}
	var status, errorDetail string
	if err := row.Scan(&status, &rec.Result, &errorDetail, &rec.CreatedAt, &rec.LastAccessed); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lookup task: %w", err)
	}
	rec.Status = domain.TaskStatus(status)
	rec.ErrorDetail = domain.ErrorCode(errorDetail)
	return &rec, nil
}

// InsertProcessing creates the processing row. The insert is a no-op when a
// row exists, which is reported as domain.ErrDuplicateTask.
func (r *TaskRepositoryPG) InsertProcessing(ctx context.Context, key domain.TaskKey) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QInsertProcessingTask, key.ClientID, key.ContentHash, string(key.Type))
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrDuplicateTask
		}
		return fmt.Errorf("insert task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateTask
	}
	return nil
}

func (r *TaskRepositoryPG) WriteResult(ctx context.Context, key domain.TaskKey, encryptedResult string) error {
	return r.transition(ctx, sqlinline.QWriteTaskResult, key, encryptedResult)
}

func (r *TaskRepositoryPG) WriteError(ctx context.Context, key domain.TaskKey, code domain.ErrorCode) error {
	return r.transition(ctx, sqlinline.QWriteTaskError, key, string(code))
}

func (r *TaskRepositoryPG) transition(ctx context.Context, query string, key domain.TaskKey, value string) error {
	tag, err := r.sql.Exec(ctx, query, key.ClientID, key.ContentHash, string(key.Type), value)
	if err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepositoryPG) Touch(ctx context.Context, key domain.TaskKey) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QTouchTask, key.ClientID, key.ContentHash, string(key.Type))
	if err != nil {
		return fmt.Errorf("touch task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepositoryPG) EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QEvictTasksBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TaskRepositoryPG) Clear(ctx context.Context, clientID string, suffix *domain.KeySuffix) (int64, error) {
	var (
		query = sqlinline.QClearClientTasks
		args  = []any{clientID}
	)
	if suffix != nil {
		query = sqlinline.QClearClientTask
		args = append(args, suffix.ContentHash, string(suffix.Type))
	}
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.TaskRepository = (*TaskRepositoryPG)(nil)
