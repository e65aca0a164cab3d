// Package submission implements the dedup, decrypt and enqueue protocol
// behind the process endpoint, plus client initiated cache clears.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/envelope"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
)

// Opener verifies and decrypts a submitted envelope.
type Opener interface {
	Open(env envelope.Envelope) (plaintext, key []byte, err error)
}

// Enqueuer accepts tasks for the worker pool.
type Enqueuer interface {
	Push(task domain.InFlightTask) error
}

// Request is a validated-at-the-edge submission. Content and WrappedKey are
// only read when HasContent is set.
type Request struct {
	ClientID    string
	Type        domain.TaskType
	ContentHash string
	HasContent  bool
	Content     string
	WrappedKey  string
}

func (r Request) key() domain.TaskKey {
	return domain.TaskKey{ClientID: r.ClientID, ContentHash: r.ContentHash, Type: r.Type}
}

// Outcome is what the caller observes for its key.
type Outcome struct {
	Status      domain.TaskStatus
	Result      string
	ErrorDetail domain.ErrorCode
}

// ClearRequest removes all rows of a client, or one row when both
// ContentHash and Type are given.
type ClearRequest struct {
	ClientID    string
	ContentHash string
	Type        domain.TaskType
}

type Service struct {
	repo   domain.TaskRepository
	codec  Opener
	queue  Enqueuer
	logger infra.Logger
}

func NewService(repo domain.TaskRepository, codec Opener, queue Enqueuer, logger infra.Logger) *Service {
	return &Service{repo: repo, codec: codec, queue: queue, logger: logger}
}

// Submit returns the cached outcome for the request key, or verifies,
// decrypts and queues the payload when no row exists yet. Synchronous
// rejections are returned as *domain.TaskError and never create a row.
func (s *Service) Submit(ctx context.Context, req Request) (Outcome, error) {
	if err := validate(req); err != nil {
		return Outcome{}, err
	}
	key := req.key()
	logger := s.logger.With().
		Str("client_id", key.ClientID).
		Str("task_type", string(key.Type)).
		Str("sha256", key.ContentHash).
		Logger()

	rec, err := s.repo.Lookup(ctx, key)
	switch {
	case err == nil:
		return outcomeOf(rec), nil
	case errors.Is(err, domain.ErrNotFound):
	default:
		logger.Error().Err(err).Msg("submission: lookup failed")
		return Outcome{}, domain.NewTaskError(domain.CodeDatabaseError, err)
	}

	if !req.HasContent {
		return Outcome{}, domain.NewTaskError(domain.CodeTaskNotFound, domain.ErrNotFound)
	}

	plain, aesKey, err := s.codec.Open(envelope.Envelope{
		Content:     req.Content,
		WrappedKey:  req.WrappedKey,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		code := openFailureCode(err)
		logger.Warn().Err(err).Str("error_detail", string(code)).Msg("submission: envelope rejected")
		return Outcome{}, domain.NewTaskError(code, err)
	}

	content, err := domain.ParseContent(key.Type, plain)
	if err != nil {
		logger.Warn().Err(err).Msg("submission: payload rejected")
		return Outcome{}, domain.NewTaskError(domain.CodeInvalidJSON, err)
	}

	if err := s.repo.InsertProcessing(ctx, key); err != nil {
		if errors.Is(err, domain.ErrDuplicateTask) {
			// A concurrent submission of the same key won the insert.
			return s.current(ctx, key)
		}
		logger.Error().Err(err).Msg("submission: insert failed")
		return Outcome{}, domain.NewTaskError(domain.CodeDatabaseError, err)
	}

	if err := s.queue.Push(domain.InFlightTask{Key: key, SymmetricKey: aesKey, Content: content}); err != nil {
		logger.Error().Err(err).Msg("submission: enqueue failed")
		if werr := s.repo.WriteError(ctx, key, domain.CodeProcessingError); werr != nil {
			logger.Error().Err(werr).Msg("submission: write error failed")
		}
		return Outcome{}, domain.NewTaskError(domain.CodeProcessingError, err)
	}
	logger.Info().Msg("submission: task queued")
	return Outcome{Status: domain.TaskStatusProcessing}, nil
}

// Clear deletes cached rows and returns how many were removed.
func (s *Service) Clear(ctx context.Context, req ClearRequest) (int64, error) {
	if req.ClientID == "" {
		return 0, domain.NewTaskError(domain.CodeMissingRequiredField, errors.New("client_id is required"))
	}
	var suffix *domain.KeySuffix
	if req.ContentHash != "" && req.Type != "" {
		suffix = &domain.KeySuffix{ContentHash: req.ContentHash, Type: req.Type}
	}
	n, err := s.repo.Clear(ctx, req.ClientID, suffix)
	if err != nil {
		s.logger.Error().Err(err).Str("client_id", req.ClientID).Msg("submission: clear failed")
		return 0, domain.NewTaskError(domain.CodeCacheClearFailed, err)
	}
	s.logger.Info().Str("client_id", req.ClientID).Int64("removed", n).Bool("single", suffix != nil).Msg("submission: cache cleared")
	return n, nil
}

func (s *Service) current(ctx context.Context, key domain.TaskKey) (Outcome, error) {
	rec, err := s.repo.Lookup(ctx, key)
	switch {
	case err == nil:
		return outcomeOf(rec), nil
	case errors.Is(err, domain.ErrNotFound):
		// Cleared between the insert attempt and the re-read.
		return Outcome{Status: domain.TaskStatusProcessing}, nil
	default:
		return Outcome{}, domain.NewTaskError(domain.CodeDatabaseError, err)
	}
}

func validate(req Request) error {
	switch {
	case req.ClientID == "" || req.ContentHash == "" || req.Type == "":
		return domain.NewTaskError(domain.CodeMissingRequiredField, errors.New("client_id, type and SHA256 are required"))
	case !req.Type.Valid():
		return domain.NewTaskError(domain.CodeInvalidType, fmt.Errorf("unsupported type %q", req.Type))
	case req.HasContent && req.Content == "":
		return domain.NewTaskError(domain.CodeMissingContent, errors.New("content is required when has_content is true"))
	}
	return nil
}

func openFailureCode(err error) domain.ErrorCode {
	switch {
	case errors.Is(err, envelope.ErrIntegrity):
		return domain.CodeSHA256Mismatch
	case errors.Is(err, envelope.ErrKeyUnwrap):
		return domain.CodeRSADecryptionFailed
	case errors.Is(err, envelope.ErrPayloadDecrypt):
		return domain.CodeAESDecryptionFailed
	default:
		return domain.CodeProcessingError
	}
}

func outcomeOf(rec *domain.TaskRecord) Outcome {
	switch rec.Status {
	case domain.TaskStatusCompleted:
		return Outcome{Status: rec.Status, Result: rec.Result}
	case domain.TaskStatusError:
		return Outcome{Status: rec.Status, ErrorDetail: rec.ErrorDetail}
	default:
		return Outcome{Status: domain.TaskStatusProcessing}
	}
}
