package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/envelope"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/prompt"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/providers/llm"
)

const defaultWriteTimeout = 10 * time.Second

// TextExtractor turns page images into the combined OCR text of a task.
type TextExtractor interface {
	ExtractText(ctx context.Context, pages []domain.Page) (string, error)
}

// Completer sends a prompt to the model and returns the post-processed
// result for the task type.
type Completer interface {
	Complete(ctx context.Context, prompt string, taskType domain.TaskType) (string, error)
}

// Pipeline processes one task: OCR for doc and form, prompt, completion,
// encryption and the terminal write.
type Pipeline struct {
	repo         domain.TaskRepository
	ocr          TextExtractor
	llm          Completer
	logger       infra.Logger
	writeTimeout time.Duration
}

func NewPipeline(repo domain.TaskRepository, ocr TextExtractor, completer Completer, logger infra.Logger) *Pipeline {
	return &Pipeline{repo: repo, ocr: ocr, llm: completer, logger: logger, writeTimeout: defaultWriteTimeout}
}

// Process runs task and writes exactly one terminal outcome for it. It never
// re-queues and never panics.
func (p *Pipeline) Process(ctx context.Context, task domain.InFlightTask) {
	logger := p.logger.With().
		Str("client_id", task.Key.ClientID).
		Str("task_type", string(task.Key.Type)).
		Str("sha256", task.Key.ContentHash).
		Logger()

	start := time.Now()
	result, err := p.safeRun(ctx, task)
	if err == nil {
		p.complete(ctx, logger, task, result)
		logger.Info().Dur("elapsed", time.Since(start)).Msg("worker: task completed")
		return
	}

	code := domain.CodeOf(err, domain.CodeProcessingError)
	if ctx.Err() != nil {
		code = domain.CodeProcessingError
	}
	logger.Error().Err(err).Str("error_detail", string(code)).Dur("elapsed", time.Since(start)).Msg("worker: task failed")
	p.fail(ctx, logger, task.Key, code)
}

func (p *Pipeline) safeRun(ctx context.Context, task domain.InFlightTask) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewTaskError(domain.CodeProcessingError, fmt.Errorf("panic: %v", r))
		}
	}()
	return p.run(ctx, task)
}

func (p *Pipeline) run(ctx context.Context, task domain.InFlightTask) (string, error) {
	if task.Content == nil {
		return "", domain.NewTaskError(domain.CodeProcessingError, errors.New("task has no content"))
	}
	req := prompt.Request{Type: task.Key.Type, FileLib: task.Content.Library()}
	switch c := task.Content.(type) {
	case domain.DocContent:
		text, err := p.ocr.ExtractText(ctx, c.Pages)
		if err != nil {
			return "", domain.NewTaskError(domain.CodeOCRFailure, err)
		}
		req.Text = text
	case domain.FormContent:
		text, err := p.ocr.ExtractText(ctx, c.Pages)
		if err != nil {
			return "", domain.NewTaskError(domain.CodeOCRFailure, err)
		}
		req.Text = text
	case domain.FillContent:
		req.Form = c.Form
	default:
		return "", domain.NewTaskError(domain.CodeProcessingError, fmt.Errorf("unexpected content %T", task.Content))
	}

	text, err := prompt.Build(req)
	if err != nil {
		return "", domain.NewTaskError(domain.PromptFailureCode(task.Key.Type), err)
	}

	raw, err := p.llm.Complete(ctx, text, task.Key.Type)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return "", domain.NewTaskError(domain.CodeLLMTimeout, err)
		}
		return "", domain.NewTaskError(domain.CodeLLMFailure, err)
	}

	sealed, err := envelope.Encrypt([]byte(raw), task.SymmetricKey)
	if err != nil {
		return "", domain.NewTaskError(domain.CodeProcessingError, err)
	}
	return sealed, nil
}

// writeContext survives shutdown cancellation so a finished task is still
// recorded.
func (p *Pipeline) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
}

func (p *Pipeline) complete(ctx context.Context, logger infra.Logger, task domain.InFlightTask, sealed string) {
	wctx, cancel := p.writeContext(ctx)
	defer cancel()
	err := p.repo.WriteResult(wctx, task.Key, sealed)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn().Msg("worker: task row gone before result was written")
	default:
		logger.Error().Err(err).Msg("worker: write result failed")
		if err := p.repo.WriteError(wctx, task.Key, domain.CodeDatabaseError); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Error().Err(err).Msg("worker: write error failed")
		}
	}
}

func (p *Pipeline) fail(ctx context.Context, logger infra.Logger, key domain.TaskKey, code domain.ErrorCode) {
	wctx, cancel := p.writeContext(ctx)
	defer cancel()
	err := p.repo.WriteError(wctx, key, code)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn().Msg("worker: task row gone before error was written")
	default:
		logger.Error().Err(err).Msg("worker: write error failed")
	}
}
