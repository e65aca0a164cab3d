package worker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/adapter/repo"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/envelope"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/providers/llm"
)

var discardLogger = zerolog.New(io.Discard)

type fakeOCR struct {
	mu    sync.Mutex
	pages int
	err   error
}

func (f *fakeOCR) ExtractText(ctx context.Context, pages []domain.Page) (string, error) {
	f.mu.Lock()
	f.pages += len(pages)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	var b strings.Builder
	for i := range pages {
		fmt.Fprintf(&b, "\n----page %d----\ntext %d", i+1, i+1)
	}
	return b.String(), nil
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	result  string
	err     error
	panic   bool
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, taskType domain.TaskType) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return key
}

func insertTask(t *testing.T, store domain.TaskRepository, task domain.InFlightTask) {
	t.Helper()
	if err := store.InsertProcessing(context.Background(), task.Key); err != nil {
		t.Fatalf("InsertProcessing: %v", err)
	}
}

func TestPipelineDocEndToEnd(t *testing.T) {
	store := repo.NewMemoryTaskRepository(nil)
	ocr := &fakeOCR{}
	model := &fakeLLM{result: `{"title":"Passport","kv":{"Document Number":"123"}}`}
	pipeline := NewPipeline(store, ocr, model, discardLogger)

	key := newKey(t)
	task := domain.InFlightTask{
		Key:          domain.TaskKey{ClientID: "c1", ContentHash: "h1", Type: domain.TaskTypeDoc},
		SymmetricKey: key,
		Content:      domain.DocContent{Pages: []domain.Page{"aW1n", "aW1n"}},
	}
	insertTask(t, store, task)

	queue := NewQueue()
	pool := NewPool(queue, pipeline, 2, discardLogger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()
	if err := queue.Push(task); err != nil {
		t.Fatalf("Push: %v", err)
	}

	var rec *domain.TaskRecord
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, err := store.Lookup(context.Background(), task.Key)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if r.Status.Terminal() {
			rec = r
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if rec == nil {
		t.Fatal("task never reached a terminal state")
	}
	if rec.Status != domain.TaskStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", rec.Status, rec.ErrorDetail)
	}
	plain, err := envelope.Decrypt(rec.Result, key)
	if err != nil {
		t.Fatalf("Decrypt result: %v", err)
	}
	if string(plain) != model.result {
		t.Fatalf("decrypted result = %s", plain)
	}
	if ocr.pages != 2 {
		t.Fatalf("ocr saw %d pages, want 2", ocr.pages)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "----page 2----") {
		t.Fatalf("prompt missing OCR text: %v", model.prompts)
	}
}

func TestPipelineFillSkipsOCR(t *testing.T) {
	store := repo.NewMemoryTaskRepository(nil)
	ocr := &fakeOCR{}
	model := &fakeLLM{result: `{"Name":{"value":"A"}}`}
	task := domain.InFlightTask{
		Key:          domain.TaskKey{ClientID: "c1", ContentHash: "h2", Type: domain.TaskTypeFill},
		SymmetricKey: newKey(t),
		Content:      domain.FillContent{Form: []byte(`{"fields":["Name"]}`)},
	}
	insertTask(t, store, task)

	NewPipeline(store, ocr, model, discardLogger).Process(context.Background(), task)

	rec, err := store.Lookup(context.Background(), task.Key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Status != domain.TaskStatusCompleted {
		t.Fatalf("status = %s (%s)", rec.Status, rec.ErrorDetail)
	}
	if ocr.pages != 0 {
		t.Fatalf("fill task called OCR")
	}
	if !strings.Contains(model.prompts[0], `<form>  {"fields":["Name"]}</form>`) {
		t.Fatalf("fill prompt missing form: %s", model.prompts[0])
	}
}

func TestPipelineFailureCodes(t *testing.T) {
	cases := []struct {
		name    string
		typ     domain.TaskType
		content domain.Content
		ocr     *fakeOCR
		llm     *fakeLLM
		key     []byte
		want    domain.ErrorCode
	}{
		{
			name:    "ocr failure",
			typ:     domain.TaskTypeForm,
			content: domain.FormContent{Pages: []domain.Page{"aW1n"}},
			ocr:     &fakeOCR{err: errors.New("ocr down")},
			llm:     &fakeLLM{},
			want:    domain.CodeOCRFailure,
		},
		{
			name:    "llm failure",
			typ:     domain.TaskTypeDoc,
			content: domain.DocContent{Pages: []domain.Page{"aW1n"}},
			ocr:     &fakeOCR{},
			llm:     &fakeLLM{err: fmt.Errorf("%w: job failed", llm.ErrLLMFailure)},
			want:    domain.CodeLLMFailure,
		},
		{
			name:    "llm timeout",
			typ:     domain.TaskTypeDoc,
			content: domain.DocContent{Pages: []domain.Page{"aW1n"}},
			ocr:     &fakeOCR{},
			llm:     &fakeLLM{err: fmt.Errorf("%w: job j", llm.ErrTimeout)},
			want:    domain.CodeLLMTimeout,
		},
		{
			name:    "fill prompt construction",
			typ:     domain.TaskTypeFill,
			content: domain.FillContent{Form: []byte(`{"broken":`)},
			ocr:     &fakeOCR{},
			llm:     &fakeLLM{},
			want:    domain.CodeFillPromptFailed,
		},
		{
			name:    "panic",
			typ:     domain.TaskTypeDoc,
			content: domain.DocContent{Pages: []domain.Page{"aW1n"}},
			ocr:     &fakeOCR{},
			llm:     &fakeLLM{panic: true},
			want:    domain.CodeProcessingError,
		},
		{
			name:    "bad symmetric key",
			typ:     domain.TaskTypeDoc,
			content: domain.DocContent{Pages: []domain.Page{"aW1n"}},
			ocr:     &fakeOCR{},
			llm:     &fakeLLM{result: "{}"},
			key:     []byte("short"),
			want:    domain.CodeProcessingError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := repo.NewMemoryTaskRepository(nil)
			key := tc.key
			if key == nil {
				key = newKey(t)
			}
			task := domain.InFlightTask{
				Key:          domain.TaskKey{ClientID: "c", ContentHash: tc.name, Type: tc.typ},
				SymmetricKey: key,
				Content:      tc.content,
			}
			insertTask(t, store, task)

			NewPipeline(store, tc.ocr, tc.llm, discardLogger).Process(context.Background(), task)

			rec, err := store.Lookup(context.Background(), task.Key)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if rec.Status != domain.TaskStatusError || rec.ErrorDetail != tc.want {
				t.Fatalf("record = %s/%s, want error/%s", rec.Status, rec.ErrorDetail, tc.want)
			}
			if rec.Result != "" {
				t.Fatalf("error row carries a result")
			}
		})
	}
}

func TestPipelineCancelledTaskIsStillRecorded(t *testing.T) {
	store := repo.NewMemoryTaskRepository(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task := domain.InFlightTask{
		Key:          domain.TaskKey{ClientID: "c", ContentHash: "h", Type: domain.TaskTypeDoc},
		SymmetricKey: newKey(t),
		Content:      domain.DocContent{Pages: []domain.Page{"aW1n"}},
	}
	insertTask(t, store, task)

	NewPipeline(store, &fakeOCR{err: context.Canceled}, &fakeLLM{}, discardLogger).Process(ctx, task)

	rec, err := store.Lookup(context.Background(), task.Key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.ErrorDetail != domain.CodeProcessingError {
		t.Fatalf("error_detail = %s, want PROCESSING_ERROR", rec.ErrorDetail)
	}
}

func TestPipelineClearedRowIsNotRecreated(t *testing.T) {
	store := repo.NewMemoryTaskRepository(nil)
	task := domain.InFlightTask{
		Key:          domain.TaskKey{ClientID: "c", ContentHash: "h", Type: domain.TaskTypeFill},
		SymmetricKey: newKey(t),
		Content:      domain.FillContent{Form: []byte(`{}`)},
	}
	// No InsertProcessing: the row was cleared while the task was queued.
	NewPipeline(store, &fakeOCR{}, &fakeLLM{result: "{}"}, discardLogger).Process(context.Background(), task)
	if store.Len() != 0 {
		t.Fatalf("pipeline recreated a cleared row")
	}
}
