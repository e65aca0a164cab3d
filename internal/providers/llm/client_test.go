package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	body, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// fakeAPI serves one submitted job whose poll results are scripted.
type fakeAPI struct {
	mu        sync.Mutex
	submitted submitRequest
	authz     string
	statuses  []string
	content   string
	polls     int
}

func (f *fakeAPI) transport() http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/async/chat/completions"):
			f.authz = req.Header.Get("Authorization")
			if err := json.NewDecoder(req.Body).Decode(&f.submitted); err != nil {
				return jsonResponse(http.StatusBadRequest, map[string]any{}), nil
			}
			return jsonResponse(http.StatusOK, map[string]any{"id": "job-1", "task_status": "PROCESSING"}), nil
		case req.Method == http.MethodGet && strings.HasSuffix(req.URL.Path, "/async-result/job-1"):
			status := f.statuses[min(f.polls, len(f.statuses)-1)]
			f.polls++
			payload := map[string]any{"id": "job-1", "task_status": status}
			if status == StatusSuccess {
				payload["choices"] = []any{map[string]any{"message": map[string]any{"role": "assistant", "content": f.content}}}
			}
			return jsonResponse(http.StatusOK, payload), nil
		}
		return jsonResponse(http.StatusNotFound, map[string]any{"error": map[string]any{"code": "404", "message": "no route"}}), nil
	})
}

func newTestClient(t *testing.T, api *fakeAPI, maxWait time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:       "test-key",
		BaseURL:      "https://llm.example.com/api/paas/v4/",
		PollInterval: time.Millisecond,
		MaxWait:      maxWait,
		HTTPClient:   &http.Client{Transport: api.transport()},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCompleteSuccessFlattensKV(t *testing.T) {
	api := &fakeAPI{
		statuses: []string{StatusProcessing, StatusProcessing, StatusSuccess},
		content:  "<think>\nreasoning\n</think>{\"title\":\"Invoice\",\"kv\":{\"buyer\":{\"name\":\"ACME\"},\"items\":[1.50,2]}}",
	}
	client := newTestClient(t, api, 0)

	got, err := client.Complete(context.Background(), "prompt text", domain.TaskTypeDoc)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := `{"kv":{"buyer.name":"ACME","items.1":1.50,"items.2":2},"title":"Invoice"}`
	if got != want {
		t.Fatalf("result mismatch:\n got %s\nwant %s", got, want)
	}
	if api.polls != 3 {
		t.Fatalf("polls = %d, want 3", api.polls)
	}
	if api.authz != "Bearer test-key" {
		t.Fatalf("authorization = %q", api.authz)
	}
	if api.submitted.Model != "glm-4-plus" || api.submitted.ResponseFormat.Type != "json_object" {
		t.Fatalf("unexpected submit payload %#v", api.submitted)
	}
	if len(api.submitted.Messages) != 1 || api.submitted.Messages[0].Content != "prompt text" {
		t.Fatalf("unexpected messages %#v", api.submitted.Messages)
	}
}

func TestCompleteFillPassesThrough(t *testing.T) {
	api := &fakeAPI{statuses: []string{StatusSuccess}, content: `{"fields":{"a":{"b":1}}}`}
	got, err := newTestClient(t, api, 0).Complete(context.Background(), "p", domain.TaskTypeFill)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"fields":{"a":{"b":1}}}` {
		t.Fatalf("fill output modified: %s", got)
	}
}

func TestCompleteFailedJob(t *testing.T) {
	for _, status := range []string{StatusFail, StatusFailed} {
		t.Run(status, func(t *testing.T) {
			api := &fakeAPI{statuses: []string{StatusProcessing, status}}
			_, err := newTestClient(t, api, 0).Complete(context.Background(), "p", domain.TaskTypeDoc)
			if !errors.Is(err, ErrLLMFailure) {
				t.Fatalf("err = %v, want ErrLLMFailure", err)
			}
		})
	}
}

func TestCompleteMaxWait(t *testing.T) {
	api := &fakeAPI{statuses: []string{StatusProcessing}}
	_, err := newTestClient(t, api, 20*time.Millisecond).Complete(context.Background(), "p", domain.TaskTypeForm)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	api := &fakeAPI{statuses: []string{StatusProcessing}}
	client := newTestClient(t, api, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Wait(ctx, "job-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrLLMFailure) || errors.Is(err, ErrTimeout) {
		t.Fatalf("cancellation misclassified: %v", err)
	}
}

func TestSubmitErrors(t *testing.T) {
	noKey, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := noKey.Submit(context.Background(), "p"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}

	client, err := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": "1002", "message": "invalid token"}}), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Submit(context.Background(), "p")
	if !errors.Is(err, ErrLLMFailure) || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("err = %v, want ErrLLMFailure with detail", err)
	}
}
