package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/adapter/repo"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/envelope"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/http/handlers"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/providers/llm"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/service/submission"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/worker"
)

type pageText []string

func (p pageText) ExtractText(ctx context.Context, pages []domain.Page) (string, error) {
	var out string
	for i := range pages {
		out += "\n----page " + string(rune('1'+i)) + "----\n" + p[i]
	}
	return out, nil
}

type cannedModel string

func (m cannedModel) Complete(ctx context.Context, prompt string, taskType domain.TaskType) (string, error) {
	return llm.PostProcess(taskType, string(m))
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, out
}

func TestDocSubmissionEndToEnd(t *testing.T) {
	logger := zerolog.New(io.Discard)
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	codec, err := envelope.NewCodec(priv)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	pubPEM, err := codec.PublicKeyPEM()
	if err != nil {
		t.Fatalf("PublicKeyPEM: %v", err)
	}

	store := repo.NewMemoryTaskRepository(nil)
	queue := worker.NewQueue()
	model := cannedModel(`<think>reading</think>{"title":"ID Card","tags":["ID"],"description":"...","kv":{"Name":"Jane","DOB":"1990"},"related":[]}`)
	pipeline := worker.NewPipeline(store, pageText{"Name: Jane", "DOB: 1990"}, model, logger)
	pool := worker.NewPool(queue, pipeline, 2, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	app := handlers.NewApp(submission.NewService(store, codec, queue, logger), pubPEM, 0, logger)
	srv := httptest.NewServer(NewRouter(app, logger, Options{AllowedOrigins: []string{"*"}, RateLimitPerMin: 100}))
	defer srv.Close()

	aesKey := make([]byte, 32)
	if _, err := rand.Read(aesKey); err != nil {
		t.Fatalf("rand: %v", err)
	}
	content, err := envelope.Encrypt([]byte(`{"to_process":["cGFnZTE=","cGFnZTI="],"file_lib":[]}`), aesKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	wrapped, err := envelope.WrapKey(codec.PublicKey(), aesKey)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	hash := envelope.ContentHash(content)
	submit := map[string]any{
		"client_id":   "client-1",
		"type":        "doc",
		"SHA256":      hash,
		"has_content": true,
		"content":     content,
		"aes_key":     wrapped,
	}

	code, body := post(t, srv, "/process", submit)
	if code != http.StatusAccepted || body["status"] != "processing" {
		t.Fatalf("first submit = %d %v", code, body)
	}

	poll := map[string]any{"client_id": "client-1", "type": "doc", "SHA256": hash, "has_content": false}
	deadline := time.Now().Add(3 * time.Second)
	for body["status"] == "processing" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		code, body = post(t, srv, "/process", poll)
	}
	if code != http.StatusOK || body["status"] != "completed" {
		t.Fatalf("final = %d %v", code, body)
	}

	plain, err := envelope.Decrypt(body["result"].(string), aesKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	var result struct {
		Title string            `json:"title"`
		KV    map[string]string `json:"kv"`
	}
	if err := json.Unmarshal(plain, &result); err != nil {
		t.Fatalf("result json: %v", err)
	}
	if result.Title != "ID Card" || len(result.KV) != 2 || result.KV["Name"] != "Jane" || result.KV["DOB"] != "1990" {
		t.Fatalf("result = %+v", result)
	}

	code, body = post(t, srv, "/clear", map[string]any{"client_id": "client-1"})
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("clear = %d %v", code, body)
	}
	code, body = post(t, srv, "/process", poll)
	if code != http.StatusBadRequest || body["error_detail"] != "TASK_NOT_FOUND" {
		t.Fatalf("after clear = %d %v", code, body)
	}
}

func TestPublicRoutes(t *testing.T) {
	logger := zerolog.New(io.Discard)
	app := handlers.NewApp(nil, []byte("pem"), 0, logger)
	srv := httptest.NewServer(NewRouter(app, logger, Options{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/check_status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check_status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}

	resp, err = srv.Client().Get(srv.URL + "/process")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /process = %d, want 405", resp.StatusCode)
	}
}
