// Package llm submits prompts to the BigModel asynchronous chat completion
// API and polls each job until it reaches a terminal state.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
)

var (
	// ErrMissingAPIKey indicates that the client was configured without credentials.
	ErrMissingAPIKey = errors.New("llm: api key is required")
	// ErrLLMFailure covers transport errors, failed jobs and unusable output.
	ErrLLMFailure = errors.New("llm: completion failed")
	// ErrTimeout is returned when a job outlives the configured maximum wait.
	ErrTimeout = errors.New("llm: completion timed out")
)

// Job states reported by the async API.
const (
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFail       = "FAIL"
	StatusFailed     = "FAILED"
)

// Options configures the completion client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// PollInterval is the fixed delay between result polls. Defaults to 1s.
	PollInterval time.Duration
	// MaxWait bounds the total time spent polling one job. Zero waits
	// indefinitely.
	MaxWait        time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the async completion API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type submitRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type submitResponse struct {
	ID         string `json:"id"`
	TaskStatus string `json:"task_status"`
}

type resultResponse struct {
	ID         string `json:"id"`
	TaskStatus string `json:"task_status"`
	Choices    []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://open.bigmodel.cn/api/paas/v4"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "glm-4-plus"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	maxWait := opts.MaxWait
	if maxWait < 0 {
		maxWait = 0
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Complete submits prompt, waits for the job and post-processes the output
// for taskType.
func (c *Client) Complete(ctx context.Context, prompt string, taskType domain.TaskType) (string, error) {
	id, err := c.Submit(ctx, prompt)
	if err != nil {
		return "", err
	}
	raw, err := c.Wait(ctx, id)
	if err != nil {
		return "", err
	}
	return PostProcess(taskType, raw)
}

// Submit creates an async completion job and returns its id.
func (c *Client) Submit(ctx context.Context, prompt string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	payload := submitRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrLLMFailure, err)
	}
	var decoded submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/async/chat/completions", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("%w: submit returned no job id", ErrLLMFailure)
	}
	if isFailed(decoded.TaskStatus) {
		return "", fmt.Errorf("%w: job %s rejected", ErrLLMFailure, decoded.ID)
	}
	c.logger.Debug().Str("job_id", decoded.ID).Str("model", c.model).Msg("llm job submitted")
	return decoded.ID, nil
}

// Poll fetches the current state of job id once. content is set only when
// the job succeeded.
func (c *Client) Poll(ctx context.Context, id string) (status, content string, err error) {
	var decoded resultResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/async-result/"+url.PathEscape(id), nil, &decoded); err != nil {
		return "", "", err
	}
	status = strings.ToUpper(strings.TrimSpace(decoded.TaskStatus))
	if status == StatusSuccess {
		if len(decoded.Choices) == 0 {
			return "", "", fmt.Errorf("%w: job %s succeeded without choices", ErrLLMFailure, id)
		}
		content = decoded.Choices[0].Message.Content
	}
	return status, content, nil
}

// Wait polls job id at the fixed interval until it succeeds or fails.
func (c *Client) Wait(ctx context.Context, id string) (string, error) {
	start := time.Now()
	var deadline <-chan time.Time
	if c.maxWait > 0 {
		timer := time.NewTimer(c.maxWait)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		status, content, err := c.Poll(ctx, id)
		if err != nil {
			return "", err
		}
		switch {
		case status == StatusSuccess:
			c.logger.Debug().Str("job_id", id).Int("polls", attempt).Dur("elapsed", time.Since(start)).Msg("llm job succeeded")
			return content, nil
		case isFailed(status):
			return "", fmt.Errorf("%w: job %s reported %s", ErrLLMFailure, id, status)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("llm: wait for job %s: %w", id, ctx.Err())
		case <-deadline:
			return "", fmt.Errorf("%w: job %s after %s", ErrTimeout, id, c.maxWait)
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrLLMFailure, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("llm: http request: %w", ctx.Err())
		}
		return fmt.Errorf("%w: http request: %v", ErrLLMFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrLLMFailure, err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return fmt.Errorf("%w: %s (%s)", ErrLLMFailure, detail.Error.Message, detail.Error.Code)
		}
		return fmt.Errorf("%w: status %d: %s", ErrLLMFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrLLMFailure, err)
	}
	return nil
}

func isFailed(status string) bool {
	status = strings.ToUpper(strings.TrimSpace(status))
	return status == StatusFail || status == StatusFailed
}
