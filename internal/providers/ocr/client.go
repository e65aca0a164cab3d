// Package ocr talks to the remote OCR service and fans page images out to it
// under a process-wide concurrency limit.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
)

// Options configures the OCR client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client posts a single image to {BaseURL}/ocr.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type ocrResponse struct {
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ocr: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// Recognize returns the recognized fragments of image joined by a space.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="page.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("ocr: build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("ocr: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("ocr: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return "", fmt.Errorf("ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocr: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ocr: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded ocrResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("ocr: decode response: %w", err)
	}
	if decoded.Results == nil {
		return "", errors.New("ocr: response has no results")
	}
	texts := make([]string, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		texts = append(texts, r.Text)
	}
	c.logger.Debug().
		Int("bytes", len(image)).
		Int("fragments", len(texts)).
		Dur("elapsed", time.Since(start)).
		Msg("ocr page recognized")
	return strings.Join(texts, " "), nil
}
