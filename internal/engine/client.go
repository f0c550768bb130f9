package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Sentinel errors for engine client operations.
var (
	// ErrNotRunning is returned when the engine is not reachable at the
	// configured endpoint.
	ErrNotRunning = errors.New("inference engine not running")
	// ErrConnectionTimeout is returned when the connection times out.
	ErrConnectionTimeout = errors.New("inference engine connection timeout")
	// ErrRequestFailed is returned when an API request fails.
	ErrRequestFailed = errors.New("inference engine request failed")
)

// Client is the HTTP implementation of Engine.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewClient builds a client for the engine at endpoint using the given model.
// The timeout applies to blocking calls only; streamed generations are bounded
// by context cancellation instead.
func NewClient(endpoint, model string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generatePayload struct {
	Model     string    `json:"model"`
	RequestID string    `json:"requestId"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
}

type generateChunk struct {
	Content  string            `json:"content"`
	Done     bool              `json:"done"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Ping verifies the engine answers at its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// Generate runs one blocking generation for req.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	resp, err := c.post(ctx, c.httpClient, req, false)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var chunk generateChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return Result{}, fmt.Errorf("decode engine response: %w", err)
	}
	if chunk.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrRequestFailed, chunk.Error)
	}

	return Result{Content: chunk.Content, Metadata: chunk.Metadata}, nil
}

// Stream runs one streaming generation for req. The engine emits
// newline-delimited JSON chunks; fn observes each fragment as it arrives.
func (c *Client) Stream(ctx context.Context, req Request, fn DeltaFunc) (Result, error) {
	// A dedicated client without a timeout: the blocking client's deadline
	// would cut long generations short. The caller's context bounds the
	// request lifetime instead.
	resp, err := c.post(ctx, &http.Client{}, req, true)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var content bytes.Buffer
	var metadata map[string]string

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Malformed JSON means the rest of the stream cannot be
			// trusted. Fail fast rather than reassemble garbage.
			return Result{}, fmt.Errorf("parse engine stream: %w", err)
		}
		if chunk.Error != "" {
			return Result{}, fmt.Errorf("%w: %s", ErrRequestFailed, chunk.Error)
		}

		content.WriteString(chunk.Content)
		if chunk.Metadata != nil {
			metadata = chunk.Metadata
		}

		if fn != nil {
			if err := fn(Delta{Content: chunk.Content, Done: chunk.Done}); err != nil {
				return Result{}, err
			}
		}
		if chunk.Done {
			break
		}

		if content.Len() > maxResponseSize {
			return Result{}, fmt.Errorf("%w: response exceeds %d bytes", ErrRequestFailed, maxResponseSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, c.classifyError(err)
	}

	return Result{Content: content.String(), Metadata: metadata}, nil
}

// Cancel forwards a cancel-by-request-id call. An unknown or finished id
// yields no error; only transport failures surface.
func (c *Client) Cancel(ctx context.Context, requestID string) error {
	body, err := json.Marshal(map[string]string{"requestId": requestID})
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/cancel", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyError(err)
	}
	defer resp.Body.Close()

	// 404/410 mean the engine no longer knows the id, which is fine.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: cancel status %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// Maximum reassembled response size (1 MB) to bound memory if the model
// generates without stopping.
const maxResponseSize = 1024 * 1024

func (c *Client) post(ctx context.Context, client *http.Client, req Request, stream bool) (*http.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	body, err := json.Marshal(generatePayload{
		Model:     c.model,
		RequestID: req.RequestID,
		Messages:  req.Messages,
		Stream:    stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		classified := c.classifyError(err)
		if errors.Is(classified, ErrNotRunning) {
			return nil, fmt.Errorf("%w at %s", ErrNotRunning, c.endpoint)
		}
		return nil, classified
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, bytes.TrimSpace(errBody))
	}

	return resp, nil
}

// classifyError maps transport errors onto the sentinel errors.
func (c *Client) classifyError(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: %v", ErrRequestFailed, err)
}
