// Package client implements the tab-side request coordinator: it issues
// generation requests with fresh request ids, guarantees at most one request
// is in flight, cancels abandoned work on both ends, and filters out stale
// responses so they are never rendered.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soradev/hearth/internal/model/chat"
	"github.com/soradev/hearth/internal/protocol"
)

// Sentinel errors for coordinator operations.
var (
	// ErrEmptyMessage is returned when the message is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotConnected is returned when Send is called before Connect.
	ErrNotConnected = errors.New("not connected to server")
	// ErrCancelled marks an intentional abort. It is not a failure: callers
	// swallow it rather than showing an error.
	ErrCancelled = errors.New("request cancelled")
	// ErrStaleResponse marks a response that lost to a newer request. Never
	// shown to the user; callers drop it.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrServerFailure wraps a generation failure reported by the server.
	ErrServerFailure = errors.New("server generation failed")
)

// Turn is one rendered response.
type Turn struct {
	SessionID     string
	CharacterName string
	RequestID     string
	NeedsStarter  bool
	Response      string
	Emotion       string
	Sentiment     string
	Metadata      map[string]string
}

type pendingRequest struct {
	requestID string
	cancel    context.CancelFunc
}

// Coordinator drives generation requests for one tab.
type Coordinator struct {
	baseURL    string
	httpClient *http.Client
	tab        *TabState
	smoothing  time.Duration

	counter   atomic.Int64
	connected atomic.Bool

	mu       sync.Mutex
	latestID string
	pending  *pendingRequest
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Coordinator) { c.httpClient = hc }
}

// WithSmoothing adds an artificial delay before rendering, for a more
// natural typing rhythm. Staleness is re-checked after the delay because the
// latest pointer may advance while waiting.
func WithSmoothing(d time.Duration) Option {
	return func(c *Coordinator) { c.smoothing = d }
}

// New builds a coordinator for one tab.
func New(baseURL string, tab *TabState, opts ...Option) *Coordinator {
	c := &Coordinator{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		tab:        tab,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect verifies the server is reachable. Send requires a successful
// Connect first.
func (c *Coordinator) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	c.connected.Store(true)
	return nil
}

// GenerateRequestID mints a new request id, advances the per-session
// counter, and sets the id as the session's latest pointer. Ids order
// totally by counter within a session.
func (c *Coordinator) GenerateRequestID() string {
	n := c.counter.Add(1)
	id := fmt.Sprintf("%s:%s:%d:%d", c.tab.SessionID(), c.tab.Character(), n, time.Now().UnixMilli())

	c.mu.Lock()
	c.latestID = id
	c.mu.Unlock()
	return id
}

// IsStale reports whether requestID is no longer the session's latest. A
// stale response must never be rendered, even if it completes successfully.
func (c *Coordinator) IsStale(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return requestID != c.latestID
}

// CancelPending aborts the in-flight request, if any: the local network
// operation stops immediately, and the server is notified in the background
// to cancel inference. Notification failures are swallowed, since the
// request may already have finished. Idempotent.
func (c *Coordinator) CancelPending() {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()

	if p == nil {
		return
	}

	p.cancel()
	go c.notifyCancel(p.requestID)
}

// notifyCancel is the detached best-effort server notification. Observed
// only for logging; never joined by the caller.
func (c *Coordinator) notifyCancel(requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"sessionId": c.tab.SessionID(),
		"requestId": requestID,
	})
	if err != nil {
		log.Printf("[client] marshal cancel notice: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/cancel", bytes.NewReader(body))
	if err != nil {
		log.Printf("[client] build cancel notice: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[client] cancel notice for %s: %v", requestID, err)
		return
	}
	resp.Body.Close()
}

// begin cancels any prior request, mints the id, and registers the
// cancellation handle for the new one.
func (c *Coordinator) begin(ctx context.Context) (string, context.Context, error) {
	if !c.connected.Load() {
		return "", nil, ErrNotConnected
	}

	c.CancelPending()
	requestID := c.GenerateRequestID()

	reqCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.pending = &pendingRequest{requestID: requestID, cancel: cancel}
	c.mu.Unlock()

	return requestID, reqCtx, nil
}

// finish discards the cancellation handle once the request reached a
// terminal status, unless a newer request already replaced it.
func (c *Coordinator) finish(requestID string) {
	c.mu.Lock()
	if c.pending != nil && c.pending.requestID == requestID {
		c.pending.cancel()
		c.pending = nil
	}
	c.mu.Unlock()
}

// Send issues one blocking generation turn. The message must be non-empty
// after trimming. Any prior pending request is cancelled first, so at most
// one request is ever outstanding. A stale result returns ErrStaleResponse;
// an intentional abort returns ErrCancelled; neither is a failure to show.
func (c *Coordinator) Send(ctx context.Context, message string) (*Turn, error) {
	message = trimMessage(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	requestID, reqCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.finish(requestID)

	payload := chat.TurnRequest{
		Message:       message,
		SessionID:     c.tab.SessionID(),
		CharacterName: c.tab.Character(),
		RequestID:     requestID,
	}

	resp, err := c.post(reqCtx, "/api/chat", payload)
	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrServerFailure, resp.StatusCode, bytes.TrimSpace(errBody))
	}

	var turnResp chat.TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&turnResp); err != nil {
		return nil, c.classify(err)
	}

	return c.finalize(requestID, Turn{
		SessionID:     turnResp.SessionID,
		CharacterName: turnResp.CharacterName,
		RequestID:     turnResp.RequestID,
		NeedsStarter:  turnResp.NeedsStarter,
		Response:      turnResp.Response,
		Emotion:       turnResp.Emotion,
		Sentiment:     turnResp.Sentiment,
		Metadata:      turnResp.Metadata,
	})
}

// SendStream issues one streaming generation turn and reassembles the
// response through the protocol decoder. Frames advance a small state
// machine: only a done frame finalizes the pending message payload.
func (c *Coordinator) SendStream(ctx context.Context, message string) (*Turn, error) {
	message = trimMessage(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	requestID, reqCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.finish(requestID)

	payload := chat.TurnRequest{
		Message:       message,
		SessionID:     c.tab.SessionID(),
		CharacterName: c.tab.Character(),
		RequestID:     requestID,
	}

	resp, err := c.post(reqCtx, "/api/chat/stream", payload)
	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrServerFailure, resp.StatusCode, bytes.TrimSpace(errBody))
	}

	turn, err := c.consumeStream(resp.Body, requestID)
	if err != nil {
		return nil, c.classify(err)
	}

	return c.finalize(requestID, turn)
}

// consumeStream runs the frame state machine: awaiting-message accepts
// connected and message frames, awaiting-done accepts only the terminal
// frames. A message without a following done never finalizes.
func (c *Coordinator) consumeStream(body io.Reader, requestID string) (Turn, error) {
	decoder := protocol.NewDecoder(body)

	var pendingMessage *protocol.MessagePayload
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			return Turn{}, fmt.Errorf("%w: stream ended without done frame", ErrServerFailure)
		}
		if err != nil {
			return Turn{}, err
		}

		switch frame.Type {
		case protocol.EventConnected:
			// Informational only.
			if p, err := frame.Connected(); err == nil {
				log.Printf("[client] stream connected session=%s request=%s", p.SessionID, p.RequestID)
			}
		case protocol.EventMessage:
			p, err := frame.Message()
			if err != nil {
				log.Printf("[client] bad message frame: %v", err)
				continue
			}
			pendingMessage = &p
		case protocol.EventDone:
			if pendingMessage == nil {
				return Turn{}, fmt.Errorf("%w: done frame without message", ErrServerFailure)
			}
			return Turn{
				SessionID: pendingMessage.SessionID,
				RequestID: requestID,
				Response:  pendingMessage.Response,
				Emotion:   pendingMessage.Emotion,
				Sentiment: pendingMessage.Sentiment,
				Metadata:  pendingMessage.Metadata,
			}, nil
		case protocol.EventError:
			p, err := frame.ErrorMessage()
			if err != nil {
				return Turn{}, fmt.Errorf("%w: unreadable error frame", ErrServerFailure)
			}
			return Turn{}, fmt.Errorf("%w: %s", ErrServerFailure, p.Error)
		default:
			log.Printf("[client] ignoring unknown frame type %q", frame.Type)
		}
	}
}

// finalize applies the staleness checks: once on arrival and, when a
// smoothing delay is configured, again after it, because the latest pointer
// may advance during the wait.
func (c *Coordinator) finalize(requestID string, turn Turn) (*Turn, error) {
	if c.IsStale(requestID) {
		log.Printf("[client] discarding stale response for %s", requestID)
		return nil, ErrStaleResponse
	}

	if c.smoothing > 0 {
		time.Sleep(c.smoothing)
		if c.IsStale(requestID) {
			log.Printf("[client] discarding response for %s, superseded during smoothing delay", requestID)
			return nil, ErrStaleResponse
		}
	}

	return &turn, nil
}

// classify maps transport errors onto the coordinator's taxonomy: an
// intentional abort is ErrCancelled, everything else surfaces as-is.
func (c *Coordinator) classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

func trimMessage(message string) string {
	return strings.TrimSpace(message)
}

func (c *Coordinator) post(ctx context.Context, path string, payload chat.TurnRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}
