package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// StarterResult mirrors the server's starter reply.
type StarterResult struct {
	Starter     string `json:"starter"`
	SkipStarter bool   `json:"skipStarter"`
}

// FetchStarter asks for the active character's opening message. The server
// gates starters globally per character; force bypasses the gate for this
// session only.
func (c *Coordinator) FetchStarter(ctx context.Context, force bool) (StarterResult, error) {
	q := url.Values{}
	q.Set("sessionId", c.tab.SessionID())
	q.Set("characterName", c.tab.Character())
	if force {
		q.Set("force", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/starter?"+q.Encode(), nil)
	if err != nil {
		return StarterResult{}, fmt.Errorf("build starter request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StarterResult{}, c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StarterResult{}, fmt.Errorf("%w: starter status %d", ErrServerFailure, resp.StatusCode)
	}

	var result StarterResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StarterResult{}, fmt.Errorf("decode starter reply: %w", err)
	}
	return result, nil
}

// ClearSession empties this tab's history on the server, keeping the
// character binding.
func (c *Coordinator) ClearSession(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"sessionId": c.tab.SessionID()})
	if err != nil {
		return fmt.Errorf("marshal clear request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session/clear", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build clear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: clear status %d", ErrServerFailure, resp.StatusCode)
	}
	return nil
}

// DeleteSession removes all server-side state for this tab's session.
func (c *Coordinator) DeleteSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/session/"+c.tab.SessionID(), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: delete status %d", ErrServerFailure, resp.StatusCode)
	}
	return nil
}
