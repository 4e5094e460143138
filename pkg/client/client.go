// Package client provides a Go client for a kektorgraph datastore.
//
// It offers a type-safe way to perform all major operations, including:
//   - Schema and graph mutations (types, entities, relationships).
//   - Queries and full-text searches streamed through a RowCursor.
//   - Centrality and filtered find-paths analytics run as server tasks.
//
// A Client is a session: it runs one operation at a time. Concurrent calls
// wait for the session, and an open RowCursor holds it until closed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// --- Custom Errors ---

// APIError represents an error returned by the datastore API (status >= 400).
// It unwraps to the kgerr sentinel matching its code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Names      []string

	err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

type errorResponse struct {
	Error string   `json:"error"`
	Code  string   `json:"code"`
	Names []string `json:"names,omitempty"`
}

// --- Client ---

// Client is the Go client for a kektorgraph datastore.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// PollInterval is how often task status is checked while waiting for
	// analytics results.
	PollInterval time.Duration

	// session holds a token while an operation or a cursor owns the session.
	session chan struct{}
}

// New creates a client for the datastore listening on host:port. apiKey may
// be empty when the server runs without authentication.
func New(host string, port int, apiKey string) *Client {
	return NewFromURL(fmt.Sprintf("http://%s:%d", host, port), apiKey)
}

// NewFromURL creates a client for the datastore at baseURL.
func NewFromURL(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: 100 * time.Millisecond,
		session:      make(chan struct{}, 1),
	}
}

// acquire takes the session, waiting for the running operation to finish.
func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.session <- struct{}{}:
		return nil
	case <-ctx.Done():
		return kgerr.FromContext(ctx.Err())
	}
}

func (c *Client) release() { <-c.session }

// do runs fn while holding the session.
func (c *Client) do(ctx context.Context, fn func() error) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return fn()
}

// jsonRequest is a helper method to execute all requests to the API.
// It handles JSON serialization, HTTP calls, and error management.
func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, kgerr.FromContext(ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", kgerr.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil // For 204 responses (e.g., DELETE).
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", kgerr.ErrConnection, err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) != nil || errResp.Code == "" {
			errResp = errorResponse{Error: string(respBody), Code: codeForStatus(resp.StatusCode)}
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    errResp.Error,
			Names:      errResp.Names,
			err:        kgerr.FromCode(errResp.Code, errResp.Error, errResp.Names),
		}
	}

	return respBody, nil
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return kgerr.CodeInvalidState
	case status == http.StatusUnauthorized, status >= 500:
		return kgerr.CodeConnection
	default:
		return kgerr.CodeQuery
	}
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", kgerr.ErrConnection, err)
	}
	return nil
}

// --- Schema and graph ---

// Schema returns the named types of the datastore.
func (c *Client) Schema(ctx context.Context) ([]core.NamedType, error) {
	var types []core.NamedType
	err := c.do(ctx, func() error {
		body, err := c.jsonRequest(ctx, http.MethodGet, "/schema", nil)
		if err != nil {
			return err
		}
		return decode(body, &types)
	})
	return types, err
}

// DefineType adds or updates a named type.
func (c *Client) DefineType(ctx context.Context, t core.NamedType) error {
	return c.do(ctx, func() error {
		_, err := c.jsonRequest(ctx, http.MethodPost, "/schema/types", t)
		return err
	})
}

// UpsertEntity stores an entity and returns the stored record.
func (c *Client) UpsertEntity(ctx context.Context, rec core.EntityRecord) (*core.EntityRecord, error) {
	var out core.EntityRecord
	err := c.do(ctx, func() error {
		body, err := c.jsonRequest(ctx, http.MethodPost, "/graph/entities", rec)
		if err != nil {
			return err
		}
		return decode(body, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Link stores a relationship and returns the stored record.
func (c *Client) Link(ctx context.Context, rec core.RelationshipRecord) (*core.RelationshipRecord, error) {
	var out core.RelationshipRecord
	err := c.do(ctx, func() error {
		body, err := c.jsonRequest(ctx, http.MethodPost, "/graph/relationships", rec)
		if err != nil {
			return err
		}
		return decode(body, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Unlink deletes a relationship.
func (c *Client) Unlink(ctx context.Context, id graphvalue.Identifier) error {
	return c.do(ctx, func() error {
		_, err := c.jsonRequest(ctx, http.MethodDelete, "/graph/relationships/"+url.PathEscape(id.String()), nil)
		return err
	})
}

// DeleteEntity deletes an entity and the relationships attached to it.
func (c *Client) DeleteEntity(ctx context.Context, id graphvalue.Identifier) error {
	return c.do(ctx, func() error {
		_, err := c.jsonRequest(ctx, http.MethodDelete, "/graph/entities/"+url.PathEscape(id.String()), nil)
		return err
	})
}

// --- Tasks ---

// Task represents an asynchronous operation on the server.
type Task struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ProgressMessage string `json:"progress_message,omitempty"`
	Error           string `json:"error,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`

	client *Client // Reference to the client for polling.
}

// GetTaskStatus retrieves the status of a task. It does not take the
// session, so it can be used to watch a task started by another caller.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*Task, error) {
	body, err := c.jsonRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := decode(body, &task); err != nil {
		return nil, err
	}
	task.client = c
	return &task, nil
}

// Refresh updates the task's status by querying the server.
func (t *Task) Refresh(ctx context.Context) error {
	if t.client == nil {
		return fmt.Errorf("client is not associated with the task")
	}
	updated, err := t.client.GetTaskStatus(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Status = updated.Status
	t.ProgressMessage = updated.ProgressMessage
	t.Error = updated.Error
	t.ErrorCode = updated.ErrorCode
	return nil
}

// Wait blocks until the task completes, checking its status every interval.
// Giving up through ctx only abandons the wait: the server keeps running
// the task to completion.
func (t *Task) Wait(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		switch t.Status {
		case "completed":
			return nil
		case "failed":
			return kgerr.FromCode(t.ErrorCode, fmt.Sprintf("task %s failed: %s", t.ID, t.Error), nil)
		case "running", "started":
			// Continue waiting.
		default:
			return fmt.Errorf("%w: unknown task status %q", kgerr.ErrConnection, t.Status)
		}

		select {
		case <-ctx.Done():
			return kgerr.FromContext(ctx.Err())
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}

// runTask starts an analytics task, waits for it and decodes its result.
func (c *Client) runTask(ctx context.Context, endpoint string, payload, result any) error {
	return c.do(ctx, func() error {
		body, err := c.jsonRequest(ctx, http.MethodPost, endpoint, payload)
		if err != nil {
			return err
		}
		task := &Task{client: c}
		if err := decode(body, task); err != nil {
			return err
		}
		if err := task.Wait(ctx, c.PollInterval); err != nil {
			if errors.Is(err, kgerr.ErrCancelled) || errors.Is(err, kgerr.ErrTimedOut) {
				return fmt.Errorf("stopped waiting for task %s, which keeps running on the server: %w", task.ID, err)
			}
			return err
		}
		body, err = c.jsonRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(task.ID)+"/result", nil)
		if err != nil {
			return err
		}
		return decode(body, result)
	})
}
