// Package api is the HTTP command client for the reasoning server. Commands
// travel outside the event stream: each call is a plain request/acknowledge
// exchange whose effect arrives later as inbound events. Status-changing
// commands set the store's status optimistically before the call and roll it
// back if the call fails, leaving the session in its last confirmed status.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Iron-Ham/reasonloop/internal/errors"
	"github.com/Iron-Ham/reasonloop/internal/logging"
	"github.com/Iron-Ham/reasonloop/internal/session"
)

const defaultTimeout = 30 * time.Second

// Client issues reasoning commands against the server's REST surface and
// reconciles their optimistic effects with the session store.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   *session.Store
	log     *logging.Logger
}

// NewClient creates a command client for the given server root, e.g.
// "http://localhost:8000". The store may be nil for command-only use.
func NewClient(baseURL string, store *session.Store, log *logging.Logger) *Client {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
		store:   store,
		log:     log.WithComponent("api"),
	}
}

// startRequest is the wire body for starting a session.
type startRequest struct {
	Task    string          `json:"task"`
	Context string          `json:"context,omitempty"`
	Config  *session.Config `json:"config,omitempty"`
}

// startResponse is the server's acknowledgement of a new session.
type startResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// injectRequest is the wire body for injecting human feedback.
type injectRequest struct {
	Feedback string `json:"feedback"`
}

// errorResponse carries the server's failure detail.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Start submits a task and returns the new session id. On success the store
// is rebound to the new session and optimistically marked running; the
// server confirms with a session_started event on the streaming channel.
func (c *Client) Start(ctx context.Context, task string, cfg session.Config) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", errors.NewValidationError("task cannot be empty").WithField("task")
	}

	var resp startResponse
	if err := c.post(ctx, "/api/reasoning/start", startRequest{Task: task, Config: &cfg}, &resp); err != nil {
		return "", errors.Wrap(err, "failed to start session")
	}
	if resp.SessionID == "" {
		return "", errors.NewProtocolError("start response carried no session id", errors.ErrMalformedEvent)
	}

	c.log.Info("session started", "session_id", resp.SessionID)
	if c.store != nil {
		c.store.Begin(resp.SessionID, task, cfg)
		if err := c.store.SetStatusOptimistic(session.StatusRunning); err != nil {
			return "", err
		}
	}
	return resp.SessionID, nil
}

// Stop asks the server to stop the session. The status is optimistically set
// to stopped and rolled back if the command fails; the authoritative
// session_stopped event arrives on the stream.
func (c *Client) Stop(ctx context.Context, sessionID string) error {
	return c.transition(ctx, sessionID, "stop", session.StatusStopped)
}

// Pause suspends the reasoning loop, optimistically.
func (c *Client) Pause(ctx context.Context, sessionID string) error {
	return c.transition(ctx, sessionID, "pause", session.StatusPaused)
}

// Resume continues a paused loop, optimistically.
func (c *Client) Resume(ctx context.Context, sessionID string) error {
	return c.transition(ctx, sessionID, "resume", session.StatusRunning)
}

// Inject queues human feedback for the next iteration. Feedback does not
// change the session status, so nothing is set optimistically.
func (c *Client) Inject(ctx context.Context, sessionID, feedback string) error {
	if strings.TrimSpace(feedback) == "" {
		return errors.NewValidationError("feedback cannot be empty").WithField("feedback")
	}
	return c.post(ctx, c.sessionPath(sessionID, "inject"), injectRequest{Feedback: feedback}, nil)
}

// Retry restarts reasoning from the rejected output. The server continues on
// the same session id and channel, so the store is reopened to running
// rather than rebound, keeping the accumulated iterations.
func (c *Client) Retry(ctx context.Context, sessionID string) error {
	if c.store != nil {
		c.store.ReopenOptimistic()
	}
	if err := c.post(ctx, c.sessionPath(sessionID, "retry"), nil, nil); err != nil {
		if c.store != nil {
			c.store.RollbackStatus()
		}
		return errors.Wrap(err, "failed to retry session")
	}
	return nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.NewConnectionError("server unreachable", err).WithEndpoint(c.baseURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.NewConnectionError(
			fmt.Sprintf("health check returned %s", resp.Status), nil).WithEndpoint(c.baseURL)
	}
	return nil
}

// transition runs one optimistic status command: set first, send, roll back
// on failure.
func (c *Client) transition(ctx context.Context, sessionID, command string, optimistic session.Status) error {
	if c.store != nil {
		if err := c.store.SetStatusOptimistic(optimistic); err != nil {
			return err
		}
	}
	if err := c.post(ctx, c.sessionPath(sessionID, command), nil, nil); err != nil {
		c.log.Warn("command failed, rolling back status",
			"session_id", sessionID, "command", command, "error", err)
		if c.store != nil {
			c.store.RollbackStatus()
		}
		return errors.Wrapf(err, "failed to %s session", command)
	}
	return nil
}

func (c *Client) sessionPath(sessionID, command string) string {
	return fmt.Sprintf("/api/reasoning/%s/%s", sessionID, command)
}

// post sends one JSON command and decodes the response into out, if given.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.NewConnectionError("request failed", err).WithEndpoint(c.baseURL + path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.serverError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// serverError maps an HTTP failure to a domain error, carrying the server's
// detail message when present.
func (c *Client) serverError(resp *http.Response) error {
	var detail errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &detail)
	msg := detail.Detail
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NewSessionError(msg, errors.ErrSessionNotFound)
	case http.StatusBadRequest:
		return errors.NewValidationError(msg)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
}
