package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	httpx "github.com/soundpipe/soundpipe/internal/http"

	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
)

// ClientOptions groups constructor options for Client.
type ClientOptions struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	// Gate guards every request against protocol drift.
	Gate *VersionGate
	// UserID is the opaque owner id attached to requests. Optional; Provision
	// fetches one from the server.
	UserID string
	// HTTPClient is the underlying transport. Optional; defaults to a plain
	// http.Client. Callers set the timeout here.
	HTTPClient *http.Client
	Logger     *slog.Logger // Optional: structured logger
}

// Client wraps the soundpipe HTTP API. Every request carries the client's
// protocol version and owner id; every response's echoed version header is
// fed to the version gate. Once the gate is stale, requests short-circuit
// locally with a stale version error without touching the network.
type Client struct {
	baseURL string
	gate    *VersionGate
	httpc   *http.Client
	logger  *slog.Logger

	userID string
}

// New creates a new Client.
func New(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("VersionGate is required")
	}

	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		gate:    opts.Gate,
		httpc:   httpc,
		logger:  logger.With("component", "client"),
		userID:  opts.UserID,
	}, nil
}

// UserID returns the owner id currently attached to requests.
func (c *Client) UserID() string {
	return c.userID
}

// Provision asks the server for an owner id and attaches it to all
// subsequent requests. If an id is already set the server echoes it back.
func (c *Client) Provision(ctx context.Context) (model.UserResponse, error) {
	var out model.UserResponse
	if err := c.do(ctx, http.MethodGet, "/user", nil, &out); err != nil {
		return model.UserResponse{}, err
	}
	c.userID = out.UserID
	return out, nil
}

// Transcribe submits an audio payload and returns the accepted job.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (model.TranscribeResponse, error) {
	var out model.TranscribeResponse
	if err := c.do(ctx, http.MethodPost, "/transcribe", audio, &out); err != nil {
		return model.TranscribeResponse{}, err
	}
	return out, nil
}

// GetJob fetches the current snapshot of one job.
func (c *Client) GetJob(ctx context.Context, jobID string) (model.JobStatusResponse, error) {
	var out model.JobStatusResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID, nil, &out); err != nil {
		return model.JobStatusResponse{}, err
	}
	return out, nil
}

// ListJobs fetches every job owned by this client's user, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]model.JobStatusResponse, error) {
	var out []model.JobStatusResponse
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVersion fetches the server's protocol version. The response feeds the
// version gate like any other, so calling this periodically doubles as a
// compatibility check.
func (c *Client) GetVersion(ctx context.Context) (model.VersionResponse, error) {
	var out model.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &out); err != nil {
		return model.VersionResponse{}, err
	}
	return out, nil
}

// GetStats fetches server-side cache and registry counters.
func (c *Client) GetStats(ctx context.Context) (model.StatsResponse, error) {
	var out model.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return model.StatsResponse{}, err
	}
	return out, nil
}

// ClearCache wipes the server-side caches.
func (c *Client) ClearCache(ctx context.Context) (model.ClearCacheResponse, error) {
	var out model.ClearCacheResponse
	if err := c.do(ctx, http.MethodPost, "/clear-cache", nil, &out); err != nil {
		return model.ClearCacheResponse{}, err
	}
	return out, nil
}

// wireError is the JSON error body the server writes.
type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do issues one request and decodes the response into out. It is the single
// funnel for headers, gate observation, and error mapping.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.gate.Stale() {
		return apperrors.StaleVersion(c.gate.ClientVersion(), c.gate.ServerVersion())
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "build request %s %s", method, path)
	}
	req.Header.Set(httpx.HeaderAPIVersion, c.gate.ClientVersion())
	if c.userID != "" {
		req.Header.Set(httpx.HeaderUserID, c.userID)
	}

	seq := c.gate.Begin()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeTransient, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	c.gate.Observe(seq, resp.Header.Get(httpx.HeaderAPIVersion))
	if c.gate.Stale() {
		// The response that trips the gate is itself discarded; data from a
		// mismatched server is never surfaced.
		return apperrors.StaleVersion(c.gate.ClientVersion(), c.gate.ServerVersion())
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeTransient, "read response of %s %s", method, path)
	}

	if resp.StatusCode >= 400 {
		return c.mapError(resp.StatusCode, payload, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "decode response of %s %s", method, path)
	}
	return nil
}

// mapError turns a non-2xx response into an application error, trusting the
// body's error code over the HTTP status where present.
func (c *Client) mapError(status int, payload []byte, method, path string) error {
	var we wireError
	if err := json.Unmarshal(payload, &we); err == nil && we.Error != "" {
		msg := we.Message
		if msg == "" {
			msg = we.Error
		}
		return &apperrors.AppError{Code: apperrors.ErrorCode(we.Error), Message: msg}
	}

	msg := fmt.Sprintf("%s %s returned %d", method, path, status)
	switch status {
	case http.StatusNotFound:
		return apperrors.NotFound(msg)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return apperrors.Validation(msg)
	case http.StatusUpgradeRequired:
		return apperrors.StaleVersion(c.gate.ClientVersion(), c.gate.ServerVersion())
	default:
		return apperrors.Internal(msg)
	}
}
